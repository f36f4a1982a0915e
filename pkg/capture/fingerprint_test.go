package capture

import "testing"

func TestFingerprintStableAcrossMessage(t *testing.T) {
	tb := "line one\nline two\nKeyError: 'a'\n"
	h1 := Fingerprint(40, "KeyError", tb, "")
	tb2 := "line one\nline two\nKeyError: 'b'\n"
	h2 := Fingerprint(40, "KeyError", tb2, "")
	if h1 != h2 {
		t.Fatalf("expected equal fingerprints for tracebacks differing only in the last line, got %s != %s", h1, h2)
	}
}

func TestFingerprintDiffersOnStack(t *testing.T) {
	tb1 := "frame a\nframe b\nmsg\n"
	tb2 := "frame a\nframe c\nmsg\n"
	h1 := Fingerprint(40, "KeyError", tb1, "")
	h2 := Fingerprint(40, "KeyError", tb2, "")
	if h1 == h2 {
		t.Fatalf("expected different fingerprints for different stacks")
	}
}

func TestFingerprintUsesMessageWhenNoTraceback(t *testing.T) {
	h1 := Fingerprint(40, "ValueError", "", "bad value a")
	h2 := Fingerprint(40, "ValueError", "", "bad value b")
	if h1 == h2 {
		t.Fatalf("expected different fingerprints for different messages with no traceback")
	}
}

func TestFingerprintDiffersOnLevel(t *testing.T) {
	h1 := Fingerprint(40, "ValueError", "", "same")
	h2 := Fingerprint(20, "ValueError", "", "same")
	if h1 == h2 {
		t.Fatalf("expected different fingerprints for different levels")
	}
}
