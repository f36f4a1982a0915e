package capture

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransformScalarPassthrough(t *testing.T) {
	require.Equal(t, "hi", Transform("hi"))
	require.Equal(t, 3, Transform(3))
	require.Equal(t, true, Transform(true))
	require.Nil(t, Transform(nil))
}

func TestTransformSliceAndMap(t *testing.T) {
	in := map[string]interface{}{
		"list": []interface{}{1, 2, 3},
	}
	out, ok := Transform(in).(map[string]interface{})
	require.True(t, ok)
	list, ok := out["list"].([]interface{})
	require.True(t, ok)
	require.Equal(t, []interface{}{1, 2, 3}, list)
}

func TestTransformCycleDetection(t *testing.T) {
	m := map[string]interface{}{}
	m["self"] = m

	out, ok := Transform(m).(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "<...>", out["self"])
}

func TestTransformCanonicalHook(t *testing.T) {
	out := Transform(canonicalStub{value: "rendered"})
	require.Equal(t, "rendered", out)
}

type canonicalStub struct {
	value string
}

func (c canonicalStub) Canonical() interface{} { return c.value }

func TestShortenStringTruncates(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	got := Shorten(string(long))
	require.Equal(t, 258, len(got.(string)))
}

func TestShortenSliceTruncates(t *testing.T) {
	items := make([]interface{}, 1000)
	for i := range items {
		items[i] = i
	}
	got := Shorten(items).([]interface{})
	require.Len(t, got, 22)
	require.Equal(t, "...", got[20])
	require.Equal(t, "(980 more elements)", got[21])
}

func TestShortenMapExemptKeys(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	m := map[string]interface{}{
		"traceback": string(long),
		"message":   string(long),
	}
	out := ShortenMap(m, "traceback", "frames", "versions")
	require.Equal(t, 300, len(out["traceback"].(string)))
	require.Equal(t, 258, len(out["message"].(string)))
}
