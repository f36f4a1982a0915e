package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWireRoundTrip(t *testing.T) {
	date := time.Date(2024, 3, 2, 10, 20, 30, 123000000, time.UTC)
	spent := int64(42)
	e := Envelope{
		EventType: "Exception",
		EventID:   "abc123",
		Date:      date,
		TimeSpent: &spent,
		Hash:      "deadbeef",
		Tags:      [][2]string{{"Hostname", "box1"}, {"level", "error"}},
		Data: ExceptionPayload{
			Type:    "KeyError",
			Value:   "'no_name'",
			Message: "KeyError: 'no_name'",
			Level:   40,
			Frames: []Frame{
				{ID: 1, Filename: "app.py", Function: "handle", Lineno: 10, Visible: true},
			},
			Traceback: "Traceback...",
			Versions:  map[string]string{"flask": "2.0.0"},
		},
		Extra: map[string]any{"request_id": "r-1"},
	}

	wire, err := EncodeWire(e)
	require.NoError(t, err)
	require.NotEmpty(t, wire)

	got, err := DecodeWire(wire)
	require.NoError(t, err)

	require.Equal(t, e.EventType, got.EventType)
	require.Equal(t, e.EventID, got.EventID)
	require.Equal(t, e.Date.Format(ISO8601Micro), got.Date.Format(ISO8601Micro))
	require.Equal(t, *e.TimeSpent, *got.TimeSpent)
	require.Equal(t, e.Hash, got.Hash)
	require.Equal(t, e.Tags, got.Tags)
	require.Equal(t, "r-1", got.Extra["request_id"])
}

func TestWireRoundTripNilTimeSpent(t *testing.T) {
	e := Envelope{
		EventType: "Log",
		EventID:   "id-1",
		Date:      time.Now().UTC(),
		Tags:      [][2]string{},
		Data:      map[string]any{"message": "hello"},
		Extra:     map[string]any{},
	}
	wire, err := EncodeWire(e)
	require.NoError(t, err)

	got, err := DecodeWire(wire)
	require.NoError(t, err)
	require.Nil(t, got.TimeSpent)
}

func TestBlobRoundTrip(t *testing.T) {
	payload := ExceptionPayload{
		Type:      "ValueError",
		Value:     "bad value",
		Message:   "ValueError: bad value",
		Level:     40,
		Traceback: "line1\nline2",
		Versions:  map[string]string{"lib": "1.0"},
	}

	blob, err := EncodeBlob(payload)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	var got ExceptionPayload
	require.NoError(t, DecodeBlob(blob, &got))
	require.Equal(t, payload.Type, got.Type)
	require.Equal(t, payload.Traceback, got.Traceback)
	require.Equal(t, payload.Versions, got.Versions)
}

func TestEncodeBlobNilValue(t *testing.T) {
	blob, err := EncodeBlob(nil)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, DecodeBlob(blob, &got))
	require.Empty(t, got)
}

func TestDecodeBlobEmptyString(t *testing.T) {
	var got map[string]any
	require.NoError(t, DecodeBlob("", &got))
	require.Nil(t, got)
}

type canonicalStub struct {
	value string
}

func (c canonicalStub) Canonical() interface{} {
	return c.value
}

func TestCanonicalizeForWireUsesHook(t *testing.T) {
	e := Envelope{
		EventType: "Log",
		EventID:   "id-2",
		Date:      time.Now().UTC(),
		Tags:      [][2]string{},
		Data:      map[string]any{"thing": canonicalStub{value: "hooked"}},
		Extra:     map[string]any{},
	}
	wire, err := EncodeWire(e)
	require.NoError(t, err)

	got, err := DecodeWire(wire)
	require.NoError(t, err)
	data, ok := got.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "hooked", data["thing"])
}
