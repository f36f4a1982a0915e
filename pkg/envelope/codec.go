package envelope

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zlib"
)

var jsonc = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeWire renders an envelope as the wire format: UTF-8 JSON deflated
// with zlib.
func EncodeWire(e Envelope) ([]byte, error) {
	b, err := jsonc.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return deflate(b)
}

// DecodeWire is the inverse of EncodeWire: inflate then parse, with no
// extra coercion beyond what Envelope.UnmarshalJSON already applies.
func DecodeWire(b []byte) (Envelope, error) {
	var e Envelope
	raw, err := inflate(b)
	if err != nil {
		return e, fmt.Errorf("inflate envelope: %w", err)
	}
	if err := jsonc.Unmarshal(raw, &e); err != nil {
		return e, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return e, nil
}

// EncodeBlob renders a value (typically an ExceptionPayload) as the at-rest
// column format: base64 over zlib-deflated JSON, so it survives a TEXT
// column. A nil value encodes as an empty object, matching the original
// GzippedJSON type decorator's behavior for an absent value.
func EncodeBlob(v interface{}) (string, error) {
	if v == nil {
		v = map[string]any{}
	}
	b, err := jsonc.Marshal(canonicalizeForWire(v))
	if err != nil {
		return "", fmt.Errorf("marshal blob: %w", err)
	}
	deflated, err := deflate(b)
	if err != nil {
		return "", fmt.Errorf("deflate blob: %w", err)
	}
	return base64.StdEncoding.EncodeToString(deflated), nil
}

// DecodeBlob is the inverse of EncodeBlob, unmarshaling into target.
func DecodeBlob(blob string, target interface{}) error {
	if blob == "" {
		return nil
	}
	deflated, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return fmt.Errorf("base64 decode blob: %w", err)
	}
	raw, err := inflate(deflated)
	if err != nil {
		return fmt.Errorf("inflate blob: %w", err)
	}
	if err := jsonc.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("unmarshal blob: %w", err)
	}
	return nil
}

// DecodeData re-marshals an already-decoded interface{} value (typically the
// map[string]interface{} produced by decoding an Envelope's Data field) into
// a concrete target type. Store handlers use this to recover a typed
// ExceptionPayload from the generic envelope they received off the wire.
func DecodeData(data interface{}, target interface{}) error {
	b, err := jsonc.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	if err := jsonc.Unmarshal(b, target); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return nil
}

func deflate(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck
	return io.ReadAll(r)
}

// canonicalizeForWire applies the JSON encoder extensions documented for the
// wire format (datetime -> ISO-8601 with trailing Z, Canonicalizer hook) to
// values that reach the codec without having already passed through the
// capture path's canonicalizer. It leaves already-canonical values (map,
// slice, string, float64, bool, nil) untouched.
func canonicalizeForWire(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case Canonicalizer:
		return canonicalizeForWire(t.Canonical())
	case time.Time:
		return t.UTC().Format("2006-01-02T15:04:05.000000") + "Z"
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = canonicalizeForWire(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = canonicalizeForWire(val)
		}
		return out
	default:
		return v
	}
}

func canonicalizeMapForWire(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, ok := canonicalizeForWire(m).(map[string]any)
	if !ok {
		return m
	}
	return out
}
