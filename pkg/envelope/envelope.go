// Package envelope defines the wire shapes exchanged between a producer's
// capture path and the recorder's store, and the codec that moves them
// between JSON, zlib-deflated transport frames, and base64-over-zlib blob
// columns.
package envelope

import (
	"fmt"
	"strings"
	"time"
)

// ISO8601Micro is the producer-local timestamp layout used on the wire:
// ISO-8601 with microsecond precision and no zone suffix.
const ISO8601Micro = "2006-01-02T15:04:05.000000"

// Envelope is one event occurrence in flight between a producer and the
// recorder.
type Envelope struct {
	EventType string         `json:"event_type"`
	EventID   string         `json:"event_id"`
	Date      time.Time      `json:"date"`
	TimeSpent *int64         `json:"time_spent"`
	Hash      string         `json:"hash"`
	Tags      [][2]string    `json:"tags"`
	Data      interface{}    `json:"data"`
	Extra     map[string]any `json:"extra"`
}

// envelopeWire is the JSON shadow of Envelope: it exists only so Date gets
// the exact microsecond, zone-suffix-free layout the original store parses
// with `strptime(..., '%Y-%m-%dT%H:%M:%S.%f')`.
type envelopeWire struct {
	EventType string         `json:"event_type"`
	EventID   string         `json:"event_id"`
	Date      string         `json:"date"`
	TimeSpent *int64         `json:"time_spent"`
	Hash      string         `json:"hash"`
	Tags      [][2]string    `json:"tags"`
	Data      interface{}    `json:"data"`
	Extra     map[string]any `json:"extra"`
}

// MarshalJSON renders Date in the wire's microsecond layout.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return jsonc.Marshal(envelopeWire{
		EventType: e.EventType,
		EventID:   e.EventID,
		Date:      e.Date.UTC().Format(ISO8601Micro),
		TimeSpent: e.TimeSpent,
		Hash:      e.Hash,
		Tags:      e.Tags,
		Data:      canonicalizeForWire(e.Data),
		Extra:     canonicalizeMapForWire(e.Extra),
	})
}

// UnmarshalJSON parses Date from the wire's microsecond layout.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var w envelopeWire
	if err := jsonc.Unmarshal(b, &w); err != nil {
		return err
	}
	date, err := time.Parse(ISO8601Micro, strings.TrimSuffix(w.Date, "Z"))
	if err != nil {
		return fmt.Errorf("parsing envelope date %q: %w", w.Date, err)
	}
	e.EventType = w.EventType
	e.EventID = w.EventID
	e.Date = date
	e.TimeSpent = w.TimeSpent
	e.Hash = w.Hash
	e.Tags = w.Tags
	e.Data = w.Data
	e.Extra = w.Extra
	return nil
}

// Frame is a single stack frame, outermost first within an ExceptionPayload.
type Frame struct {
	ID          int            `json:"id"`
	Filename    string         `json:"filename"`
	Module      string         `json:"module"`
	Function    string         `json:"function"`
	Lineno      int            `json:"lineno"`
	Vars        map[string]any `json:"vars"`
	ContextLine string         `json:"context_line"`
	WithContext []string       `json:"with_context"`
	Visible     bool           `json:"visible"`
}

// ExceptionPayload is the `data` shape for "Exception" and "HTTPException"
// envelopes.
type ExceptionPayload struct {
	Type       string            `json:"type"`
	Value      string            `json:"value"`
	Message    string            `json:"message"`
	Level      int               `json:"level"`
	Frames     []Frame           `json:"frames"`
	Traceback  string            `json:"traceback"`
	Versions   map[string]string `json:"versions"`
}

// StoredExceptionData is the shape persisted in Event.data: the full
// exception detail minus the short summary, which lives on Group.message
// instead.
type StoredExceptionData struct {
	Frames    []Frame           `json:"frames"`
	Versions  map[string]string `json:"versions"`
	Type      string            `json:"type"`
	Value     string            `json:"value"`
	Extra     map[string]any    `json:"extra"`
	Traceback string            `json:"traceback"`
}

// Canonicalizer is implemented by values that know how to render themselves
// in JSON-safe form, the Go analogue of the original encoder's `__json__`
// duck-typed hook.
type Canonicalizer interface {
	Canonical() interface{}
}

// TabularRows is the canonical form for query-result-shaped data: a fixed
// row count alongside the rows themselves.
type TabularRows struct {
	Rows  []map[string]any `json:"rows"`
	Count int              `json:"count"`
}
