package store

import (
	"database/sql"
	"errors"
	"strings"
)

// Kind classifies a store-level error so callers (the ingest loop, chiefly)
// can apply a uniform policy without parsing error strings.
type Kind int

const (
	// KindUnknown covers anything not classified below. MessageReceived
	// singles out only KindDuplicate; every other kind is logged and the
	// envelope skipped.
	KindUnknown Kind = iota
	// KindConfiguration means the store itself is unusable (bad DSN, failed
	// migration) and the process should not continue starting up.
	KindConfiguration
	// KindDecode means the envelope payload didn't decode into the shape its
	// handler expected.
	KindDecode
	// KindDuplicate means a unique constraint rejected a row the caller
	// already has (typically event_id), and the envelope should be dropped.
	KindDuplicate
	// KindTransient means the operation can be expected to succeed if
	// retried (a lock timeout, a dropped connection mid-statement).
	KindTransient
)

// ErrDecode wraps a failure to decode an envelope's data payload into the
// shape its handler expects.
var ErrDecode = errors.New("store: envelope data did not decode into the expected shape")

// Classify inspects err and reports the Kind that should drive the ingest
// loop's handling of it.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if isUniqueConstraintErr(err) {
		return KindDuplicate
	}
	if errors.Is(err, ErrDecode) {
		return KindDecode
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return KindTransient
	}
	return KindUnknown
}

// isUniqueConstraintErr matches both the sqlite3 and pgx unique-violation
// error text, since this package avoids importing either driver directly.
func isUniqueConstraintErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
