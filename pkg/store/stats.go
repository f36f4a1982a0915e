package store

import (
	"context"

	"go.uber.org/atomic"
)

type statsKey struct{}

// BatchStats accumulates counters over one ingest batch (the span between
// two Flush calls), read by the recorder's telemetry after each flush.
type BatchStats struct {
	Received      atomic.Int64
	Decoded       atomic.Int64
	Skipped       atomic.Int64
	Duplicate     atomic.Int64
	GroupsCreated atomic.Int64
	GroupsUpdated atomic.Int64
}

func withStats(ctx context.Context, s *BatchStats) context.Context {
	return context.WithValue(ctx, statsKey{}, s)
}

func statsFrom(ctx context.Context) *BatchStats {
	s, _ := ctx.Value(statsKey{}).(*BatchStats)
	return s
}

// Stats returns the Store's running batch counters. The caller should read
// it right after Flush and then call Reset for the next batch.
func (s *Store) Stats() *BatchStats {
	return s.stats
}

// Reset zeroes all counters, starting a fresh accounting window.
func (s *BatchStats) Reset() {
	s.Received.Store(0)
	s.Decoded.Store(0)
	s.Skipped.Store(0)
	s.Duplicate.Store(0)
	s.GroupsCreated.Store(0)
	s.GroupsUpdated.Store(0)
}
