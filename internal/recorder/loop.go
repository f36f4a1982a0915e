// Package recorder drives the single-threaded ingest loop: receive envelopes
// off a NATS subscription, fold them into the store, and flush on a timer or
// on shutdown.
package recorder

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/bbangert/zilch/pkg/envelope"
	"github.com/bbangert/zilch/pkg/store"
	"github.com/bbangert/zilch/pkg/telemetry"
)

// backoff is how long the loop sleeps after finding no message waiting,
// mirroring a would-block PULL recv.
const backoff = 200 * time.Millisecond

// DefaultFlushInterval is the period between flush checks when
// Config.FlushInterval is zero; a tick flushes only if messages arrived
// since the previous flush.
const DefaultFlushInterval = 5 * time.Second

// Subscriber is the receive side of a transport subscription: a channel of
// incoming messages to range over without blocking. *transport.Subscription
// satisfies it; tests substitute a bare channel to drive the loop without a
// running NATS server.
type Subscriber interface {
	Messages() <-chan *nats.Msg
}

// Config wires the loop's dependencies.
type Config struct {
	Sub           Subscriber
	Store         *store.Store
	FlushInterval time.Duration
	Log           zerolog.Logger
}

// Run blocks until ctx is cancelled, at which point it drains any messages
// already sitting in the subscription channel, flushes once more
// unconditionally, and returns.
func Run(ctx context.Context, cfg Config) error {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	ticker := time.NewTicker(cfg.FlushInterval)
	defer ticker.Stop()

	msgs := cfg.Sub.Messages()
	messagesSinceFlush := false

	// Store calls run on a context that ignores ctx's cancellation, so a
	// shutdown neither refuses a message nor rolls back the open batch
	// before the final flush.
	storeCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			drainRemaining(cfg, msgs)
			flush(storeCtx, cfg)
			return nil
		case raw := <-msgs:
			handle(storeCtx, cfg, raw.Data)
			messagesSinceFlush = true
		case <-ticker.C:
			if !messagesSinceFlush {
				continue
			}
			flush(storeCtx, cfg)
			messagesSinceFlush = false
		default:
			time.Sleep(backoff)
		}
	}
}

// drainRemaining folds in any envelopes already buffered on msgs without
// blocking, so a shutdown doesn't discard work the producer believes was
// delivered.
func drainRemaining(cfg Config, msgs <-chan *nats.Msg) {
	for {
		select {
		case raw := <-msgs:
			handle(context.Background(), cfg, raw.Data)
		default:
			return
		}
	}
}

func handle(ctx context.Context, cfg Config, payload []byte) {
	e, err := envelope.DecodeWire(payload)
	if err != nil {
		cfg.Log.Error().Err(err).Msg("discarding envelope that failed to decode")
		return
	}
	if err := cfg.Store.MessageReceived(ctx, e); err != nil {
		cfg.Log.Error().Err(err).Str("event_id", e.EventID).Msg("message receive failed")
	}
}

func flush(ctx context.Context, cfg Config) {
	start := time.Now()
	if err := cfg.Store.Flush(ctx); err != nil {
		cfg.Log.Error().Err(err).Msg("flush failed")
		return
	}
	took := time.Since(start)

	stats := cfg.Store.Stats()
	if err := telemetry.Collect(ctx, telemetry.IngestBatchMetric{
		Received:  stats.Received.Load(),
		Decoded:   stats.Decoded.Load(),
		Skipped:   stats.Skipped.Load(),
		Duplicate: stats.Duplicate.Load(),
	}); err != nil {
		cfg.Log.Error().Err(err).Msg("collecting ingest batch metric")
	}
	if err := telemetry.Collect(ctx, telemetry.GroupChurnMetric{
		GroupsCreated: stats.GroupsCreated.Load(),
		GroupsUpdated: stats.GroupsUpdated.Load(),
	}); err != nil {
		cfg.Log.Error().Err(err).Msg("collecting group churn metric")
	}
	if err := telemetry.Collect(ctx, telemetry.FlushLatencyMetric{
		TookMilli: took.Milliseconds(),
	}); err != nil {
		cfg.Log.Error().Err(err).Msg("collecting flush latency metric")
	}
	stats.Reset()
}
