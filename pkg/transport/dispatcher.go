// Package transport routes encoded envelopes from the capture path to the
// recorder: either over NATS core pub/sub, or directly in-process for
// single-binary/test setups.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"

	"github.com/bbangert/zilch/pkg/envelope"
)

// ErrNotConfigured is returned by New when neither a remote URL and subject
// nor an in-process Sink was configured.
var ErrNotConfigured = errors.New("transport: neither a nats subject nor an in-process sink was configured")

// DefaultQueueSize is the local send queue depth used when Config.QueueSize
// is zero.
const DefaultQueueSize = 1024

// Sink is the in-process alternative to a remote transport: handing an
// envelope straight to the store and flushing synchronously, exactly as the
// Dispatcher's in-process configuration does.
type Sink interface {
	MessageReceived(ctx context.Context, e envelope.Envelope) error
	Flush(ctx context.Context) error
}

// Config selects exactly one Dispatcher destination.
type Config struct {
	// NATSURL and Subject configure the remote transport.
	NATSURL string
	Subject string

	// Sink configures the in-process alternative. Mutually exclusive with
	// NATSURL/Subject.
	Sink Sink

	// QueueSize bounds the local send queue; excess sends are dropped.
	QueueSize int
}

// Dispatcher routes an envelope to its configured destination. Send never
// blocks the caller: on the remote path, a full local queue drops the
// message; telemetry must never stall the producer.
type Dispatcher struct {
	cfg Config
	log zerolog.Logger

	queue chan envelope.Envelope

	connOnce sync.Once
	conn     *natsConn
	connErr  error
}

// New builds a Dispatcher for cfg. It does not connect eagerly; the
// transport socket is created lazily and cached, on first Send.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Sink == nil && (cfg.NATSURL == "" || cfg.Subject == "") {
		return nil, ErrNotConfigured
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	d := &Dispatcher{
		cfg: cfg,
		log: logger.With().Str("component", "dispatcher").Logger(),
	}
	if cfg.Sink == nil {
		d.queue = make(chan envelope.Envelope, cfg.QueueSize)
		go d.drain()
	}
	return d, nil
}

// Send routes e to the configured destination. When configured for an
// in-process Sink, Send invokes MessageReceived then Flush synchronously, as
// the in-process contract requires. Otherwise Send enqueues e on the local
// send queue and returns immediately; a full queue drops e silently.
func (d *Dispatcher) Send(e envelope.Envelope) error {
	if d.cfg.Sink != nil {
		ctx := context.Background()
		if err := d.cfg.Sink.MessageReceived(ctx, e); err != nil {
			return err
		}
		return d.cfg.Sink.Flush(ctx)
	}

	select {
	case d.queue <- e:
	default:
		d.log.Warn().Str("event_id", e.EventID).Msg("send queue full, dropping envelope")
	}
	return nil
}

// Close stops the drain goroutine and closes the underlying NATS connection,
// if one was ever established.
func (d *Dispatcher) Close() error {
	if d.cfg.Sink != nil {
		return nil
	}
	close(d.queue)
	if d.conn != nil {
		d.conn.close()
	}
	return nil
}
