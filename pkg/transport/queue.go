package transport

import "github.com/bbangert/zilch/pkg/envelope"

// drain is the single background goroutine that empties the local send
// queue into the NATS connection. It is the consumer side of the bounded
// buffered channel that implements the spec's "local send queue": Send's
// non-blocking channel write is the producer side, and a full channel is
// the drop-on-overflow case.
func (d *Dispatcher) drain() {
	for e := range d.queue {
		conn, err := d.connection()
		if err != nil {
			d.log.Error().Err(err).Msg("no transport connection, dropping envelope")
			continue
		}
		wire, err := envelope.EncodeWire(e)
		if err != nil {
			d.log.Error().Err(err).Str("event_id", e.EventID).Msg("encoding envelope for transport")
			continue
		}
		if err := conn.publish(d.cfg.Subject, wire); err != nil {
			d.log.Error().Err(err).Str("event_id", e.EventID).Msg("publishing envelope")
		}
	}
}

// connection lazily connects and caches the NATS connection. A single
// Dispatcher is safe for concurrent Send from many producer goroutines: the
// connect-once guard here is the collapse of the spec's "socket created
// lazily and cached per thread" onto a connection type that is itself safe
// for concurrent use.
func (d *Dispatcher) connection() (*natsConn, error) {
	d.connOnce.Do(func() {
		d.conn, d.connErr = dialNATS(d.cfg.NATSURL)
	})
	return d.conn, d.connErr
}
