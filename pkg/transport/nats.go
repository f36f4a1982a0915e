package transport

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// natsConn wraps the Dispatcher's publishing *nats.Conn behind the two
// calls the send path needs. Subscription holds its own *nats.Conn.
type natsConn struct {
	conn *nats.Conn
}

func dialNATS(url string) (*natsConn, error) {
	conn, err := nats.Connect(url, nats.Name("zilch-producer"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %q: %w", url, err)
	}
	return &natsConn{conn: conn}, nil
}

func (c *natsConn) publish(subject string, payload []byte) error {
	return c.conn.Publish(subject, payload)
}

func (c *natsConn) close() {
	c.conn.Close()
}

// Subscription is a bound receiver over a NATS core subject: the direct
// analogue of a non-blocking PULL socket. Messages arrive on a bounded
// channel; a full channel means the subscriber is falling behind and NATS
// itself drops further messages for that subject, matching the transport's
// fire-and-forget, no-redelivery contract.
type Subscription struct {
	conn *nats.Conn
	sub  *nats.Subscription
	ch   chan *nats.Msg
}

// Subscribe binds a channel subscription to subject on the NATS server at
// url. The returned channel capacity is chanSize.
func Subscribe(url, subject string, chanSize int) (*Subscription, error) {
	conn, err := nats.Connect(url, nats.Name("zilch-recorder"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %q: %w", url, err)
	}

	ch := make(chan *nats.Msg, chanSize)
	sub, err := conn.ChanSubscribe(subject, ch)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribing to subject %q: %w", subject, err)
	}

	return &Subscription{conn: conn, sub: sub, ch: ch}, nil
}

// Messages returns the channel messages are delivered on.
func (s *Subscription) Messages() <-chan *nats.Msg {
	return s.ch
}

// Close unsubscribes and tears down the connection. It is safe to call
// during shutdown drain: any messages already buffered in ch remain
// readable until the channel is drained by the caller.
func (s *Subscription) Close() error {
	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("unsubscribing: %w", err)
	}
	s.conn.Close()
	return nil
}
