package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/bbangert/zilch/pkg/envelope"
	"github.com/bbangert/zilch/pkg/store/storetest"
)

// fakeSubscriber hands Run a plain channel instead of a live NATS
// subscription, so the loop can be driven deterministically in tests.
type fakeSubscriber struct {
	ch chan *nats.Msg
}

func newFakeSubscriber(size int) *fakeSubscriber {
	return &fakeSubscriber{ch: make(chan *nats.Msg, size)}
}

func (f *fakeSubscriber) Messages() <-chan *nats.Msg { return f.ch }

func exceptionMsg(t *testing.T) *nats.Msg {
	t.Helper()
	e := envelope.Envelope{
		EventType: "Exception",
		EventID:   uuid.New().String(),
		Date:      time.Now().UTC(),
		Hash:      "deadbeef",
		Data: envelope.ExceptionPayload{
			Type:    "ValueError",
			Value:   "boom",
			Message: "ValueError: boom",
			Level:   40,
		},
	}
	wire, err := envelope.EncodeWire(e)
	require.NoError(t, err)
	return &nats.Msg{Data: wire}
}

// TestRunFlushesRemainingMessagesOnShutdown covers spec.md §8's shutdown
// contract: envelopes already sitting on the subscription channel when ctx
// is cancelled must still be folded into the store and flushed before Run
// returns, not discarded.
func TestRunFlushesRemainingMessagesOnShutdown(t *testing.T) {
	s := storetest.New(t)
	sub := newFakeSubscriber(100)

	const count = 100
	for i := 0; i < count; i++ {
		sub.ch <- exceptionMsg(t)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already-buffered messages must still drain before Run returns

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{
			Sub:           sub,
			Store:         s,
			FlushInterval: time.Hour,
			Log:           zerolog.Nop(),
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}

	groups, err := s.RecentGroups(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.EqualValues(t, count, groups[0].Count)
}

// TestRunPersistsMessageAfterIdleTicks runs the loop through several idle
// ticker ticks, then sends one message and checks that it is persisted
// exactly once. It does not observe whether an idle tick calls Store.Flush.
func TestRunPersistsMessageAfterIdleTicks(t *testing.T) {
	s := storetest.New(t)
	sub := newFakeSubscriber(1)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{
			Sub:           sub,
			Store:         s,
			FlushInterval: 20 * time.Millisecond,
			Log:           zerolog.Nop(),
		})
	}()

	// Let several idle ticks pass with nothing on the channel, then send one
	// message. If the ticker guard were missing, one of the idle ticks would
	// already have flushed (a no-op against an empty batch either way); the
	// real assertion is the final count below, reached only if the single
	// message that arrives after the idle period is the one actually
	// flushed.
	time.Sleep(100 * time.Millisecond)

	sub.ch <- exceptionMsg(t)
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}

	groups, err := s.RecentGroups(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.EqualValues(t, 1, groups[0].Count)
}
