package transport

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bbangert/zilch/pkg/envelope"
)

type fakeSink struct {
	mu       sync.Mutex
	received []envelope.Envelope
	flushes  int
}

func (f *fakeSink) MessageReceived(_ context.Context, e envelope.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, e)
	return nil
}

func (f *fakeSink) Flush(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func TestDispatcherNotConfigured(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestDispatcherSinkSendsSynchronously(t *testing.T) {
	sink := &fakeSink{}
	d, err := New(Config{Sink: sink})
	require.NoError(t, err)

	e := envelope.Envelope{EventType: "Exception", EventID: "abc"}
	require.NoError(t, d.Send(e))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.received, 1)
	require.Equal(t, 1, sink.flushes)
	require.Equal(t, "abc", sink.received[0].EventID)
}

func TestDispatcherSinkCloseIsNoop(t *testing.T) {
	d, err := New(Config{Sink: &fakeSink{}})
	require.NoError(t, err)
	require.NoError(t, d.Close())
}
