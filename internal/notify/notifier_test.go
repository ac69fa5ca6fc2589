package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

type recordingSender struct {
	mu   sync.Mutex
	name string
	err  error
	sent []string
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, title)
	return nil
}

func (s *recordingSender) Name() string { return s.name }

func (s *recordingSender) titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

// fakeStream hands out one buffered channel per event type, mirroring the
// per-type Pub/Sub subscriptions of the real bus.
type fakeStream struct {
	chans map[string]chan domain.Event
}

func newFakeStream() *fakeStream {
	f := &fakeStream{chans: make(map[string]chan domain.Event)}
	for _, t := range domain.EventTypes() {
		f.chans[t] = make(chan domain.Event, 8)
	}
	return f
}

func (f *fakeStream) Subscribe(_ context.Context, eventType string) (<-chan domain.Event, error) {
	return f.chans[eventType], nil
}

func (f *fakeStream) emit(e domain.Event) {
	f.chans[e.Type] <- e
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLifecycleRelayDeliversFilteredAlerts(t *testing.T) {
	sender := &recordingSender{name: "recording"}
	notifier := NewNotifier([]Sender{sender}, nil, testLogger())
	relay := NewEventNotifier(notifier, testLogger())
	stream := newFakeStream()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = relay.Run(ctx, stream)
	}()

	// A listing event is outside the default filter; a release is inside.
	stream.emit(domain.Event{Type: domain.EventWatchListed, WatchID: "w-1"})
	stream.emit(domain.Event{Type: domain.EventEscrowReleased, WatchID: "w-1", ContractID: "c-1"})

	require.Eventually(t, func() bool {
		return len(sender.titles()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Escrow released"}, sender.titles())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop on cancellation")
	}
}

func TestNotifierCustomFilter(t *testing.T) {
	sender := &recordingSender{name: "recording"}
	notifier := NewNotifier([]Sender{sender}, []string{domain.EventTokenMinted}, testLogger())
	ctx := context.Background()

	require.NoError(t, notifier.Notify(ctx, domain.EventEscrowReleased, "Escrow released", "watch=w-1"))
	require.NoError(t, notifier.Notify(ctx, domain.EventTokenMinted, "Token minted", "watch=w-1"))

	assert.Equal(t, []string{"Token minted"}, sender.titles())
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	broken := &recordingSender{name: "broken", err: errors.New("webhook down")}
	healthy := &recordingSender{name: "healthy"}
	notifier := NewNotifier([]Sender{broken, healthy}, nil, testLogger())

	err := notifier.Notify(context.Background(), domain.EventEscrowExpired, "Escrow expired", "watch=w-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, []string{"Escrow expired"}, healthy.titles())
}

func TestNotifierEnabled(t *testing.T) {
	assert.False(t, NewNotifier(nil, nil, testLogger()).Enabled())
	assert.True(t, NewNotifier([]Sender{&recordingSender{name: "r"}}, nil, testLogger()).Enabled())
}
