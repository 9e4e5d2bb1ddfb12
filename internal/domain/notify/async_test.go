package notify

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"
)

// blockingSink holds deliveries until released, so tests can fill the queue.
type blockingSink struct {
	mu       sync.Mutex
	received []Message
	release  chan struct{}
	fail     error
}

func newBlockingSink() *blockingSink {
	return &blockingSink{release: make(chan struct{})}
}

func (s *blockingSink) Notify(ctx context.Context, msg Message) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.received = append(s.received, msg)
	return nil
}

func (s *blockingSink) Received() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.received))
	copy(out, s.received)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testMessage() Message {
	return Message{
		OrganizationID: uuid.New(),
		UserID:         uuid.New(),
		Kind:           KindOverrideRequested,
		Title:          "Clock override requested",
	}
}

func TestAsyncNotifier_DeliversQueuedMessages(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := newBlockingSink()
	close(sink.release)
	n := NewAsyncNotifier(sink, testLogger())
	n.Start()

	for i := 0; i < 5; i++ {
		if err := n.Notify(context.Background(), testMessage()); err != nil {
			t.Fatalf("Notify(): %v", err)
		}
	}
	n.Stop()

	if got := len(sink.Received()); got != 5 {
		t.Errorf("delivered = %d, want 5", got)
	}
	if n.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", n.Dropped())
	}
}

func TestAsyncNotifier_DropsWhenQueueFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := newBlockingSink()
	n := NewAsyncNotifier(sink, testLogger(),
		WithQueueSize(1),
		WithSendTimeout(0),
	)
	n.Start()

	// The worker blocks on the first delivery; the queue holds one more; the
	// rest are dropped without blocking the caller.
	for i := 0; i < 4; i++ {
		if err := n.Notify(context.Background(), testMessage()); err != nil {
			t.Fatalf("Notify(): %v", err)
		}
	}
	if n.Dropped() == 0 {
		t.Error("Dropped() = 0, want drops with a full queue")
	}

	close(sink.release)
	n.Stop()
}

func TestAsyncNotifier_StopDrainsQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := newBlockingSink()
	n := NewAsyncNotifier(sink, testLogger(), WithQueueSize(8))
	n.Start()

	for i := 0; i < 3; i++ {
		if err := n.Notify(context.Background(), testMessage()); err != nil {
			t.Fatalf("Notify(): %v", err)
		}
	}

	close(sink.release)
	n.Stop()

	if got := len(sink.Received()); got != 3 {
		t.Errorf("delivered after Stop = %d, want 3", got)
	}
}

func TestAsyncNotifier_DeliveryFailureIsSwallowed(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := newBlockingSink()
	sink.fail = errors.New("smtp down")
	close(sink.release)
	n := NewAsyncNotifier(sink, testLogger())
	n.Start()

	if err := n.Notify(context.Background(), testMessage()); err != nil {
		t.Errorf("Notify() = %v, delivery failures must not reach the caller", err)
	}
	n.Stop()
}

func TestAsyncNotifier_BoundedWaitTimesOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := newBlockingSink()
	n := NewAsyncNotifier(sink, testLogger(),
		WithQueueSize(1),
		WithSendTimeout(10*time.Millisecond),
	)
	n.Start()

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := n.Notify(context.Background(), testMessage()); err != nil {
			t.Fatalf("Notify(): %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Notify() blocked %v, want bounded waits", elapsed)
	}
	if n.Dropped() == 0 {
		t.Error("Dropped() = 0, want timed-out sends counted")
	}

	close(sink.release)
	n.Stop()
}

func TestLogSink_Notify(t *testing.T) {
	s := NewLogSink(testLogger())
	if err := s.Notify(context.Background(), testMessage()); err != nil {
		t.Errorf("Notify() = %v, want nil", err)
	}
}
