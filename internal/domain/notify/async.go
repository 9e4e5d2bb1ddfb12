package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultQueueSize = 256

// AsyncNotifier decouples notification delivery from the triggering state
// transition with a bounded channel and a background worker. When the queue
// is full the message is dropped and counted; the caller never blocks beyond
// the configured send timeout and never sees a delivery error.
type AsyncNotifier struct {
	sink   Sink
	queue  chan Message
	wg     sync.WaitGroup
	logger *slog.Logger

	queueSize   int
	sendTimeout time.Duration
	dropCount   atomic.Int64
}

// AsyncOption configures AsyncNotifier.
type AsyncOption func(*AsyncNotifier)

// WithQueueSize sets the channel buffer size.
func WithQueueSize(size int) AsyncOption {
	return func(n *AsyncNotifier) {
		n.queue = make(chan Message, size)
		n.queueSize = size
	}
}

// WithSendTimeout sets how long Notify blocks when the queue is full before
// dropping. Zero drops immediately.
func WithSendTimeout(d time.Duration) AsyncOption {
	return func(n *AsyncNotifier) {
		n.sendTimeout = d
	}
}

// NewAsyncNotifier creates an AsyncNotifier wrapping the given sink.
func NewAsyncNotifier(sink Sink, logger *slog.Logger, opts ...AsyncOption) *AsyncNotifier {
	n := &AsyncNotifier{
		sink:        sink,
		queue:       make(chan Message, defaultQueueSize),
		logger:      logger,
		queueSize:   defaultQueueSize,
		sendTimeout: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Start begins the background delivery worker.
func (n *AsyncNotifier) Start() {
	n.wg.Add(1)
	go n.worker()
}

// Stop drains the queue and waits for the worker to finish.
func (n *AsyncNotifier) Stop() {
	close(n.queue)
	n.wg.Wait()
}

// Notify enqueues the message. Fast non-blocking send first, then a bounded
// wait; on timeout the message is dropped and counted.
func (n *AsyncNotifier) Notify(_ context.Context, msg Message) error {
	select {
	case n.queue <- msg:
		return nil
	default:
	}

	if n.sendTimeout <= 0 {
		n.drop(msg)
		return nil
	}

	select {
	case n.queue <- msg:
	case <-time.After(n.sendTimeout):
		n.drop(msg)
	}
	return nil
}

// Dropped returns the total number of dropped messages.
func (n *AsyncNotifier) Dropped() int64 {
	return n.dropCount.Load()
}

func (n *AsyncNotifier) drop(msg Message) {
	drops := n.dropCount.Add(1)
	n.logger.Warn("notification dropped",
		"kind", msg.Kind,
		"user_id", msg.UserID,
		"total_drops", drops,
	)
}

// worker drains the queue until Stop closes it. Delivery errors are logged
// and discarded per the fire-and-forget contract.
func (n *AsyncNotifier) worker() {
	defer n.wg.Done()
	for msg := range n.queue {
		deliverCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.sink.Notify(deliverCtx, msg); err != nil {
			n.logger.Warn("notification delivery failed",
				"kind", msg.Kind,
				"user_id", msg.UserID,
				"error", err,
			)
		}
		cancel()
	}
}

// Compile-time interface verification.
var _ Sink = (*AsyncNotifier)(nil)
