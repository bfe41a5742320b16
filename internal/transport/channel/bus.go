// Package channel carries job-finished signals from the HTTP surface to the
// completion dispatcher over a buffered channel.
package channel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/3leaps/gogenie/pkg/completion"
)

// DefaultEmitTimeout is how long Emit waits for buffer space.
const DefaultEmitTimeout = 5 * time.Second

var (
	// ErrBufferFull is returned when no buffer space became available in time.
	ErrBufferFull = errors.New("event bus buffer full")

	// ErrClosed is returned when emitting to a closed bus.
	ErrClosed = errors.New("event bus closed")
)

// MetricsSink observes the bus. All methods must be non-blocking.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	EmitError()
}

// EventBus is a buffered, in-process queue of completion signals.
type EventBus struct {
	ch          chan completion.FinishedEvent
	emitTimeout time.Duration
	metrics     MetricsSink
	now         func() time.Time

	mu     sync.RWMutex
	closed bool
}

// Option configures an EventBus.
type Option func(*EventBus)

// WithEmitTimeout sets how long Emit waits for buffer space.
func WithEmitTimeout(d time.Duration) Option {
	return func(b *EventBus) {
		b.emitTimeout = d
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m MetricsSink) Option {
	return func(b *EventBus) {
		b.metrics = m
	}
}

func NewEventBus(buffer int, opts ...Option) *EventBus {
	if buffer < 0 {
		buffer = 0
	}
	b := &EventBus{
		ch:          make(chan completion.FinishedEvent, buffer),
		emitTimeout: DefaultEmitTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Emit queues event, waiting up to the emit timeout for buffer space. An empty
// event ID is filled with a random UUID and a zero ReceivedAt with the current
// time.
func (b *EventBus) Emit(ctx context.Context, event completion.FinishedEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.emitError()
		return ErrClosed
	}
	event = b.stamp(event)

	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case b.ch <- event:
		b.sizeUpdate()
		return nil
	case <-ctx.Done():
		b.emitError()
		return ctx.Err()
	case <-timer.C:
		b.emitError()
		return ErrBufferFull
	}
}

// TryEmit queues event only if buffer space is free right now.
func (b *EventBus) TryEmit(event completion.FinishedEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.emitError()
		return ErrClosed
	}
	event = b.stamp(event)

	select {
	case b.ch <- event:
		b.sizeUpdate()
		return nil
	default:
		b.emitError()
		return ErrBufferFull
	}
}

// Channel returns the receive side of the bus.
func (b *EventBus) Channel() <-chan completion.FinishedEvent {
	return b.ch
}

// Len returns the number of buffered events.
func (b *EventBus) Len() int {
	return len(b.ch)
}

// Close stops accepting events and closes the channel once pending emits have
// returned. Buffered events stay readable. Close is idempotent.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}

func (b *EventBus) stamp(event completion.FinishedEvent) completion.FinishedEvent {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = b.now().UTC()
	}
	return event
}

func (b *EventBus) sizeUpdate() {
	if b.metrics != nil {
		b.metrics.BufferSizeUpdate(len(b.ch))
	}
}

func (b *EventBus) emitError() {
	if b.metrics != nil {
		b.metrics.EmitError()
	}
}
