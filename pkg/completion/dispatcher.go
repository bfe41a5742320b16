package completion

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDrainTimeout bounds how long buffered events are still processed
// after shutdown begins.
const DefaultDrainTimeout = 30 * time.Second

// Handler finalizes one job. *Orchestrator implements it.
type Handler interface {
	Handle(ctx context.Context, ev FinishedEvent) Summary
}

// DispatcherMetrics observes the dispatcher. All methods must be non-blocking.
type DispatcherMetrics interface {
	EventsInFlightIncr()
	EventsInFlightDecr()
}

// Dispatcher consumes finished events and hands each to a Handler. Events are
// processed by a fixed pool of workers; one event is handled by exactly one
// worker.
type Dispatcher struct {
	handler      Handler
	workers      int
	drainTimeout time.Duration
	metrics      DispatcherMetrics
	logger       *zap.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithWorkers sets the number of concurrent workers. Values below 1 mean 1.
func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n < 1 {
			n = 1
		}
		d.workers = n
	}
}

// WithDrainTimeout sets how long buffered events are drained after shutdown.
func WithDrainTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.drainTimeout = timeout
	}
}

// WithDispatcherMetrics attaches an in-flight gauge.
func WithDispatcherMetrics(m DispatcherMetrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher returns a dispatcher feeding handler.
func NewDispatcher(handler Handler, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handler:      handler,
		workers:      1,
		drainTimeout: DefaultDrainTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run processes events from ch until ctx is cancelled or ch is closed. After
// cancellation, events still buffered in ch are drained with a fresh context
// bounded by the drain timeout. Run returns once every worker has stopped.
func (d *Dispatcher) Run(ctx context.Context, ch <-chan FinishedEvent) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.work(ctx, worker, ch)
		}(i)
	}
	wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context, worker int, ch <-chan FinishedEvent) {
	for {
		if ctx.Err() != nil {
			d.drain(worker, ch)
			return
		}
		select {
		case <-ctx.Done():
			d.drain(worker, ch)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			d.dispatch(ctx, ev)
		}
	}
}

// drain handles events left in the buffer after shutdown. Handlers get a
// background context because ctx is already cancelled.
func (d *Dispatcher) drain(worker int, ch <-chan FinishedEvent) {
	drainCtx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()

	log := d.logger.With(zap.Int("worker", worker))
	count := 0
	for {
		if drainCtx.Err() != nil {
			log.Warn("Drain timeout reached", zap.Int("processed", count))
			return
		}
		select {
		case ev, ok := <-ch:
			if !ok {
				log.Debug("Drain complete; channel closed", zap.Int("processed", count))
				return
			}
			d.dispatch(drainCtx, ev)
			count++
		default:
			if count > 0 {
				log.Info("Drain complete", zap.Int("processed", count))
			}
			return
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev FinishedEvent) {
	if d.metrics != nil {
		d.metrics.EventsInFlightIncr()
		defer d.metrics.EventsInFlightDecr()
	}
	d.handler.Handle(ctx, ev)
}
