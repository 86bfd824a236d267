// Package notify delivers ledger notices to users. Delivery is best effort:
// the ledger hands notices to a Dispatcher, which queues them and fans each
// one out to every configured Sink from a pool of workers.
package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/logger"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"golang.org/x/sync/errgroup"
)

// Sink is one delivery channel for notices.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n model.Notice) error
}

const defaultDeliverTimeout = 10 * time.Second

// Dispatcher is a bounded, non-blocking queue in front of the sinks.
type Dispatcher struct {
	sinks   []Sink
	workers int
	timeout time.Duration
	logger  logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan model.Notice

	dropped   atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// NewDispatcher creates a Dispatcher. Call Run to start the workers.
func NewDispatcher(sinks []Sink, workers, bufferSize int, l logger.Logger) *Dispatcher {
	return &Dispatcher{
		sinks:   sinks,
		workers: max(1, workers),
		timeout: defaultDeliverTimeout,
		logger:  l,
		queue:   make(chan model.Notice, max(1, bufferSize)),
	}
}

// Emit queues notices without blocking. When the queue is full, or the
// dispatcher is closed, the notice is dropped and logged.
func (d *Dispatcher) Emit(ctx context.Context, notices ...model.Notice) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, n := range notices {
		if d.closed {
			d.drop(n, "dispatcher closed")
			continue
		}
		select {
		case d.queue <- n:
		default:
			d.drop(n, "queue full")
		}
	}
}

func (d *Dispatcher) drop(n model.Notice, reason string) {
	d.dropped.Add(1)
	d.logger.Warn("Dropping notice",
		"reason", reason,
		"kind", n.Kind,
		"event_id", n.EventID,
		"user_id", n.UserID,
	)
}

// Run delivers queued notices until ctx is cancelled or Close has been
// called and the queue is drained.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("Notice dispatcher started", "workers", d.workers, "sinks", len(d.sinks))

	g, ctx := errgroup.WithContext(ctx)
	for range d.workers {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case n, ok := <-d.queue:
					if !ok {
						return nil
					}
					d.deliver(ctx, n)
				}
			}
		})
	}

	err := g.Wait()
	d.logger.Info("Notice dispatcher stopped",
		"delivered", d.delivered.Load(),
		"failed", d.failed.Load(),
		"dropped", d.dropped.Load(),
	)
	return err
}

// Close stops accepting notices. Workers finish what is already queued.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	close(d.queue)
}

// Stats reports delivery counters.
func (d *Dispatcher) Stats() (delivered, failed, dropped int64) {
	return d.delivered.Load(), d.failed.Load(), d.dropped.Load()
}

// deliver sends n to every sink. Sink errors and panics are logged and
// swallowed.
func (d *Dispatcher) deliver(ctx context.Context, n model.Notice) {
	for _, sink := range d.sinks {
		if err := d.deliverOne(ctx, sink, n); err != nil {
			d.failed.Add(1)
			d.logger.Error("Failed to deliver notice",
				"sink", sink.Name(),
				"kind", n.Kind,
				"event_id", n.EventID,
				"user_id", n.UserID,
				"error", err,
			)
			continue
		}
		d.delivered.Add(1)
	}
}

func (d *Dispatcher) deliverOne(ctx context.Context, sink Sink, n model.Notice) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return sink.Deliver(ctx, n)
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("sink panicked: %v", e.value)
}
