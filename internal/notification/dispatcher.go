package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	obsmetrics "github.com/smallbiznis/backoffice/internal/observability/metrics"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Publisher is what domain services depend on. Publish never fails the
// caller.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

type DispatcherOptions struct {
	Async   bool
	Timeout time.Duration
	Metrics *obsmetrics.Metrics
}

type Dispatcher struct {
	sink    Sink
	log     *zap.Logger
	metrics *obsmetrics.Metrics
	async   bool
	timeout time.Duration

	wg sync.WaitGroup
}

func NewDispatcher(sink Sink, log *zap.Logger, opts DispatcherOptions) *Dispatcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dispatcher{
		sink:    sink,
		log:     log.Named("notification.dispatcher"),
		metrics: opts.Metrics,
		async:   opts.Async,
		timeout: timeout,
	}
}

func (d *Dispatcher) Publish(ctx context.Context, evt Event) {
	if d == nil || d.sink == nil {
		return
	}
	if !d.async {
		d.deliver(ctx, evt)
		return
	}

	// The request context is usually cancelled before delivery finishes.
	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(detached, evt)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, evt Event) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.notify(ctx, evt)
	if err == nil {
		return
	}
	d.log.Warn("notification dropped",
		zap.String("sink", d.sink.Name()),
		zap.String("event_id", evt.ID),
		zap.String("event_type", string(evt.Type)),
		zap.Error(err),
	)
	d.metrics.RecordNotificationDropped(ctx, d.sink.Name(), string(evt.Type))
}

func (d *Dispatcher) notify(ctx context.Context, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return d.sink.Notify(ctx, evt)
}

// Drain waits for in-flight async deliveries or until ctx is done.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
