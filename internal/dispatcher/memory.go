package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"fakebatch/pkg/backoff"
	"fakebatch/pkg/circuitbreaker"
	"fakebatch/pkg/cloudevent"
)

// MemoryDispatcher buffers events in a bounded channel and delivers
// them through a worker pool. When the buffer is full, Dispatch drops
// the event rather than blocking the caller; webhook delivery must
// never stall the job lifecycle.
type MemoryDispatcher struct {
	queue    chan *Event
	sender   *cloudevent.Sender
	breakers *circuitbreaker.Registry
	retry    backoff.Policy
	logger   *slog.Logger
	metrics  MetricsRecorder

	counters counters

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// counters back the Stats snapshot.
type counters struct {
	queued       atomic.Int64
	delivered    atomic.Int64
	failed       atomic.Int64
	dropped      atomic.Int64
	requeued     atomic.Int64
	retriesTotal atomic.Int64
}

// MetricsRecorder is an optional sink for dispatcher metrics.
type MetricsRecorder interface {
	RecordDispatcherDelivered(ctx context.Context, durationSeconds float64)
	RecordDispatcherFailed(ctx context.Context)
	RecordDispatcherDropped(ctx context.Context)
	RecordDispatcherRequeued(ctx context.Context)
	RecordDispatcherQueueSize(ctx context.Context, size int64)
}

// NewMemory creates a dispatcher and starts its workers. Pass nil
// metrics to disable instrumentation.
func NewMemory(cfg MemoryConfig, metrics MetricsRecorder) *MemoryDispatcher {
	cfg = cfg.withDefaults()

	d := &MemoryDispatcher{
		queue:  make(chan *Event, cfg.BufferSize),
		sender: cloudevent.NewSender(cfg.HTTPTimeout),
		breakers: circuitbreaker.NewRegistry(circuitbreaker.Config{
			Threshold: defaultBreakerThreshold,
			Cooldown:  defaultBreakerCooldown,
		}),
		retry:    backoff.Policy{Base: defaultInitialBackoff, Cap: defaultMaxBackoff},
		logger:   slog.With("component", "dispatcher"),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.worker()
	}

	if metrics != nil {
		go d.reportQueueSize()
	}

	d.logger.Info("Dispatcher started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return d
}

func (d *MemoryDispatcher) reportQueueSize() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.shutdown:
			return
		case <-ticker.C:
			d.metrics.RecordDispatcherQueueSize(context.Background(), int64(len(d.queue)))
		}
	}
}

// Dispatch queues an event without blocking. Returns ErrBufferFull
// when the buffer has no room; the event is counted as dropped.
func (d *MemoryDispatcher) Dispatch(event *Event) error {
	if d.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	select {
	case d.queue <- event:
		d.counters.queued.Add(1)
		return nil
	default:
		d.markDropped(context.Background())
		d.logger.Warn("Event dropped, buffer full",
			"destination", destinationHost(event.Destination),
			"type", event.Payload.Type,
		)
		return ErrBufferFull
	}
}

// Stats returns a point-in-time snapshot of dispatcher activity.
func (d *MemoryDispatcher) Stats() Stats {
	snap := d.breakers.Snapshot()
	return Stats{
		QueueDepth:    len(d.queue),
		Queued:        d.counters.queued.Load(),
		Delivered:     d.counters.delivered.Load(),
		Failed:        d.counters.failed.Load(),
		Dropped:       d.counters.dropped.Load(),
		Requeued:      d.counters.requeued.Load(),
		RetriesTotal:  d.counters.retriesTotal.Load(),
		BreakersTotal: snap.Total,
		BreakersOpen:  snap.Open,
	}
}

// Close stops the workers after they drain the queue. The context
// deadline bounds how long the drain may take.
func (d *MemoryDispatcher) Close(ctx context.Context) error {
	if d.closed.Swap(true) {
		return nil
	}

	d.logger.Info("Dispatcher shutting down", "queued", len(d.queue))
	close(d.shutdown)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Dispatcher shutdown complete",
			"delivered", d.counters.delivered.Load(),
			"failed", d.counters.failed.Load(),
			"dropped", d.counters.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		d.logger.Warn("Dispatcher shutdown timed out", "remaining", len(d.queue))
		return ctx.Err()
	}
}

func (d *MemoryDispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.shutdown:
			// Best effort on what is already queued
			for {
				select {
				case event := <-d.queue:
					d.deliver(event)
				default:
					return
				}
			}
		case event := <-d.queue:
			d.deliver(event)
		}
	}
}

func (d *MemoryDispatcher) deliver(event *Event) {
	host := destinationHost(event.Destination)
	breaker := d.breakers.Get(host)

	if !breaker.Allow() {
		d.requeue(event, host)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	err := d.sendWithRetry(ctx, event)
	if err != nil {
		breaker.RecordFailure()
		d.counters.failed.Add(1)
		if d.metrics != nil {
			d.metrics.RecordDispatcherFailed(ctx)
		}
		d.logger.Warn("Delivery failed", "destination", host, "type", event.Payload.Type, "error", err)
		return
	}

	breaker.RecordSuccess()
	d.counters.delivered.Add(1)
	if d.metrics != nil {
		d.metrics.RecordDispatcherDelivered(ctx, time.Since(start).Seconds())
	}
}

// requeue re-enqueues an event after the breaker cooldown. Events that
// keep hitting an open circuit are dropped after defaultMaxRequeues.
func (d *MemoryDispatcher) requeue(event *Event, host string) {
	if event.Requeues >= defaultMaxRequeues {
		d.markDropped(context.Background())
		d.logger.Warn("Event dropped, max requeues reached",
			"destination", host,
			"type", event.Payload.Type,
			"requeues", event.Requeues,
		)
		return
	}

	event.Requeues++
	d.counters.requeued.Add(1)
	if d.metrics != nil {
		d.metrics.RecordDispatcherRequeued(context.Background())
	}

	go func() {
		select {
		case <-d.shutdown:
			return
		case <-time.After(defaultBreakerCooldown):
		}

		select {
		case d.queue <- event:
			d.logger.Debug("Event requeued", "destination", host, "type", event.Payload.Type, "requeues", event.Requeues)
		case <-d.shutdown:
		default:
			d.markDropped(context.Background())
			d.logger.Warn("Event dropped on requeue, buffer full", "destination", host, "type", event.Payload.Type)
		}
	}()
}

func (d *MemoryDispatcher) sendWithRetry(ctx context.Context, event *Event) error {
	opts := cloudevent.SendOptions{SigningKey: event.SigningKey}

	var lastErr error
	for attempt := range defaultMaxRetries + 1 {
		if attempt > 0 {
			d.counters.retriesTotal.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.retry.Delay(attempt)):
			}
		}

		lastErr = d.sender.Send(ctx, event.Destination, event.Payload, opts)
		if lastErr == nil {
			return nil
		}
		// 4xx means the receiver rejected the payload, retrying won't help
		if cloudevent.IsClientError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (d *MemoryDispatcher) markDropped(ctx context.Context) {
	d.counters.dropped.Add(1)
	if d.metrics != nil {
		d.metrics.RecordDispatcherDropped(ctx)
	}
}

// destinationHost keys circuit breakers by webhook host.
func destinationHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

var _ Dispatcher = (*MemoryDispatcher)(nil)
