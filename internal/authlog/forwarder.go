package authlog

import (
	"context"
	"log/slog"
	"time"

	"lmsgate/internal/platform/metrics"
)

const (
	defaultBufferSize   = 1024
	defaultWriteTimeout = 5 * time.Second
)

// Forwarder hands logged entries to a Sink from a single background
// goroutine. Enqueue never blocks: when the queue is full the entry is
// dropped and counted.
type Forwarder struct {
	sink         Sink
	queue        chan Entry
	breaker      *CircuitBreaker
	writeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithBufferSize sets the queue capacity.
func WithBufferSize(n int) ForwarderOption {
	return func(f *Forwarder) {
		if n > 0 {
			f.queue = make(chan Entry, n)
		}
	}
}

// WithCircuitBreaker replaces the default breaker.
func WithCircuitBreaker(cb *CircuitBreaker) ForwarderOption {
	return func(f *Forwarder) {
		if cb != nil {
			f.breaker = cb
		}
	}
}

// WithWriteTimeout bounds each sink write.
func WithWriteTimeout(d time.Duration) ForwarderOption {
	return func(f *Forwarder) {
		if d > 0 {
			f.writeTimeout = d
		}
	}
}

// NewForwarder creates a Forwarder for sink. Call Run to start delivery.
func NewForwarder(sink Sink, logger *slog.Logger, m *metrics.Metrics, opts ...ForwarderOption) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Forwarder{
		sink:         sink,
		queue:        make(chan Entry, defaultBufferSize),
		breaker:      NewCircuitBreaker(5, 30*time.Second),
		writeTimeout: defaultWriteTimeout,
		logger:       logger,
		metrics:      m,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Enqueue offers entry for delivery and reports whether it was accepted.
func (f *Forwarder) Enqueue(entry Entry) bool {
	select {
	case f.queue <- entry:
		return true
	default:
		f.metrics.IncAuthEventsDropped("buffer_full")
		f.logger.Warn("auth event forward queue full, dropping entry",
			"event_id", entry.ID.String(),
			"request_id", entry.RequestID,
		)
		return false
	}
}

// Pending returns the number of queued entries.
func (f *Forwarder) Pending() int {
	return len(f.queue)
}

// Run delivers entries until ctx is done, then drains what is still queued.
// Writes are bounded by the write timeout, not by ctx, so an in-flight entry
// is not lost to shutdown.
func (f *Forwarder) Run(ctx context.Context) error {
	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			f.drain(writeCtx)
			return nil
		case entry := <-f.queue:
			f.deliver(writeCtx, entry)
		}
	}
}

func (f *Forwarder) drain(ctx context.Context) {
	for {
		select {
		case entry := <-f.queue:
			f.deliver(ctx, entry)
		default:
			return
		}
	}
}

func (f *Forwarder) deliver(ctx context.Context, entry Entry) {
	if !f.breaker.Allow() {
		f.metrics.IncAuthEventsDropped("circuit_open")
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, f.writeTimeout)
	defer cancel()

	start := time.Now()
	if err := f.sink.Write(writeCtx, entry); err != nil {
		f.breaker.RecordFailure()
		f.metrics.IncSinkFailures()
		f.metrics.SetSinkCircuitOpen(f.breaker.IsOpen())
		f.logger.WarnContext(ctx, "failed to forward auth event",
			"event_id", entry.ID.String(),
			"request_id", entry.RequestID,
			"error", err,
		)
		return
	}
	f.breaker.RecordSuccess()
	f.metrics.ObserveSinkWrite(time.Since(start).Seconds())
	f.metrics.SetSinkCircuitOpen(false)
}
