package authlink

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// auditDispatcher hands audit events to a sink on one background goroutine
// so association writes never wait on audit I/O unless configured to.
type auditDispatcher struct {
	sink       AuditSink
	logger     logrus.FieldLogger
	dropIfFull bool

	// mu guards queue against being closed while an Emit is sending.
	mu      sync.RWMutex
	queue   chan AuditEvent
	closed  bool
	stopped chan struct{}

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger logrus.FieldLogger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	d := &auditDispatcher{
		sink:       sink,
		logger:     logger,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan AuditEvent, size),
		stopped:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.stopped)
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *auditDispatcher) deliver(event AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logrus.Fields{
				"audit": event.EventType,
				"panic": r,
			}).Error("audit sink panicked; event lost")
		}
	}()
	d.sink.Emit(context.Background(), event)
	d.delivered.Add(1)
}

// Emit queues event for the sink. With DropIfFull a full queue drops the
// event and bumps the dropped counter; otherwise Emit waits for room or for
// ctx to end. Events emitted after Close are discarded.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close delivers everything already queued, then stops the goroutine. It is
// safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}

	d.mu.Lock()
	first := !d.closed
	if first {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	<-d.stopped

	if n := d.dropped.Load(); first && n > 0 {
		d.logger.WithFields(logrus.Fields{
			"dropped":   n,
			"delivered": d.delivered.Load(),
		}).Warn("audit events dropped under backpressure")
	}
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *auditDispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
