package biometric

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples the verification path from the audit sink.
// Records are queued on a buffered channel and delivered by a single
// consumer goroutine, so a slow sink cannot stall Verify.
//
// Close must not race Emit: callers stop verifying before closing the
// engine.
type auditDispatcher struct {
	sink       AuditSink
	queue      chan VerificationRecord
	dropIfFull bool
	dropped    uint64
	done       chan struct{}
	closeOnce  sync.Once
}

// newAuditDispatcher returns nil when auditing is disabled or no sink is
// configured; a nil dispatcher drops everything silently.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled || sink == nil {
		return nil
	}
	d := &auditDispatcher{
		sink:       sink,
		queue:      make(chan VerificationRecord, cfg.BufferSize),
		dropIfFull: cfg.DropIfFull,
		done:       make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	for record := range d.queue {
		// Sink errors are absorbed; the dispatcher has nobody to
		// report them to and must keep draining.
		_ = d.sink.Emit(context.Background(), record)
	}
	close(d.done)
}

// Emit queues a record. With DropIfFull it never blocks; otherwise it
// waits until the queue accepts the record or ctx is done.
func (d *auditDispatcher) Emit(ctx context.Context, record VerificationRecord) {
	if d == nil {
		return
	}
	if d.dropIfFull {
		select {
		case d.queue <- record:
		default:
			atomic.AddUint64(&d.dropped, 1)
		}
		return
	}
	select {
	case d.queue <- record:
	case <-ctx.Done():
		atomic.AddUint64(&d.dropped, 1)
	}
}

// Close drains the queue and waits for the consumer to finish.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.queue)
		<-d.done
	})
}

// Dropped reports how many records were lost to a full queue.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return atomic.LoadUint64(&d.dropped)
}
