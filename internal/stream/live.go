package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/webconsole/internal/console"
)

const defaultFlushTimeout = 10 * time.Second

// LiveSink is the console.Sink that streams to a viewer through a Scheduler.
// Every call only enqueues, so monitored code is never blocked by the network.
type LiveSink struct {
	sched        *Scheduler
	progress     atomic.Int64
	flushTimeout time.Duration
}

// NewLiveSink wraps sched.
func NewLiveSink(sched *Scheduler) *LiveSink {
	return &LiveSink{sched: sched, flushTimeout: defaultFlushTimeout}
}

// Emit enqueues evt.
func (l *LiveSink) Emit(evt console.Event) {
	if evt.Kind == console.KindProgress {
		_ = l.SetProgress(evt.Percent)
		return
	}
	l.sched.Enqueue(evt)
}

// SetProgress enqueues a progress event when percent differs from the last
// value sent.
func (l *LiveSink) SetProgress(percent int) error {
	if err := console.CheckPercent(percent); err != nil {
		return err
	}
	if old := l.progress.Swap(int64(percent)); old == int64(percent) {
		return nil
	}
	l.sched.Enqueue(console.NewProgress(percent))
	return nil
}

// SetTransientStatus enqueues a status line that viewers overwrite in place.
func (l *LiveSink) SetTransientStatus(template string, args ...any) {
	l.sched.Enqueue(console.NewTransient(template, args...))
}

// Flush drains the scheduler immediately and waits for the write, bounded by
// the flush timeout.
func (l *LiveSink) Flush() {
	ctx, cancel := context.WithTimeout(context.Background(), l.flushTimeout)
	defer cancel()
	_ = l.sched.Flush(ctx)
}

// Progress returns the last percent sent.
func (l *LiveSink) Progress() int {
	return int(l.progress.Load())
}

// ForwardRaw passes an already-encoded line through unchanged.
func (l *LiveSink) ForwardRaw(line string) {
	l.sched.EnqueueRaw(line)
}

// Signal enqueues an out-of-band signal for the viewer.
func (l *LiveSink) Signal(payload string) {
	l.sched.Enqueue(console.NewSignal(payload))
}
