package progress

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/webconsole/internal/clock/system"
	"github.com/JakeFAU/webconsole/internal/console"
)

// DefaultHeartbeat is how often an active Task refreshes its running line.
const DefaultHeartbeat = 2 * time.Second

type options struct {
	heartbeat time.Duration
	clock     console.Clock
}

// Option customises Enter.
type Option func(*options)

// WithHeartbeat sets the heartbeat period. A non-positive period disables it.
func WithHeartbeat(d time.Duration) Option {
	return func(o *options) { o.heartbeat = d }
}

// WithoutHeartbeat disables the heartbeat.
func WithoutHeartbeat() Option {
	return WithHeartbeat(0)
}

// WithClock sets the clock used for elapsed times.
func WithClock(c console.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// Task is the handle for one active subtask. It is itself a Reporter, so it
// can host further subtasks. The handle must be released with Leave, which
// Run does on every exit path.
type Task struct {
	name      string
	index     int
	count     int
	parent    Reporter
	rng       Range
	clock     console.Clock
	startedAt time.Time

	local atomic.Int64
	// gate orders Report against Leave: reports hold it shared, Leave takes
	// it exclusively to close the task.
	gate sync.RWMutex
	left bool

	mu       sync.Mutex
	children []*Task

	heartbeat *heartbeat
	leaveOnce sync.Once
}

// Enter starts subtask index of count under parent and allocates its range
// of the parent's scale. The returned Task must be released with Leave.
func Enter(parent Reporter, name string, index, count int, opts ...Option) (*Task, error) {
	if parent == nil {
		return nil, fmt.Errorf("%w: subtask %q has no parent", console.ErrInvalidArgument, name)
	}
	rng, err := AllocateRange(Full, index, count)
	if err != nil {
		return nil, fmt.Errorf("enter subtask %q: %w", name, err)
	}
	o := options{heartbeat: DefaultHeartbeat, clock: system.New()}
	for _, opt := range opts {
		opt(&o)
	}
	t := &Task{
		name:      name,
		index:     index,
		count:     count,
		parent:    parent,
		rng:       rng,
		clock:     o.clock,
		startedAt: o.clock.Now(),
	}
	if p, ok := parent.(*Task); ok {
		p.adopt(t)
	}
	if o.heartbeat > 0 {
		t.heartbeat = startHeartbeat(t, o.heartbeat)
	}
	return t, nil
}

// Run enters a subtask, runs fn with it, and leaves it however fn exits,
// including by panic.
func Run(parent Reporter, name string, index, count int, fn func(*Task) error, opts ...Option) error {
	t, err := Enter(parent, name, index, count, opts...)
	if err != nil {
		return err
	}
	defer t.Leave()
	return fn(t)
}

// Name returns the subtask name.
func (t *Task) Name() string { return t.name }

// Range returns the slice of the parent's scale this task reports into.
func (t *Task) Range() Range { return t.rng }

// Progress returns the last local percent reported.
func (t *Task) Progress() int { return int(t.local.Load()) }

// Report records a local percent and forwards its image in the parent's
// scale. Reports after Leave are ignored.
func (t *Task) Report(percent int) error {
	if err := console.CheckPercent(percent); err != nil {
		return err
	}
	t.gate.RLock()
	defer t.gate.RUnlock()
	if t.left {
		return nil
	}
	return t.report(percent)
}

func (t *Task) report(percent int) error {
	t.local.Store(int64(percent))
	return t.parent.Report(t.rng.Map(percent))
}

// ReportItems reports done out of total as a local percent.
func (t *Task) ReportItems(done, total int64) error {
	return t.Report(console.ItemsPercent(done, total))
}

// ReportTransient overwrites the status line.
func (t *Task) ReportTransient(template string, args ...any) {
	t.parent.ReportTransient(template, args...)
}

// Log emits a durable line.
func (t *Task) Log(sev console.Severity, template string, args ...any) {
	t.parent.Log(sev, template, args...)
}

// ReportException records err.
func (t *Task) ReportException(err error) {
	t.parent.ReportException(err)
}

// Elapsed returns the time since Enter.
func (t *Task) Elapsed() time.Duration {
	return t.clock.Now().Sub(t.startedAt)
}

// Leave releases the task exactly once: still-active subtasks are left first,
// the heartbeat stops, the status line is cleared, progress is forced to 100
// if it fell short, and a Debug line records the elapsed time.
func (t *Task) Leave() {
	t.leaveOnce.Do(func() {
		for _, child := range t.takeChildren() {
			child.Leave()
		}
		if t.heartbeat != nil {
			t.heartbeat.stop()
			t.parent.ReportTransient("")
		}
		t.gate.Lock()
		t.left = true
		t.gate.Unlock()
		if t.local.Load() < 100 {
			_ = t.report(100)
		}
		t.parent.Log(console.SeverityDebug, "%s has completed in %d sec", t.name, elapsedSeconds(t.Elapsed()))
		if p, ok := t.parent.(*Task); ok {
			p.release(t)
		}
	})
}

func (t *Task) adopt(child *Task) {
	t.mu.Lock()
	t.children = append(t.children, child)
	t.mu.Unlock()
}

func (t *Task) release(child *Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.children {
		if c == child {
			t.children = append(t.children[:i], t.children[i+1:]...)
			return
		}
	}
}

// takeChildren returns active children newest first.
func (t *Task) takeChildren() []*Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Task, 0, len(t.children))
	for i := len(t.children) - 1; i >= 0; i-- {
		out = append(out, t.children[i])
	}
	return out
}

// elapsedSeconds rounds d to the nearest whole second.
func elapsedSeconds(d time.Duration) int {
	return int(math.Round(d.Seconds()))
}
