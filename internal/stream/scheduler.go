package stream

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/webconsole/internal/console"
	"github.com/JakeFAU/webconsole/internal/metrics"
)

// Config controls buffering, batching and padding for the Scheduler.
//   - BufferSize: capacity of the internal queue (default 4096).
//   - MaxBatchEvents: drain immediately once this many events queue (default 1000).
//   - FlushWindow: coalescing window armed by the first event after an empty
//     queue (default 500ms).
//   - MinMessageLength: batches shorter than this are padded (default 128).
//   - DisablePadding: skip padding entirely, for transports without buffering.
//   - Encoder: wire encoding (default JSONCodec).
//   - RandSource: randomness for padding (default time-seeded PCG).
//   - Logger: optional structured logger used for warnings.
type Config struct {
	BufferSize       int
	MaxBatchEvents   int
	FlushWindow      time.Duration
	MinMessageLength int
	DisablePadding   bool
	Encoder          Encoder
	RandSource       rand.Source
	Logger           *zap.Logger
}

const (
	defaultBufferSize       = 4096
	defaultMaxBatchEvents   = 1000
	defaultFlushWindow      = 500 * time.Millisecond
	defaultMinMessageLength = 128
	faultLogInterval        = 5 * time.Second
)

// entry is a queued event, or a line that was encoded elsewhere and must be
// passed through byte for byte.
type entry struct {
	evt console.Event
	raw []byte
}

// Scheduler queues events from any number of goroutines and drains them to a
// Transport from a single goroutine, so writes never interleave and bytes
// reach the wire in enqueue order. Transport failures are logged and dropped;
// the scheduler keeps draining for the lifetime of the operation.
type Scheduler struct {
	cfg       Config
	transport Transport
	padder    *Padder
	entries   chan entry
	flushCh   chan chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	logger    *zap.Logger

	dropped      atomic.Int64
	faults       atomic.Int64
	closed       atomic.Bool
	dropLimiter  *rate.Limiter
	faultLimiter *rate.Limiter

	closeOnce sync.Once
}

// NewScheduler initializes a Scheduler for transport and starts its drain
// goroutine. The returned Scheduler is immediately ready to accept events.
func NewScheduler(cfg Config, transport Transport) *Scheduler {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatchEvents <= 0 {
		cfg.MaxBatchEvents = defaultMaxBatchEvents
	}
	if cfg.FlushWindow <= 0 {
		cfg.FlushWindow = defaultFlushWindow
	}
	if cfg.MinMessageLength <= 0 {
		cfg.MinMessageLength = defaultMinMessageLength
	}
	if cfg.Encoder == nil {
		cfg.Encoder = JSONCodec{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cfg:          cfg,
		transport:    transport,
		padder:       NewPadder(cfg.RandSource),
		entries:      make(chan entry, cfg.BufferSize),
		flushCh:      make(chan chan struct{}),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		logger:       logger,
		dropLimiter:  rate.NewLimiter(rate.Every(faultLogInterval), 1),
		faultLimiter: rate.NewLimiter(rate.Every(faultLogInterval), 1),
	}
	go s.run()
	return s
}

// Encoder returns the wire encoder in use.
func (s *Scheduler) Encoder() Encoder {
	return s.cfg.Encoder
}

// Enqueue queues evt for the next batch. It never blocks; if the buffer is
// full or the scheduler is closed the event is dropped and counted.
func (s *Scheduler) Enqueue(evt console.Event) {
	if s == nil {
		return
	}
	s.push(entry{evt: evt})
}

// EnqueueRaw queues a pre-encoded line. A trailing newline is added when
// missing.
func (s *Scheduler) EnqueueRaw(line string) {
	if s == nil {
		return
	}
	raw := []byte(line)
	if len(raw) == 0 || raw[len(raw)-1] != '\n' {
		raw = append(raw, '\n')
	}
	s.push(entry{raw: raw})
}

func (s *Scheduler) push(e entry) {
	if s.closed.Load() {
		s.drop()
		return
	}
	select {
	case s.entries <- e:
	default:
		s.drop()
	}
}

func (s *Scheduler) drop() {
	s.dropped.Add(1)
	metrics.ObserveDropped(1)
	if s.dropLimiter.Allow() {
		count := s.dropped.Swap(0)
		s.logger.Warn("console events dropped due to backpressure", zap.Int64("dropped", count))
	}
}

// Flush drains everything queued so far and waits for the write to finish or
// ctx to end. Flushing a closed scheduler is a no-op.
func (s *Scheduler) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.flushCh <- done:
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("console flush request: %w", ctx.Err())
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("console flush wait: %w", ctx.Err())
	}
}

// Faults returns how many transport failures have been swallowed.
func (s *Scheduler) Faults() int64 {
	return s.faults.Load()
}

// Close drains remaining events, stops the timer, and blocks until the drain
// goroutine exits. It is safe to call multiple times.
func (s *Scheduler) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopCh)
	})
	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("console scheduler close wait: %w", ctx.Err())
	}
}

func (s *Scheduler) run() {
	defer close(s.doneCh)
	batch := make([]entry, 0, s.cfg.MaxBatchEvents)
	timer := time.NewTimer(s.cfg.FlushWindow)
	timer.Stop()
	timerActive := false
	for {
		select {
		case e := <-s.entries:
			batch = s.accept(batch, e, timer, &timerActive)
		case <-timer.C:
			timerActive = false
			batch = s.drainQueued(batch)
		case done := <-s.flushCh:
			stopTimer(timer, &timerActive)
			batch = s.drainQueued(batch)
			close(done)
		case <-s.stopCh:
			stopTimer(timer, &timerActive)
			s.drainQueued(batch)
			return
		}
	}
}

// accept appends e and arms the window only on the empty to non-empty
// transition, so a steady producer cannot keep postponing the write.
func (s *Scheduler) accept(batch []entry, e entry, timer *time.Timer, timerActive *bool) []entry {
	wasEmpty := len(batch) == 0
	batch = append(batch, e)
	if len(batch) >= s.cfg.MaxBatchEvents {
		stopTimer(timer, timerActive)
		s.write(batch)
		return batch[:0]
	}
	if wasEmpty && !*timerActive {
		timer.Reset(s.cfg.FlushWindow)
		*timerActive = true
	}
	return batch
}

// drainQueued pulls whatever is still sitting in the channel into batch and
// writes the lot as one batch.
func (s *Scheduler) drainQueued(batch []entry) []entry {
	for {
		select {
		case e := <-s.entries:
			batch = append(batch, e)
			continue
		default:
		}
		break
	}
	if len(batch) > 0 {
		s.write(batch)
	}
	return batch[:0]
}

func stopTimer(timer *time.Timer, timerActive *bool) {
	if !*timerActive {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	*timerActive = false
}

func (s *Scheduler) write(batch []entry) {
	var buf bytes.Buffer
	written := 0
	for _, e := range batch {
		if e.raw != nil {
			buf.Write(e.raw)
			written++
			continue
		}
		line, err := s.cfg.Encoder.Encode(e.evt)
		if err != nil {
			s.logger.Debug("discarding unencodable console event", zap.Error(err))
			continue
		}
		buf.Write(line)
		written++
	}
	buf.Write(s.cfg.Encoder.BatchComplete())

	padding := 0
	if !s.cfg.DisablePadding && buf.Len() < s.cfg.MinMessageLength {
		block := s.cfg.Encoder.WrapPadding(s.padder.Fill(s.cfg.MinMessageLength - buf.Len()))
		padding = len(block)
		buf.Write(block)
	}

	metrics.ObserveBatch(written, buf.Len(), padding)
	if _, err := s.transport.Write(buf.Bytes()); err != nil {
		s.fault("write", err)
		return
	}
	if err := s.transport.Flush(); err != nil {
		s.fault("flush", err)
	}
}

func (s *Scheduler) fault(stage string, err error) {
	total := s.faults.Add(1)
	metrics.ObserveTransportFault(stage)
	if s.faultLimiter.Allow() {
		s.logger.Warn("console transport fault; batch dropped",
			zap.String("stage", stage),
			zap.Int64("faults", total),
			zap.Error(err),
		)
	}
}
