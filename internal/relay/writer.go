package relay

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/webconsole/internal/console"
	"github.com/JakeFAU/webconsole/internal/metrics"
	"github.com/JakeFAU/webconsole/internal/stream"
)

// SignalPrefix marks a line as an out-of-band signal.
const SignalPrefix = "SIGNAL::"

const faultLogInterval = 5 * time.Second

// Writer is the producer side of the relay protocol. Each event becomes one
// line written straight to the transport and flushed; there is no batching
// and no padding. Write failures are logged and dropped.
type Writer struct {
	mu        sync.Mutex
	transport stream.Transport
	enc       stream.Encoder
	logger    *zap.Logger
	limiter   *rate.Limiter
	progress  atomic.Int64
	faults    atomic.Int64
}

// NewWriter builds a Writer over transport. A nil encoder selects
// stream.JSONCodec and a nil logger discards warnings.
func NewWriter(transport stream.Transport, enc stream.Encoder, logger *zap.Logger) *Writer {
	if enc == nil {
		enc = stream.JSONCodec{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		transport: transport,
		enc:       enc,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Every(faultLogInterval), 1),
	}
}

// Emit writes evt as one line.
func (w *Writer) Emit(evt console.Event) {
	if evt.Kind == console.KindProgress {
		_ = w.SetProgress(evt.Percent)
		return
	}
	w.writeEvent(evt)
}

// SetProgress writes a progress line when percent changed.
func (w *Writer) SetProgress(percent int) error {
	if err := console.CheckPercent(percent); err != nil {
		return err
	}
	if old := w.progress.Swap(int64(percent)); old == int64(percent) {
		return nil
	}
	w.writeEvent(console.NewProgress(percent))
	return nil
}

// SetTransientStatus writes a transient status line.
func (w *Writer) SetTransientStatus(template string, args ...any) {
	w.writeEvent(console.NewTransient(template, args...))
}

// Flush flushes the transport. Every line is already flushed as it is
// written, so this only matters for transports that buffer internally.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.transport.Flush(); err != nil {
		w.fault("flush", err)
	}
}

// Progress returns the last percent written.
func (w *Writer) Progress() int {
	return int(w.progress.Load())
}

// ForwardRaw writes an already-encoded line unchanged, which lets a relay
// be chained through another relay.
func (w *Writer) ForwardRaw(line string) {
	w.writeLine([]byte(strings.TrimSuffix(line, "\n") + "\n"))
}

// WriteSignal writes payload on the signal channel. Payloads must fit on one
// line.
func (w *Writer) WriteSignal(payload string) error {
	if strings.ContainsAny(payload, "\r\n") {
		return fmt.Errorf("%w: signal payload must be a single line", console.ErrInvalidArgument)
	}
	w.writeLine([]byte(SignalPrefix + payload + "\n"))
	metrics.ObserveRelayLine("out", "signal")
	return nil
}

// Faults returns how many write or flush failures were dropped.
func (w *Writer) Faults() int64 {
	return w.faults.Load()
}

func (w *Writer) writeEvent(evt console.Event) {
	line, err := w.enc.Encode(evt)
	if err != nil {
		w.logger.Debug("discarding unencodable relay event", zap.Error(err))
		return
	}
	w.writeLine(line)
	metrics.ObserveRelayLine("out", "event")
}

func (w *Writer) writeLine(line []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.transport.Write(line); err != nil {
		w.fault("write", err)
		return
	}
	if err := w.transport.Flush(); err != nil {
		w.fault("flush", err)
	}
}

func (w *Writer) fault(stage string, err error) {
	total := w.faults.Add(1)
	metrics.ObserveTransportFault(stage)
	if w.limiter.Allow() {
		w.logger.Warn("relay transport fault; line dropped",
			zap.String("stage", stage),
			zap.Int64("faults", total),
			zap.Error(err),
		)
	}
}
