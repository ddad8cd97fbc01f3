package console

import (
	"io"
	"sync"
)

// TextSink writes log and exception events as plain "Severity: text" lines to
// an io.Writer. Progress and transient status are not written. Write errors
// are dropped, matching the best-effort behaviour of the live stream.
type TextSink struct {
	mu       sync.Mutex
	w        io.Writer
	progress int
}

// NewTextSink wraps w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

// Emit writes a single rendered line.
func (s *TextSink) Emit(evt Event) {
	var line string
	switch evt.Kind {
	case KindLog:
		line = formatLine(evt.Severity, evt.Text())
	case KindException:
		line = formatLine(SeverityError, evt.Exception.Render())
	case KindProgress:
		_ = s.SetProgress(evt.Percent)
		return
	default:
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, line)
}

// SetProgress remembers the percent without writing it.
func (s *TextSink) SetProgress(percent int) error {
	if err := CheckPercent(percent); err != nil {
		return err
	}
	s.mu.Lock()
	s.progress = percent
	s.mu.Unlock()
	return nil
}

// SetTransientStatus is ignored.
func (s *TextSink) SetTransientStatus(string, ...any) {}

// Flush flushes the writer when it supports it.
func (s *TextSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.w.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
}

// Progress returns the last percent.
func (s *TextSink) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}
