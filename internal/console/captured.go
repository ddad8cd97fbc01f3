package console

import (
	"strings"
	"sync"
)

// CapturedSink accumulates rendered log output in memory for programmatic
// inspection. Errors and warnings are additionally collected into their own
// buffers. Progress and transient status are accepted but not retained beyond
// the last percent.
type CapturedSink struct {
	mu       sync.Mutex
	output   strings.Builder
	errors   strings.Builder
	warnings strings.Builder
	progress int
}

// NewCapturedSink returns an empty CapturedSink.
func NewCapturedSink() *CapturedSink {
	return &CapturedSink{}
}

// Emit renders log and exception events as "Severity: text" lines.
func (s *CapturedSink) Emit(evt Event) {
	var line string
	sev := evt.Severity
	switch evt.Kind {
	case KindLog:
		line = formatLine(sev, evt.Text())
	case KindException:
		sev = SeverityError
		line = formatLine(sev, evt.Exception.Render())
	case KindProgress:
		_ = s.SetProgress(evt.Percent)
		return
	default:
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output.WriteString(line)
	switch sev {
	case SeverityError:
		s.errors.WriteString(line)
	case SeverityWarning:
		s.warnings.WriteString(line)
	}
}

// SetProgress records the percent.
func (s *CapturedSink) SetProgress(percent int) error {
	if err := CheckPercent(percent); err != nil {
		return err
	}
	s.mu.Lock()
	s.progress = percent
	s.mu.Unlock()
	return nil
}

// SetTransientStatus is accepted and discarded.
func (s *CapturedSink) SetTransientStatus(string, ...any) {}

// Flush is a no-op; output is always available.
func (s *CapturedSink) Flush() {}

// Progress returns the last percent.
func (s *CapturedSink) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Output returns everything logged so far.
func (s *CapturedSink) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output.String()
}

// Errors returns only Error-severity lines.
func (s *CapturedSink) Errors() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors.String()
}

// Warnings returns only Warning-severity lines.
func (s *CapturedSink) Warnings() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warnings.String()
}

// HasErrors reports whether any Error line was captured.
func (s *CapturedSink) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors.Len() > 0
}

// HasWarnings reports whether any Warning line was captured.
func (s *CapturedSink) HasWarnings() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warnings.Len() > 0
}

func formatLine(sev Severity, text string) string {
	return string(sev) + ": " + text + "\n"
}
