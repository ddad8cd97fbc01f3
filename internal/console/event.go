// Package console defines the events a monitored operation emits and the
// Sink destinations that render them.
package console

import (
	"errors"
	"fmt"
	"time"
)

// Kind denotes what an Event represents.
type Kind string

// Supported event kinds. KindBatchComplete and KindPadding only ever appear on
// the wire; callers never emit them.
const (
	KindLog             Kind = "log"
	KindTransientStatus Kind = "transient"
	KindProgress        Kind = "progress"
	KindException       Kind = "exception"
	KindSignal          Kind = "signal"
	KindBatchComplete   Kind = "batch_complete"
	KindPadding         Kind = "padding"
)

// Severity classifies log output.
type Severity string

// Supported severities.
const (
	SeverityInfo    Severity = "Info"
	SeverityWarning Severity = "Warning"
	SeverityError   Severity = "Error"
	SeverityDebug   Severity = "Debug"
)

// Event is the atomic unit of console output. It is a value type and must not
// be mutated once handed to a Sink.
type Event struct {
	// Kind selects how sinks treat the event.
	Kind Kind
	// Severity applies to log and exception events.
	Severity Severity
	// Template is the message text, optionally containing fmt verbs.
	Template string
	// Args are interpolated into Template by whichever sink renders text.
	Args []any
	// Percent carries the global completion for progress events.
	Percent int
	// Exception is set for exception events.
	Exception *ExceptionInfo
	// TS is the time the event was created.
	TS time.Time
}

// Text renders the message. Template is only treated as a format string when
// Args are present, so literal percent signs survive untouched.
func (e Event) Text() string {
	if len(e.Args) == 0 {
		return e.Template
	}
	return fmt.Sprintf(e.Template, e.Args...)
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	switch e.Kind {
	case KindLog:
		if !e.Severity.valid() {
			return fmt.Errorf("unknown severity %q", e.Severity)
		}
	case KindProgress:
		if err := CheckPercent(e.Percent); err != nil {
			return err
		}
	case KindException:
		if e.Exception == nil {
			return errors.New("exception event requires exception info")
		}
	case KindTransientStatus, KindSignal, KindBatchComplete, KindPadding:
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	return nil
}

func (s Severity) valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityDebug:
		return true
	default:
		return false
	}
}

// NewLog builds a durable log event.
func NewLog(sev Severity, template string, args ...any) Event {
	return Event{Kind: KindLog, Severity: sev, Template: template, Args: args, TS: time.Now().UTC()}
}

// NewTransient builds an overwritten, non-durable status event.
func NewTransient(template string, args ...any) Event {
	return Event{Kind: KindTransientStatus, Template: template, Args: args, TS: time.Now().UTC()}
}

// NewProgress builds a global percent update.
func NewProgress(percent int) Event {
	return Event{Kind: KindProgress, Percent: percent, TS: time.Now().UTC()}
}

// NewSignal builds an out-of-band signal.
func NewSignal(payload string) Event {
	return Event{Kind: KindSignal, Template: payload, TS: time.Now().UTC()}
}

// NewException captures err, including its unwrap chain, as an Error event.
func NewException(err error) Event {
	info := NewExceptionInfo(err)
	return Event{
		Kind:      KindException,
		Severity:  SeverityError,
		Template:  info.Message,
		Exception: info,
		TS:        time.Now().UTC(),
	}
}

// ItemsPercent converts a processed/total pair into a percentage, clamped to
// 0-100. A non-positive total counts as complete.
func ItemsPercent(done, total int64) int {
	if total <= 0 {
		return 100
	}
	p := int((float64(done)/float64(total))*100 + 0.5)
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
