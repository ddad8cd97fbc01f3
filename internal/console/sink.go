package console

// Sink is a destination for console events. Implementations are independent
// and composed (see TeeSink) rather than layered. All methods must be safe for
// concurrent use.
type Sink interface {
	// Emit delivers one event.
	Emit(evt Event)
	// SetProgress updates the global percent. Values outside 0-100 return
	// ErrInvalidArgument.
	SetProgress(percent int) error
	// SetTransientStatus overwrites the single-line status display.
	SetTransientStatus(template string, args ...any)
	// Flush pushes any buffered output to the destination.
	Flush()
	// Progress returns the last reported global percent.
	Progress() int
}

// RawForwarder is implemented by sinks that can carry an already-encoded
// line through unchanged, which is how relayed streams are re-emitted.
type RawForwarder interface {
	ForwardRaw(line string)
}

// Fanout is implemented by sinks that only distribute to other sinks, such
// as TeeSink.
type Fanout interface {
	Destinations() []Sink
}

// Log emits a durable log line at the given severity.
func Log(s Sink, sev Severity, template string, args ...any) {
	s.Emit(NewLog(sev, template, args...))
}

// Info emits an Info log line.
func Info(s Sink, template string, args ...any) { Log(s, SeverityInfo, template, args...) }

// Warn emits a Warning log line.
func Warn(s Sink, template string, args ...any) { Log(s, SeverityWarning, template, args...) }

// Error emits an Error log line.
func Error(s Sink, template string, args ...any) { Log(s, SeverityError, template, args...) }

// Debug emits a Debug log line.
func Debug(s Sink, template string, args ...any) { Log(s, SeverityDebug, template, args...) }

// ReportException records err as an Error-severity exception event. It never
// panics, so the monitored operation always regains control.
func ReportException(s Sink, err error) {
	if s == nil {
		return
	}
	defer func() { _ = recover() }()
	s.Emit(NewException(err))
}

// SetItemsProgress reports done out of total items as a percentage.
func SetItemsProgress(s Sink, done, total int64) error {
	return s.SetProgress(ItemsPercent(done, total))
}
