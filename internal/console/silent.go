package console

// SilentSink discards everything. Use it where a Sink is required but the
// output is irrelevant.
type SilentSink struct{}

// Emit does nothing.
func (SilentSink) Emit(Event) {}

// SetProgress does nothing.
func (SilentSink) SetProgress(int) error { return nil }

// SetTransientStatus does nothing.
func (SilentSink) SetTransientStatus(string, ...any) {}

// Flush does nothing.
func (SilentSink) Flush() {}

// Progress always reports zero.
func (SilentSink) Progress() int { return 0 }
