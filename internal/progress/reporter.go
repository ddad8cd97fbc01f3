package progress

import (
	"github.com/JakeFAU/webconsole/internal/console"
)

// Reporter accepts progress on its own local 0-100 scale, plus the log and
// status output that travels with it. Root and Task both implement it, so a
// subtask never needs to know how deep it is nested.
type Reporter interface {
	Report(percent int) error
	ReportItems(done, total int64) error
	ReportTransient(template string, args ...any)
	Log(sev console.Severity, template string, args ...any)
	ReportException(err error)
}

// Root terminates a Task tree at a console.Sink.
type Root struct {
	sink console.Sink
}

// NewRoot wraps sink.
func NewRoot(sink console.Sink) *Root {
	return &Root{sink: sink}
}

// Sink returns the wrapped sink.
func (r *Root) Sink() console.Sink {
	return r.sink
}

// Report sets the global percent. The sink drops unchanged values.
func (r *Root) Report(percent int) error {
	if err := console.CheckPercent(percent); err != nil {
		return err
	}
	return r.sink.SetProgress(percent)
}

// ReportItems reports done out of total as a percent.
func (r *Root) ReportItems(done, total int64) error {
	return r.Report(console.ItemsPercent(done, total))
}

// ReportTransient overwrites the sink's status line.
func (r *Root) ReportTransient(template string, args ...any) {
	r.sink.SetTransientStatus(template, args...)
}

// Log emits a durable line.
func (r *Root) Log(sev console.Severity, template string, args ...any) {
	console.Log(r.sink, sev, template, args...)
}

// ReportException records err on the sink.
func (r *Root) ReportException(err error) {
	console.ReportException(r.sink, err)
}
