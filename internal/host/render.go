package host

import (
	"context"

	"github.com/JakeFAU/webconsole/internal/console"
)

// Action is the body of a monitored operation.
type Action func(ctx context.Context, sink console.Sink) error

// Render runs action against sink. Output queued before the call is flushed
// first, and a final flush runs however action exits, including by panic,
// which is re-raised. An error returned by action is reported on the sink
// as an exception and returned.
func Render(ctx context.Context, sink console.Sink, action Action) error {
	sink.Flush()
	defer sink.Flush()
	if err := action(ctx, sink); err != nil {
		console.ReportException(sink, err)
		return err
	}
	return nil
}
