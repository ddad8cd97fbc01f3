package console

import (
	"errors"
	"fmt"
)

// TeeSink fans every call out to an ordered list of destinations, e.g. a live
// stream and a captured log of the same run.
type TeeSink struct {
	dests []Sink
}

// NewTeeSink builds a TeeSink. At least one non-nil destination is required.
func NewTeeSink(dests ...Sink) (*TeeSink, error) {
	if len(dests) == 0 {
		return nil, fmt.Errorf("%w: tee sink needs at least one destination", ErrConfiguration)
	}
	for i, d := range dests {
		if d == nil {
			return nil, fmt.Errorf("%w: tee destination %d is nil", ErrConfiguration, i)
		}
	}
	return &TeeSink{dests: append([]Sink(nil), dests...)}, nil
}

// Emit forwards evt to every destination in order.
func (t *TeeSink) Emit(evt Event) {
	for _, d := range t.dests {
		d.Emit(evt)
	}
}

// SetProgress forwards percent to every destination and joins their errors.
func (t *TeeSink) SetProgress(percent int) error {
	if err := CheckPercent(percent); err != nil {
		return err
	}
	var errs []error
	for _, d := range t.dests {
		if err := d.SetProgress(percent); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetTransientStatus forwards to every destination.
func (t *TeeSink) SetTransientStatus(template string, args ...any) {
	for _, d := range t.dests {
		d.SetTransientStatus(template, args...)
	}
}

// Flush flushes every destination.
func (t *TeeSink) Flush() {
	for _, d := range t.dests {
		d.Flush()
	}
}

// Progress returns the first destination's value as representative.
func (t *TeeSink) Progress() int {
	return t.dests[0].Progress()
}

// Destinations returns the destinations in fan-out order. Relays use it to
// pass raw lines to the destinations that take them and decoded events to
// the rest.
func (t *TeeSink) Destinations() []Sink {
	return append([]Sink(nil), t.dests...)
}
