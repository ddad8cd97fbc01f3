package console

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a caller bug such as a percent outside
	// 0-100. It is returned synchronously and never retried.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConfiguration reports a sink assembled from invalid parts. It
	// matches ErrInvalidArgument under errors.Is.
	ErrConfiguration = fmt.Errorf("configuration error: %w", ErrInvalidArgument)
)

// CheckPercent validates a 0-100 percentage.
func CheckPercent(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: percent %d outside 0-100", ErrInvalidArgument, percent)
	}
	return nil
}
