package progress

import (
	"fmt"
	"math"

	"github.com/JakeFAU/webconsole/internal/console"
)

// Range is the slice [Start, End] of a parent's 0-100 scale that a subtask
// reports into.
type Range struct {
	Start int
	End   int
}

// Full is the whole 0-100 scale. Every Reporter's own scale is Full.
var Full = Range{Start: 0, End: 100}

// Width returns End-Start.
func (r Range) Width() int {
	return r.End - r.Start
}

// Map rescales a local percent into the range, capped at 100.
func (r Range) Map(local int) int {
	offset := int(math.Round(float64(r.Width()) * float64(local) / 100))
	return min(r.Start+offset, 100)
}

// AllocateRange returns the slice of parent owned by subtask index of count.
// Boundaries are computed from the same rounding for neighbours, so siblings
// 1..count partition parent without gaps and the last one ends exactly at
// parent.End. When count exceeds the parent's width some ranges are empty.
func AllocateRange(parent Range, index, count int) (Range, error) {
	if count < 1 {
		return Range{}, fmt.Errorf("%w: subtask count %d must be at least 1", console.ErrInvalidArgument, count)
	}
	if index < 1 || index > count {
		return Range{}, fmt.Errorf("%w: subtask index %d outside 1-%d", console.ErrInvalidArgument, index, count)
	}
	w := float64(parent.Width())
	start := parent.Start + int(math.Round(float64(index-1)*w/float64(count)))
	end := parent.Start + int(math.Round(float64(index)*w/float64(count)))
	return Range{Start: start, End: min(end, parent.End)}, nil
}
