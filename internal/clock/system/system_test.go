package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webconsole/internal/console"
)

var _ console.Clock = New()

func TestClockUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().Add(-time.Second)
	got := New().UTC()
	require.Equal(t, time.UTC, got.Location())
	require.WithinDuration(t, before.Add(time.Second), got, 2*time.Second)
}

func TestClockNowMeasuresElapsed(t *testing.T) {
	t.Parallel()

	clk := New()
	first := clk.Now()
	time.Sleep(5 * time.Millisecond)
	require.GreaterOrEqual(t, clk.Now().Sub(first), 5*time.Millisecond)
}
