package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webconsole/internal/console"
)

// TestSchedulerCoalescesBurst verifies a burst inside one window becomes a single write.
func TestSchedulerCoalescesBurst(t *testing.T) {
	t.Parallel()

	tr := newStubTransport()
	s := NewScheduler(Config{FlushWindow: 200 * time.Millisecond, DisablePadding: true}, tr)
	defer func() { require.NoError(t, s.Close(context.Background())) }()

	for i := range 5 {
		s.Enqueue(console.NewLog(console.SeverityInfo, "line %d", i))
	}
	require.Eventually(t, func() bool { return len(tr.Writes()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	writes := tr.Writes()
	require.Len(t, writes, 1)

	events := decodeAll(t, writes[0])
	require.Len(t, events, 6)
	for i := range 5 {
		require.Equal(t, console.KindLog, events[i].Kind)
		require.Equal(t, "line "+string(rune('0'+i)), events[i].Template)
	}
	require.Equal(t, console.KindBatchComplete, events[5].Kind)
	require.Equal(t, 1, tr.Flushes())
}

// TestSchedulerSeparateWindows verifies events further apart than the window are written separately.
func TestSchedulerSeparateWindows(t *testing.T) {
	t.Parallel()

	tr := newStubTransport()
	s := NewScheduler(Config{FlushWindow: 100 * time.Millisecond, DisablePadding: true}, tr)
	defer func() { require.NoError(t, s.Close(context.Background())) }()

	s.Enqueue(console.NewLog(console.SeverityInfo, "first"))
	require.Eventually(t, func() bool { return len(tr.Writes()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(500 * time.Millisecond)
	s.Enqueue(console.NewLog(console.SeverityInfo, "second"))
	require.Eventually(t, func() bool { return len(tr.Writes()) == 2 }, 2*time.Second, 10*time.Millisecond)

	writes := tr.Writes()
	require.Equal(t, "first", decodeAll(t, writes[0])[0].Template)
	require.Equal(t, "second", decodeAll(t, writes[1])[0].Template)
}

// TestSchedulerBatchBySize verifies the size trigger writes without waiting for the timer.
func TestSchedulerBatchBySize(t *testing.T) {
	t.Parallel()

	tr := newStubTransport()
	s := NewScheduler(Config{MaxBatchEvents: 2, FlushWindow: time.Minute, DisablePadding: true}, tr)
	defer func() { require.NoError(t, s.Close(context.Background())) }()

	s.Enqueue(console.NewLog(console.SeverityInfo, "a"))
	s.Enqueue(console.NewLog(console.SeverityInfo, "b"))
	require.Eventually(t, func() bool { return len(tr.Writes()) == 1 }, time.Second, 10*time.Millisecond)
	require.Len(t, decodeAll(t, tr.Writes()[0]), 3)
}

// TestSchedulerFlushIsSynchronous verifies Flush returns only after the batch is written.
func TestSchedulerFlushIsSynchronous(t *testing.T) {
	t.Parallel()

	tr := newStubTransport()
	s := NewScheduler(Config{FlushWindow: time.Minute, DisablePadding: true}, tr)
	defer func() { require.NoError(t, s.Close(context.Background())) }()

	s.Enqueue(console.NewLog(console.SeverityWarning, "now"))
	require.NoError(t, s.Flush(context.Background()))
	require.Len(t, tr.Writes(), 1)
}

// TestSchedulerPadsShortBatches verifies short batches reach the minimum length with printable filler.
func TestSchedulerPadsShortBatches(t *testing.T) {
	t.Parallel()

	tr := newStubTransport()
	s := NewScheduler(Config{
		FlushWindow:      time.Minute,
		MinMessageLength: 512,
		RandSource:       rand.NewPCG(1, 2),
	}, tr)
	defer func() { require.NoError(t, s.Close(context.Background())) }()

	s.Enqueue(console.NewLog(console.SeverityInfo, "short"))
	require.NoError(t, s.Flush(context.Background()))

	writes := tr.Writes()
	require.Len(t, writes, 1)
	require.GreaterOrEqual(t, len(writes[0]), 512)

	events := decodeAll(t, writes[0])
	require.Len(t, events, 3)
	require.Equal(t, console.KindBatchComplete, events[1].Kind)
	pad := events[2]
	require.Equal(t, console.KindPadding, pad.Kind)
	for _, c := range []byte(pad.Template) {
		require.GreaterOrEqual(t, c, byte(33))
		require.LessOrEqual(t, c, byte(125))
	}
}

// TestSchedulerSkipsPaddingForLongBatches verifies batches over the minimum are left alone.
func TestSchedulerSkipsPaddingForLongBatches(t *testing.T) {
	t.Parallel()

	tr := newStubTransport()
	s := NewScheduler(Config{FlushWindow: time.Minute, MinMessageLength: 16}, tr)
	defer func() { require.NoError(t, s.Close(context.Background())) }()

	s.Enqueue(console.NewLog(console.SeverityInfo, "long enough to skip padding"))
	require.NoError(t, s.Flush(context.Background()))
	require.True(t, bytes.HasSuffix(tr.Writes()[0], JSONCodec{}.BatchComplete()))
}

// TestSchedulerSwallowsTransportFaults verifies a failing transport never stops the drain loop.
func TestSchedulerSwallowsTransportFaults(t *testing.T) {
	t.Parallel()

	tr := newStubTransport()
	tr.failWrites(true)
	s := NewScheduler(Config{FlushWindow: time.Minute, DisablePadding: true}, tr)
	defer func() { require.NoError(t, s.Close(context.Background())) }()

	s.Enqueue(console.NewLog(console.SeverityInfo, "lost"))
	require.NoError(t, s.Flush(context.Background()))
	require.EqualValues(t, 1, s.Faults())

	tr.failWrites(false)
	s.Enqueue(console.NewLog(console.SeverityInfo, "kept"))
	require.NoError(t, s.Flush(context.Background()))
	writes := tr.Writes()
	require.Len(t, writes, 1)
	require.Equal(t, "kept", decodeAll(t, writes[0])[0].Template)
}

// TestSchedulerRawLinesPassThrough verifies forwarded lines are written unchanged.
func TestSchedulerRawLinesPassThrough(t *testing.T) {
	t.Parallel()

	tr := newStubTransport()
	s := NewScheduler(Config{FlushWindow: time.Minute, DisablePadding: true}, tr)
	defer func() { require.NoError(t, s.Close(context.Background())) }()

	s.EnqueueRaw(`{"kind":"log","severity":"Info","text":"relayed"}`)
	require.NoError(t, s.Flush(context.Background()))
	require.True(t, bytes.HasPrefix(tr.Writes()[0], []byte(`{"kind":"log","severity":"Info","text":"relayed"}`+"\n")))
}

// TestSchedulerFlushOnClose ensures Close drains buffered events and is idempotent.
func TestSchedulerFlushOnClose(t *testing.T) {
	t.Parallel()

	tr := newStubTransport()
	s := NewScheduler(Config{FlushWindow: time.Minute, DisablePadding: true}, tr)

	s.Enqueue(console.NewLog(console.SeverityInfo, "tail"))
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))
	require.Len(t, tr.Writes(), 1)

	s.Enqueue(console.NewLog(console.SeverityInfo, "late"))
	require.NoError(t, s.Flush(context.Background()))
	require.Len(t, tr.Writes(), 1)
}

// TestSchedulerEnqueueNeverBlocks asserts producers keep going while the transport is stuck.
func TestSchedulerEnqueueNeverBlocks(t *testing.T) {
	t.Parallel()

	tr := newStubTransport()
	release := tr.block()
	s := NewScheduler(Config{BufferSize: 1, MaxBatchEvents: 1, DisablePadding: true}, tr)

	start := time.Now()
	for range 100 {
		s.Enqueue(console.NewLog(console.SeverityInfo, "flood"))
	}
	require.Less(t, time.Since(start), time.Second)

	close(release)
	require.NoError(t, s.Close(context.Background()))
}

type stubTransport struct {
	mu      sync.Mutex
	writes  [][]byte
	flushes int
	fail    bool
	gate    chan struct{}
}

func newStubTransport() *stubTransport {
	return &stubTransport{}
}

func (s *stubTransport) Write(p []byte) (int, error) {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, errors.New("broken pipe")
	}
	s.writes = append(s.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (s *stubTransport) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *stubTransport) Writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.writes...)
}

func (s *stubTransport) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

func (s *stubTransport) failWrites(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func (s *stubTransport) block() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	return s.gate
}

func decodeAll(t *testing.T, data []byte) []console.Event {
	t.Helper()
	var out []console.Event
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		evt, err := JSONCodec{}.Decode(sc.Bytes())
		require.NoError(t, err)
		out = append(out, evt)
	}
	require.NoError(t, sc.Err())
	return out
}
