package progress

import (
	"sync"
	"time"
)

// heartbeat refreshes a task's running line until stopped.
type heartbeat struct {
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func startHeartbeat(t *Task, period time.Duration) *heartbeat {
	h := &heartbeat{
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	t.parent.ReportTransient("%s running", t.name)
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.parent.ReportTransient("%s running (%d sec)", t.name, elapsedSeconds(t.Elapsed()))
			case <-h.stopCh:
				return
			}
		}
	}()
	return h
}

// stop halts the ticker and waits for the goroutine, so no tick lands after
// it returns.
func (h *heartbeat) stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	<-h.done
}
