package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/webconsole/internal/console"
	"github.com/JakeFAU/webconsole/internal/progress"
)

// DefaultStepDelay paces the demo workloads so a viewer can watch them.
const DefaultStepDelay = 10 * time.Millisecond

// DemoOperation walks three sequential subtasks and then a parent subtask
// hosting two nested ones, each counting 0 to 100.
func DemoOperation(stepDelay time.Duration, opts ...progress.Option) Operation {
	return Operation{
		Name:        "tasks",
		Description: "Sequential and nested subtask demonstration",
		Run: func(ctx context.Context, sink console.Sink) error {
			root := progress.NewRoot(sink)
			console.Info(sink, "Starting tasks demonstration...")

			const subtasks = 3
			quiet := append(append([]progress.Option{}, opts...), progress.WithoutHeartbeat())
			for i := 1; i <= subtasks; i++ {
				err := progress.Run(root, fmt.Sprintf("Demonstration sub-task #%d", i), i, subtasks+1, func(t *progress.Task) error {
					return countTo100(ctx, t, stepDelay)
				}, quiet...)
				if err != nil {
					return err
				}
				console.Info(sink, "Sub-task %d/%d done.", i, subtasks)
			}

			console.Info(sink, "Demonstrating nested sub-tasks...")
			err := progress.Run(root, "Demonstration parent sub-task", subtasks+1, subtasks+1, func(parent *progress.Task) error {
				for i := 1; i <= 2; i++ {
					err := progress.Run(parent, fmt.Sprintf("Inner task %d", i), i, 2, func(t *progress.Task) error {
						return countTo100(ctx, t, stepDelay)
					}, opts...)
					if err != nil {
						return err
					}
				}
				return nil
			}, opts...)
			if err != nil {
				return err
			}
			console.Info(sink, "Tasks demonstration complete.")
			return nil
		},
	}
}

// FanoutOperation runs workers concurrent subtasks under one parent.
func FanoutOperation(stepDelay time.Duration, jobs, workers int, opts ...progress.Option) Operation {
	return Operation{
		Name:        "fanout",
		Description: "Concurrent subtasks reporting into one parent",
		Run: func(ctx context.Context, sink console.Sink) error {
			root := progress.NewRoot(sink)
			list := make([]Job, jobs)
			for i := range list {
				list[i] = func(ctx context.Context, t *progress.Task) error {
					return countTo100(ctx, t, stepDelay)
				}
			}
			if err := Fanout(ctx, root, "Worker", list, workers, opts...); err != nil {
				return err
			}
			console.Info(sink, "All %d workers finished.", jobs)
			return nil
		},
	}
}

// ErrDemoFailure is returned by FailingOperation.
var ErrDemoFailure = errors.New("demonstration failure")

// FailingOperation makes some progress and then fails, so viewers can see
// how errors are rendered.
func FailingOperation(stepDelay time.Duration) Operation {
	return Operation{
		Name:        "fail",
		Description: "Reports progress, then fails with a wrapped error",
		Run: func(ctx context.Context, sink console.Sink) error {
			root := progress.NewRoot(sink)
			err := progress.Run(root, "Doomed sub-task", 1, 2, func(t *progress.Task) error {
				for i := 0; i <= 50; i += 10 {
					if err := sleep(ctx, stepDelay); err != nil {
						return err
					}
					if err := t.Report(i); err != nil {
						return err
					}
				}
				return fmt.Errorf("step 50: %w", ErrDemoFailure)
			}, progress.WithoutHeartbeat())
			if err != nil {
				return fmt.Errorf("run doomed sub-task: %w", err)
			}
			return nil
		},
	}
}

// DemoSettings paces the demonstration operations. Zero fanout values fall
// back to four jobs on two workers.
type DemoSettings struct {
	StepDelay     time.Duration
	FanoutJobs    int
	FanoutWorkers int
}

// Demos registers every demonstration operation on r.
func Demos(r *Registry, s DemoSettings, opts ...progress.Option) error {
	jobs, workers := s.FanoutJobs, s.FanoutWorkers
	if jobs <= 0 {
		jobs = 4
	}
	if workers <= 0 {
		workers = 2
	}
	for _, op := range []Operation{
		DemoOperation(s.StepDelay, opts...),
		FanoutOperation(s.StepDelay, jobs, workers, opts...),
		FailingOperation(s.StepDelay),
	} {
		if err := r.Register(op); err != nil {
			return err
		}
	}
	return nil
}

func countTo100(ctx context.Context, t *progress.Task, stepDelay time.Duration) error {
	for i := 0; i <= 100; i++ {
		if err := sleep(ctx, stepDelay); err != nil {
			return err
		}
		if i%10 == 0 {
			t.ReportTransient("%d/%d", i, 100)
			t.Log(console.SeverityInfo, "Task percent %d", i)
		}
		if err := t.Report(i); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
