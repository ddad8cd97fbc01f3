package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/webconsole/internal/progress"
)

// Job is one unit of work run as its own subtask.
type Job func(ctx context.Context, task *progress.Task) error

// Fanout runs jobs as sibling subtasks of parent on at most workers
// goroutines and waits for all of them. Subtask i is named "<name> #i".
// Jobs not yet started when ctx ends are skipped; errors are joined.
func Fanout(ctx context.Context, parent progress.Reporter, name string, jobs []Job, workers int, opts ...progress.Option) error {
	if len(jobs) == 0 {
		return nil
	}
	if workers <= 0 || workers > len(jobs) {
		workers = len(jobs)
	}

	type item struct {
		index int
		job   Job
	}
	items := make(chan item)
	errCh := make(chan error, len(jobs))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range items {
				label := fmt.Sprintf("%s #%d", name, it.index)
				errCh <- progress.Run(parent, label, it.index, len(jobs), func(t *progress.Task) error {
					return it.job(ctx, t)
				}, opts...)
			}
		}()
	}

dispatch:
	for i, job := range jobs {
		select {
		case items <- item{index: i + 1, job: job}:
		case <-ctx.Done():
			errCh <- fmt.Errorf("fanout %s: %w", name, ctx.Err())
			break dispatch
		}
	}
	close(items)
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
