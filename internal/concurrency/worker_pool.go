package concurrency

import (
	"context"
	"sync"
)

// TaskFn handles the task at index.
type TaskFn func(ctx context.Context, index int) error

// ForEach runs fn for every index in [0, tasks) on at most concurrency
// goroutines. The first error cancels the remaining tasks and is returned.
func ForEach(ctx context.Context, concurrency int, tasks int, fn TaskFn) error {
	if tasks <= 0 {
		return nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > tasks {
		concurrency = tasks
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	indexes := make(chan int)
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				if ctx.Err() != nil {
					continue
				}
				if err := fn(ctx, idx); err != nil {
					fail(err)
				}
			}
		}()
	}

feed:
	for i := 0; i < tasks; i++ {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
