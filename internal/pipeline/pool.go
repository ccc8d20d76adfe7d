package pipeline

import (
	"context"
	"sync"
)

// forEach calls fn for every file using up to workers goroutines. Results are
// indexed like files; files never started because ctx ended keep their zero
// value.
func forEach(ctx context.Context, workers int, files []string, fn func(context.Context, string) fileResult) ([]fileResult, error) {
	results := make([]fileResult, len(files))
	if workers <= 1 {
		for i, f := range files {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			results[i] = fn(ctx, f)
		}
		return results, ctx.Err()
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(workers, len(files)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = fn(ctx, files[i])
			}
		}()
	}

	var err error
feed:
	for i := range files {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return results, err
}
