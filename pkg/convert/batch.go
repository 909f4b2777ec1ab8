package convert

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrOutputPathForBatch is returned when a single output path is given for several files.
var ErrOutputPathForBatch = errors.New("an output path needs exactly one input file")

type indexedPath struct {
	index int
	path  string
}

// ConvertAll converts paths concurrently with up to workers goroutines (zero or less
// means one per CPU). Every file is attempted; results keep the input order and carry
// their own error. The returned error joins every per-file failure.
func (c *Converter) ConvertAll(ctx context.Context, paths []string, workers int, opts FileOptions) ([]FileResult, error) {
	if opts.OutputPath != "" && len(paths) > 1 {
		return nil, ErrOutputPathForBatch
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	workers = min(workers, len(paths))

	results := make([]FileResult, len(paths))
	pathCh := make(chan indexedPath, workers)

	var (
		wg        sync.WaitGroup
		completed atomic.Int64
	)

	total := len(paths)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			// Workers drain the channel even after a failure so the sender never blocks.
			for item := range pathCh {
				if err := ctx.Err(); err != nil {
					results[item.index] = FileResult{Path: item.path, Err: fmt.Errorf("convert %s: %w", item.path, err)}

					continue
				}

				results[item.index], _ = c.ConvertFile(ctx, item.path, opts)

				done := completed.Add(1)
				c.logger.DebugContext(ctx, "progress", "done", done, "total", total, "path", item.path)
			}
		}()
	}

	for idx, path := range paths {
		pathCh <- indexedPath{index: idx, path: path}
	}

	close(pathCh)
	wg.Wait()

	errs := make([]error, 0, len(results))

	for _, fr := range results {
		if fr.Err != nil {
			errs = append(errs, fr.Err)
		}
	}

	return results, errors.Join(errs...)
}
