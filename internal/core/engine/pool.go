package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/portraitforge/portraitforge/internal/core"
)

// DefaultWorkers bounds concurrent slot pipelines across all runs.
const DefaultWorkers = 8

// Pool bounds slot concurrency process-wide, independent of any single run's fan-out.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool returns a pool admitting at most size concurrent tasks.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultWorkers
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the pool bound.
func (p *Pool) Size() int {
	if p == nil {
		return 0
	}
	return p.size
}

// Run executes task for indexes 0..n-1 and waits for all of them. The returned slice
// holds, per index, the error from a recovered panic or a failed worker acquisition.
func (p *Pool) Run(ctx context.Context, n int, task func(ctx context.Context, index int)) []error {
	errs := make([]error, n)
	if n <= 0 {
		return errs
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()

			if p != nil && p.sem != nil {
				if err := p.sem.Acquire(ctx, 1); err != nil {
					errs[index] = core.NewError(core.KindUnknown, "worker unavailable", err)
					return
				}
				defer p.sem.Release(1)
			}

			defer func() {
				if recovered := recover(); recovered != nil {
					errs[index] = &core.Error{
						Kind:    core.KindSlotPanic,
						Message: fmt.Sprintf("slot %d panicked: %v", index, recovered),
						Err:     fmt.Errorf("%s", debug.Stack()),
					}
				}
			}()

			task(ctx, index)
		}(i)
	}
	wg.Wait()
	return errs
}
