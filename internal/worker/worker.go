package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/andresmejia3/needle/internal/logging"
	"github.com/andresmejia3/needle/internal/types"
)

// Result is what an engine reports for one job.
type Result struct {
	Index  int
	Path   string
	Output string
	Stats  types.Metrics
	Err    error
}

// Handler processes one job. It must be safe to call from several engines at once.
type Handler func(ctx context.Context, job types.Job) Result

// Engine runs jobs one at a time.
type Engine struct {
	ID        int
	Processed int
	handle    Handler
}

// NewEngine wraps h in an engine with the given id.
func NewEngine(id int, h Handler) *Engine {
	return &Engine{ID: id, handle: h}
}

// Process runs a single job. A panicking handler becomes an error result
// so one bad file cannot take the batch down.
func (e *Engine) Process(ctx context.Context, job types.Job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Index: job.Index, Path: job.Path, Err: fmt.Errorf("engine %d panicked: %v", e.ID, r)}
		}
		e.Processed++
	}()

	if err := ctx.Err(); err != nil {
		return Result{Index: job.Index, Path: job.Path, Err: err}
	}
	res = e.handle(ctx, job)
	res.Index, res.Path = job.Index, job.Path
	return res
}

// Run spreads jobs over n engines. onResult, when set, is called for every
// result from a single aggregator goroutine. Results come back in job order.
func Run(ctx context.Context, n int, jobs []types.Job, h Handler, onResult func(Result)) []Result {
	if n < 1 {
		n = 1
	}

	taskChan := make(chan types.Job, n)
	resultsChan := make(chan Result, n*2)
	var wg sync.WaitGroup

	// Aggregator must run concurrently to prevent deadlock on resultsChan.
	var results []Result
	aggDone := make(chan struct{})
	go func() {
		for r := range resultsChan {
			if onResult != nil {
				onResult(r)
			}
			results = append(results, r)
		}
		close(aggDone)
	}()

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			e := NewEngine(id, h)
			for job := range taskChan {
				resultsChan <- e.Process(ctx, job)
			}
			logging.L().Debug("engine finished", "engine", id, "processed", e.Processed)
		}(i)
	}

	for _, job := range jobs {
		taskChan <- job
	}
	close(taskChan)
	wg.Wait()
	close(resultsChan)
	<-aggDone

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}
