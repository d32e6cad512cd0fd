package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/andresmejia3/needle/internal/types"
)

func makeJobs(n int) []types.Job {
	jobs := make([]types.Job, n)
	for i := range jobs {
		jobs[i] = types.Job{Index: i, Path: fmt.Sprintf("design_%02d.json", i)}
	}
	return jobs
}

func TestRunProcessesEveryJobInOrder(t *testing.T) {
	var calls atomic.Int32
	h := func(ctx context.Context, job types.Job) Result {
		calls.Add(1)
		return Result{Stats: types.Metrics{Stitches: job.Index * 10}}
	}

	var seen int
	results := Run(context.Background(), 4, makeJobs(25), h, func(Result) { seen++ })

	if calls.Load() != 25 || seen != 25 || len(results) != 25 {
		t.Fatalf("calls=%d seen=%d results=%d, want 25 each", calls.Load(), seen, len(results))
	}
	for i, r := range results {
		if r.Index != i || r.Path != fmt.Sprintf("design_%02d.json", i) {
			t.Errorf("result %d = %+v, out of order", i, r)
		}
		if r.Stats.Stitches != i*10 {
			t.Errorf("result %d stitches = %d, want %d", i, r.Stats.Stitches, i*10)
		}
	}
}

func TestRunZeroEnginesFallsBackToOne(t *testing.T) {
	h := func(ctx context.Context, job types.Job) Result { return Result{} }
	if got := Run(context.Background(), 0, makeJobs(3), h, nil); len(got) != 3 {
		t.Errorf("Run() returned %d results, want 3", len(got))
	}
}

func TestEngineRecoversPanic(t *testing.T) {
	e := NewEngine(7, func(ctx context.Context, job types.Job) Result {
		panic("corrupt pattern")
	})

	res := e.Process(context.Background(), types.Job{Index: 3, Path: "bad.json"})
	if res.Err == nil {
		t.Fatal("expected error from panicking handler")
	}
	if res.Index != 3 || res.Path != "bad.json" {
		t.Errorf("result identity = %d/%s, want 3/bad.json", res.Index, res.Path)
	}
	if e.Processed != 1 {
		t.Errorf("Processed = %d, want 1", e.Processed)
	}
}

func TestEngineHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	e := NewEngine(0, func(ctx context.Context, job types.Job) Result {
		called = true
		return Result{}
	})
	res := e.Process(ctx, types.Job{Index: 1, Path: "a.json"})
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Process() error = %v, want context.Canceled", res.Err)
	}
	if called {
		t.Error("handler ran after cancellation")
	}
}
