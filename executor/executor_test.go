package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tailored-agentic-units/jobflow/dsl"
	"github.com/tailored-agentic-units/jobflow/flowcontext"
	"github.com/tailored-agentic-units/jobflow/graph"
	"github.com/tailored-agentic-units/jobflow/job"
)

func intInput(jc job.Context, short, key string) int {
	m, ok := jc.Inputs()[short].(map[string]any)
	if !ok {
		return 0
	}
	v, _ := m[key].(int)
	return v
}

func buildDiamond() *dsl.Fragment {
	a := dsl.Value("a", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		return map[string]any{"v": 1}, nil
	}))
	b := dsl.Value("b", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		return map[string]any{"v": intInput(jc, "a", "v") * 2}, nil
	}))
	c := dsl.Value("c", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		return map[string]any{"v": intInput(jc, "a", "v") + 10}, nil
	}))
	d := dsl.Value("d", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		return map[string]any{"sum": intInput(jc, "b", "v") + intInput(jc, "c", "v")}, nil
	}))
	return dsl.Serial(a, dsl.Serial(dsl.Parallel(b, c), d))
}

func TestRunDiamondConvergesAtTail(t *testing.T) {
	g, err := graph.Compile(buildDiamond(), "diamond", "", time.Second, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	out, err := Run(context.Background(), g, job.Task{}, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// b=2, c=11, sum=13. d is the only sink, so it is the tail itself (no
	// synthetic tail) and its output map is returned at the top level.
	if tail := g.Nodes[g.Tail]; tail.Short != "d" {
		t.Fatalf("expected d to be the tail, got %q", tail.Short)
	}
	if out["sum"] != 13 {
		t.Fatalf("got sum %v, want 13", out["sum"])
	}
	if _, ok := out["SAVED_RESULTS"]; !ok {
		t.Fatalf("expected SAVED_RESULTS key in output")
	}
	if _, ok := out["task_pass_through"]; !ok {
		t.Fatalf("expected task_pass_through key in output")
	}
}

func TestRunPropagatesSavedResultsAcrossNonAdjacentHops(t *testing.T) {
	a := dsl.Value("a", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		return map[string]any{"v": 7}, nil
	}), job.WithSaveResult())
	b := dsl.Value("b", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		return map[string]any{"v": intInput(jc, "a", "v") + 1}, nil
	}))
	c := dsl.Value("c", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		saved := jc.SavedResults()["a"].(map[string]any)
		return map[string]any{"from_saved": saved["v"], "direct": intInput(jc, "b", "v")}, nil
	}))
	tree := dsl.Serial(a, dsl.Serial(b, c))

	g, err := graph.Compile(tree, "chain", "", time.Second, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	out, err := Run(context.Background(), g, job.Task{}, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// c is the tail, so its own output map is returned at the top level.
	if out["from_saved"] != 7 {
		t.Fatalf("expected saved_results to carry a's output across the b hop, got %v", out["from_saved"])
	}
	if out["direct"] != 8 {
		t.Fatalf("got direct %v, want 8", out["direct"])
	}
}

func TestRunJobFailurePropagates(t *testing.T) {
	boom := errors.New("boom")
	a := dsl.Value("a", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		return nil, boom
	}))
	g, err := graph.Compile(a, "failing", "", time.Second, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, err = Run(context.Background(), g, job.Task{}, 0)
	var jobErr *JobFailedError
	if !errors.As(err, &jobErr) {
		t.Fatalf("expected *JobFailedError, got %v (%T)", err, err)
	}
	if !errors.Is(jobErr, boom) {
		t.Fatalf("expected wrapped error to unwrap to the original job error")
	}
}

func TestRunFanInTimeout(t *testing.T) {
	slow := dsl.Value("slow", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
		}
		return map[string]any{}, nil
	}))
	fast := dsl.Value("fast", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		return map[string]any{}, nil
	}))
	join := dsl.Value("join", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		return map[string]any{}, nil
	}))
	tree := dsl.Serial(dsl.Parallel(slow, fast), join)

	g, err := graph.Compile(tree, "fanin", "", 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, err = Run(context.Background(), g, job.Task{}, 0)
	var fanInErr *flowcontext.FanInTimeoutError
	if !errors.As(err, &fanInErr) {
		t.Fatalf("expected *flowcontext.FanInTimeoutError, got %v (%T)", err, err)
	}
}

func TestRunExecutionTimeoutClassifiesAsTimeoutError(t *testing.T) {
	a := dsl.Value("a", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
		}
		return map[string]any{}, ctx.Err()
	}))
	g, err := graph.Compile(a, "slowgraph", "", time.Second, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, err = Run(context.Background(), g, job.Task{}, 10*time.Millisecond)
	if _, ok := err.(*TimeoutError); !ok {
		t.Fatalf("expected *TimeoutError, got %v (%T)", err, err)
	}
}

func TestRunCancellationSurfacesCancelledError(t *testing.T) {
	slow := dsl.Value("slow", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
		return map[string]any{}, nil
	}))
	fast := dsl.Value("fast", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		return map[string]any{}, nil
	}))
	join := dsl.Value("join", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		return map[string]any{}, nil
	}))
	tree := dsl.Serial(dsl.Parallel(slow, fast), join)

	// join fans in on both slow and fast; a one-minute fan-in deadline
	// ensures the cancellation below is what ends the run, not a timeout.
	g, err := graph.Compile(tree, "cancelgraph", "", time.Minute, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := Run(ctx, g, job.Task{}, 0)
		errCh <- err
	}()

	// fast has already delivered to join by now; join is parked in
	// AwaitFanIn waiting on slow when the outer context is cancelled.
	time.Sleep(20 * time.Millisecond)
	cancel()

	err = <-errCh
	var cancelErr *CancelledError
	if !errors.As(err, &cancelErr) {
		t.Fatalf("expected *CancelledError, got %v (%T)", err, err)
	}
}

func TestRunParallelLoadCompletesWithinBudget(t *testing.T) {
	// Each task's job awaits a real delay rather than returning instantly,
	// so the assertion actually exercises cooperative concurrency: a
	// serial (non-concurrent) implementation of n tasks each waiting
	// jobDelay would take n*jobDelay, blowing well past the budget below.
	const (
		n        = 300
		jobDelay = 20 * time.Millisecond
	)

	a := dsl.Value("a", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		select {
		case <-time.After(jobDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return map[string]any{"v": 1}, nil
	}))

	g, err := graph.Compile(a, "loadtest", "", time.Second, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	start := time.Now()
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := Run(context.Background(), g, job.Task{"i": i}, 0)
			errCh <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("task %d: unexpected error: %v", i, err)
		}
	}

	elapsed := time.Since(start)
	serialEstimate := jobDelay * time.Duration(n)
	if elapsed >= serialEstimate {
		t.Fatalf("parallel load took %s, no faster than the %s a fully serial run would take — tasks are not running concurrently", elapsed, serialEstimate)
	}
	// Budget generous relative to jobDelay*n/workerParallelism so the test
	// isn't flaky under CI scheduling jitter, but still far below serial.
	if budget := serialEstimate / 3; elapsed > budget {
		t.Fatalf("parallel load took %s, want well under %s", elapsed, budget)
	}
}
