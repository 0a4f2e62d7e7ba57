package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/tailored-agentic-units/jobflow/config"
)

func TestDispatchPreservesOriginalOrder(t *testing.T) {
	items := []int{5, 4, 3, 2, 1}
	cfg := config.DefaultParallelDispatchConfig()

	res, err := Dispatch(context.Background(), cfg, items, func(ctx context.Context, item int) (int, error) {
		return item * 10, nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{50, 40, 30, 20, 10}
	if len(res.Results) != len(want) {
		t.Fatalf("got %v, want %v", res.Results, want)
	}
	for i := range want {
		if res.Results[i] != want[i] {
			t.Fatalf("index %d: got %d, want %d", i, res.Results[i], want[i])
		}
	}
}

func TestDispatchEmptyItems(t *testing.T) {
	cfg := config.DefaultParallelDispatchConfig()
	res, err := Dispatch(context.Background(), cfg, []int{}, func(ctx context.Context, item int) (int, error) {
		return item, nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Results) != 0 || len(res.Errors) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestDispatchCollectsAllErrorsWithoutFailFast(t *testing.T) {
	cfg := config.DefaultParallelDispatchConfig()
	items := []int{1, 2, 3, 4}
	boom := errors.New("boom")

	res, err := Dispatch(context.Background(), cfg, items, func(ctx context.Context, item int) (int, error) {
		if item%2 == 0 {
			return 0, boom
		}
		return item, nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error when some items succeed: %v", err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("expected 2 successful results, got %d: %v", len(res.Results), res.Results)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(res.Errors))
	}
}

func TestDispatchFailFastCancelsRemainingWork(t *testing.T) {
	cfg := config.DefaultParallelDispatchConfig()
	cfg.MaxWorkers = 1
	failFast := true
	cfg.FailFastNil = &failFast

	items := []int{1, 2, 3}
	boom := errors.New("boom")
	res, err := Dispatch(context.Background(), cfg, items, func(ctx context.Context, item int) (int, error) {
		if item == 1 {
			return 0, boom
		}
		return item, nil
	}, nil)

	var dispatchErr *Error[int]
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("expected *Error[int], got %v (%T)", err, err)
	}
	// The single worker fails on the first item and stops, so items 2 and 3
	// are never processed.
	if len(res.Results) != 0 {
		t.Fatalf("expected no processed results after fail-fast, got %v", res.Results)
	}
}

func TestCalculateWorkerCount(t *testing.T) {
	if got := calculateWorkerCount(4, 16, 100); got != 4 {
		t.Fatalf("explicit MaxWorkers should win, got %d", got)
	}
	if got := calculateWorkerCount(0, 16, 2); got != 2 {
		t.Fatalf("auto-detected count should not exceed item count, got %d", got)
	}
	if got := calculateWorkerCount(0, 2, 100); got != 2 {
		t.Fatalf("auto-detected count should respect WorkerCap, got %d", got)
	}
	if got := calculateWorkerCount(0, 16, 0); got != 1 {
		t.Fatalf("worker count should floor at 1, got %d", got)
	}
}
