// Package batch fans a slice of items out to a worker pool and collects
// results in original order despite concurrent completion. It is the CLI's
// adapter between a stream of task payloads and FlowManager.Submit, but the
// dispatcher itself stays generic over item and result type.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tailored-agentic-units/jobflow/config"
	"github.com/tailored-agentic-units/jobflow/observability"
)

// Processor handles a single item independently; items share no state.
type Processor[TItem, TResult any] func(ctx context.Context, item TItem) (TResult, error)

type indexedItem[TItem any] struct {
	index int
	item  TItem
}

type indexedResult[TResult any] struct {
	index  int
	result TResult
	err    error
}

// Dispatch runs processor over items concurrently, sized and governed by
// cfg, and returns results in original item order. Worker count is
// MaxWorkers if set, else min(NumCPU*2, WorkerCap, len(items)).
//
// cfg.FailFast()==true cancels every worker on the first error and returns
// once the workers have stopped (an item already being processed runs to
// completion); cfg.FailFast()==false collects every item's outcome and
// returns an error only when every item failed.
func Dispatch[TItem, TResult any](
	ctx context.Context,
	cfg config.ParallelDispatchConfig,
	items []TItem,
	processor Processor[TItem, TResult],
	progress ProgressFunc[TResult],
) (Result[TItem, TResult], error) {
	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return Result[TItem, TResult]{}, fmt.Errorf("batch: resolve observer: %w", err)
	}

	if len(items) == 0 {
		return Result[TItem, TResult]{Results: []TResult{}, Errors: []TaskError[TItem]{}}, nil
	}

	workerCount := calculateWorkerCount(cfg.MaxWorkers, cfg.WorkerCap, len(items))

	observer.OnEvent(ctx, observability.Event{
		Type:      EventParallelStart,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "batch.Dispatch",
		Data: map[string]any{
			"item_count":   len(items),
			"worker_count": workerCount,
			"fail_fast":    cfg.FailFast(),
		},
	})

	workQueue := make(chan indexedItem[TItem], len(items))
	resultCh := make(chan indexedResult[TResult], len(items))
	done := make(chan struct{})

	var results []TResult
	var errs []TaskError[TItem]
	go func() {
		results, errs = collectResults(resultCh, len(items), items)
		close(done)
	}()

	var runCtx context.Context
	var cancel context.CancelFunc
	if cfg.FailFast() {
		runCtx, cancel = context.WithCancel(ctx)
	} else {
		runCtx, cancel = ctx, func() {}
	}
	defer cancel()

	var wg sync.WaitGroup
	var completed atomic.Int32
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			worker(runCtx, workerID, workQueue, resultCh, processor, progress, &completed, len(items), observer, cfg.FailFast(), cancel)
		}(i)
	}

	for i, item := range items {
		workQueue <- indexedItem[TItem]{index: i, item: item}
	}
	close(workQueue)

	wg.Wait()
	close(resultCh)
	<-done

	observer.OnEvent(ctx, observability.Event{
		Type:      EventParallelComplete,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "batch.Dispatch",
		Data: map[string]any{
			"items_processed": len(results),
			"items_failed":    len(errs),
		},
	})

	out := Result[TItem, TResult]{Results: results, Errors: errs}
	if len(errs) > 0 && (cfg.FailFast() || len(results) == 0) {
		return out, &Error[TItem]{Errors: errs}
	}
	return out, nil
}

func calculateWorkerCount(maxWorkers, workerCap, itemCount int) int {
	if maxWorkers > 0 {
		return maxWorkers
	}
	workers := runtime.NumCPU() * 2
	if workers > workerCap {
		workers = workerCap
	}
	if workers > itemCount {
		workers = itemCount
	}
	if workers <= 0 {
		workers = 1
	}
	return workers
}

func worker[TItem, TResult any](
	ctx context.Context,
	workerID int,
	workQueue <-chan indexedItem[TItem],
	resultCh chan<- indexedResult[TResult],
	processor Processor[TItem, TResult],
	progress ProgressFunc[TResult],
	completed *atomic.Int32,
	total int,
	observer observability.Observer,
	failFast bool,
	cancel context.CancelFunc,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-workQueue:
			if !ok {
				return
			}
			observer.OnEvent(ctx, observability.Event{
				Type:      EventWorkerStart,
				Level:     observability.LevelVerbose,
				Timestamp: time.Now(),
				Source:    "batch.Dispatch",
				Data:      map[string]any{"worker_id": workerID, "item_index": work.index, "total_items": total},
			})

			result, err := processor(ctx, work.item)

			observer.OnEvent(ctx, observability.Event{
				Type:      EventWorkerComplete,
				Level:     observability.LevelVerbose,
				Timestamp: time.Now(),
				Source:    "batch.Dispatch",
				Data:      map[string]any{"worker_id": workerID, "item_index": work.index, "error": err != nil},
			})

			if err != nil {
				resultCh <- indexedResult[TResult]{index: work.index, err: err}
				if failFast {
					cancel()
					return
				}
				continue
			}
			resultCh <- indexedResult[TResult]{index: work.index, result: result}
			if progress != nil {
				count := completed.Add(1)
				progress(int(count), total, result)
			}
		}
	}
}

func collectResults[TItem, TResult any](resultCh <-chan indexedResult[TResult], itemCount int, items []TItem) ([]TResult, []TaskError[TItem]) {
	resultMap := make(map[int]TResult)
	errorMap := make(map[int]error)
	for r := range resultCh {
		if r.err != nil {
			errorMap[r.index] = r.err
		} else {
			resultMap[r.index] = r.result
		}
	}

	results := make([]TResult, 0, len(resultMap))
	errs := make([]TaskError[TItem], 0, len(errorMap))
	for i := 0; i < itemCount; i++ {
		if r, ok := resultMap[i]; ok {
			results = append(results, r)
		}
		if err, ok := errorMap[i]; ok {
			errs = append(errs, TaskError[TItem]{Index: i, Item: items[i], Err: err})
		}
	}
	return results, errs
}
