// Package executor drives one task through one compiled graph: delivering
// inputs, waiting for fan-in at each node, invoking jobs, fanning out to
// successors, and collecting the augmented tail output.
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/jobflow/flowcontext"
	"github.com/tailored-agentic-units/jobflow/graph"
	"github.com/tailored-agentic-units/jobflow/job"
)

// Run walks g with task, respecting ctx for cancellation and execTimeout for
// a per-execution deadline (0 disables it). It returns the tail's output map
// augmented with SAVED_RESULTS and task_pass_through.
func Run(ctx context.Context, g *graph.Graph, task job.Task, execTimeout time.Duration) (map[string]any, error) {
	runCtx := ctx
	if execTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, execTimeout)
		defer cancel()
	}

	ec := flowcontext.New(g, task, g.FanInTimeout)
	eg, egCtx := errgroup.WithContext(runCtx)

	var tailMu sync.Mutex
	var tailOutput map[string]any

	var dispatch func(fqn string)
	dispatch = func(fqn string) {
		eg.Go(func() error {
			return execNode(egCtx, g, ec, task, fqn, dispatch, &tailMu, &tailOutput)
		})
	}
	dispatch(g.Head)

	if err := eg.Wait(); err != nil {
		// When the walk's own context ended (caller cancellation or the
		// execution deadline), that is the reason the walk stopped, even if
		// a job reported it first as its own error.
		if ctxErr := runCtx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, classify(err)
	}

	out := make(map[string]any, len(tailOutput)+2)
	for k, v := range tailOutput {
		out[k] = v
	}
	out["SAVED_RESULTS"] = ec.SavedResults()
	out["task_pass_through"] = map[string]any(task)
	return out, nil
}

func execNode(
	ctx context.Context,
	g *graph.Graph,
	ec *flowcontext.ExecutionContext,
	task job.Task,
	fqn string,
	dispatch func(string),
	tailMu *sync.Mutex,
	tailOutput *map[string]any,
) error {
	node := g.Nodes[fqn]

	if len(node.ExpectedInputs) > 0 {
		if err := ec.AwaitFanIn(ctx, fqn); err != nil {
			return err
		}
	}

	if !ec.TryStart(fqn) {
		// Another arrival path already ran (or is running) this node;
		// invariant 3 forbids a second invocation.
		return nil
	}

	inputs := ec.RawInputs(fqn)
	jc := ec.JobContext(fqn)

	output, err := node.Job.Run(ctx, inputs, task, jc)
	if err != nil {
		return newJobFailedError(fqn, err)
	}

	if node.SaveResult {
		ec.SaveResult(node.Short, output)
	}

	if fqn == g.Tail {
		tailMu.Lock()
		*tailOutput = output
		tailMu.Unlock()
	}

	for _, succ := range node.Successors {
		ec.Deliver(succ, fqn, output)
		dispatch(succ)
	}

	return nil
}

func classify(err error) error {
	var fanIn *flowcontext.FanInTimeoutError
	var jobFailed *JobFailedError
	if errors.As(err, &fanIn) || errors.As(err, &jobFailed) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return &CancelledError{}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{}
	}
	return err
}
