// Package flowcontext implements the per-(task, graph) execution state:
// accumulated inputs per node, fan-in arrival signals, the exactly-once
// execution guard, and the saved_results accumulator jobs read through
// job.Context.
package flowcontext

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tailored-agentic-units/jobflow/graph"
	"github.com/tailored-agentic-units/jobflow/job"
)

// FanInTimeoutError reports a node that waited longer than its fan-in
// deadline. It carries the node's FQN and the expected/received
// predecessor sets so a caller can diagnose exactly which predecessor
// never arrived.
type FanInTimeoutError struct {
	NodeFQN  string
	Expected map[string]struct{}
	Received map[string]struct{}
}

func (e *FanInTimeoutError) Error() string {
	return fmt.Sprintf("flowcontext: fan-in timeout at %s (expected %d predecessors, received %d)",
		e.NodeFQN, len(e.Expected), len(e.Received))
}

// ExecutionContext is the state of one task's walk through one compiled
// graph. It is created fresh per submission and discarded once the walk
// terminates.
type ExecutionContext struct {
	graph        *graph.Graph
	task         job.Task
	fanInTimeout time.Duration

	mu           sync.Mutex
	inputs       map[string]job.Inputs // node FQN -> predecessor FQN -> output
	savedResults map[string]any

	latches map[string]*latch
}

// New allocates an execution context for one task walking g, with the given
// fan-in deadline (30s by default; see graph config).
func New(g *graph.Graph, task job.Task, fanInTimeout time.Duration) *ExecutionContext {
	ec := &ExecutionContext{
		graph:        g,
		task:         task,
		fanInTimeout: fanInTimeout,
		inputs:       make(map[string]job.Inputs, len(g.Nodes)),
		savedResults: make(map[string]any),
		latches:      make(map[string]*latch, len(g.Nodes)),
	}
	for fqn, n := range g.Nodes {
		ec.inputs[fqn] = make(job.Inputs, len(n.ExpectedInputs))
		ec.latches[fqn] = newLatch(n.ExpectedInputs)
	}
	return ec
}

// Deliver records predecessor fromFQN's output as an input to toFQN. Once
// every predecessor listed in toFQN's expected_inputs has delivered, its
// fan-in signal fires.
func (ec *ExecutionContext) Deliver(toFQN, fromFQN string, output map[string]any) {
	ec.mu.Lock()
	ec.inputs[toFQN][fromFQN] = output
	ec.mu.Unlock()
	ec.latches[toFQN].deliver(fromFQN)
}

// AwaitFanIn blocks until nodeFQN's fan-in is satisfied, the context is
// cancelled, or the fan-in deadline elapses, whichever comes first. A node
// whose expected_inputs is empty never blocks.
func (ec *ExecutionContext) AwaitFanIn(ctx context.Context, nodeFQN string) error {
	l := ec.latches[nodeFQN]
	timer := time.NewTimer(ec.fanInTimeout)
	defer timer.Stop()
	if err := l.wait(ctx, timer.C); err != nil {
		if err == errFanInTimeout {
			return &FanInTimeoutError{
				NodeFQN:  nodeFQN,
				Expected: ec.graph.Nodes[nodeFQN].ExpectedInputs,
				Received: l.receivedSet(),
			}
		}
		return err
	}
	return nil
}

// TryStart reports whether the caller is the first arrival path to pass
// nodeFQN's fan-in check, setting the exactly-once guard atomically with
// that decision.
func (ec *ExecutionContext) TryStart(nodeFQN string) bool {
	return ec.latches[nodeFQN].tryStart()
}

// SaveResult records output under short in saved_results. Only jobs whose
// SaveResult flag is set reach this call.
func (ec *ExecutionContext) SaveResult(short string, output map[string]any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.savedResults[short] = output
}

// SavedResults returns a snapshot of the accumulated saved_results map.
func (ec *ExecutionContext) SavedResults() map[string]any {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	out := make(map[string]any, len(ec.savedResults))
	for k, v := range ec.savedResults {
		out[k] = v
	}
	return out
}

// Task returns the original task payload, unmodified for the lifetime of
// the execution.
func (ec *ExecutionContext) Task() job.Task { return ec.task }

// JobContext builds the job.Context view a running node's job sees: its
// immediate upstream outputs keyed by short predecessor name, the
// saved_results accumulated so far, the task, and the node's static
// properties.
func (ec *ExecutionContext) JobContext(nodeFQN string) job.Context {
	ec.mu.Lock()
	raw := ec.inputs[nodeFQN]
	byShort := make(map[string]any, len(raw))
	for predFQN, out := range raw {
		short := predFQN
		if n, ok := ec.graph.Nodes[predFQN]; ok {
			short = n.Short
		}
		byShort[short] = out
	}
	ec.mu.Unlock()

	return jobContext{
		inputs:     byShort,
		saved:      ec.SavedResults(),
		task:       ec.task,
		properties: ec.graph.Nodes[nodeFQN].Properties,
	}
}

type jobContext struct {
	inputs     map[string]any
	saved      map[string]any
	task       job.Task
	properties map[string]any
}

func (c jobContext) Inputs() map[string]any       { return c.inputs }
func (c jobContext) SavedResults() map[string]any { return c.saved }
func (c jobContext) Task() job.Task               { return c.task }
func (c jobContext) Params() map[string]any       { return c.properties }

// RawInputs returns nodeFQN's accumulated inputs keyed by predecessor FQN,
// the shape job.Job.Run itself receives (distinct from the short-keyed view
// job.Context.Inputs exposes to job code).
func (ec *ExecutionContext) RawInputs(nodeFQN string) job.Inputs {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	out := make(job.Inputs, len(ec.inputs[nodeFQN]))
	for k, v := range ec.inputs[nodeFQN] {
		out[k] = v
	}
	return out
}
