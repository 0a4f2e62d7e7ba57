// Package job defines the unit of work that graph nodes execute: a named
// asynchronous operation that consumes a map of predecessor outputs and the
// original task payload, and produces a map output or an error.
package job

import "context"

// Inputs maps a predecessor's FQN to that predecessor's output map. For a
// graph's head node, Inputs is always empty. Context.Inputs offers the same
// outputs keyed by short name.
type Inputs map[string]map[string]any

// Task is the caller-supplied payload for one execution. Keys are either
// bare strings (passed through to job code untouched) or dotted strings of
// the form "<short_job_name>.<param>" (consumed by wrapped-callable jobs to
// pull their own arguments, see Context.Params and the Wrap family).
type Task map[string]any

// Context is the structured view a running job receives alongside its
// inputs. It exposes exactly the helpers a job needs and nothing else — a
// job must not be able to reach into sibling execution state.
type Context interface {
	// Inputs returns this node's immediate upstream outputs, keyed by
	// predecessor short name (parsed from each predecessor's FQN).
	Inputs() map[string]any

	// SavedResults returns the saved_results map accumulated so far in
	// this execution: outputs of every previously-run job in this walk
	// whose SaveResult flag is set.
	SavedResults() map[string]any

	// Task returns the original, unmodified task payload.
	Task() Task

	// Params returns this job's static properties block, fixed at compile
	// time (used by jobs that need per-variant configuration).
	Params() map[string]any
}

// Job is the unit of work executed at a graph node.
//
// A job must not mutate Task or another job's output map; Context.Inputs and
// Context.SavedResults are handed to Run by value-shaped map references but
// are conventionally treated as read-only.
type Job interface {
	// Run executes the job. inputs is empty for a head node.
	Run(ctx context.Context, inputs Inputs, task Task, jc Context) (map[string]any, error)
}

// Func adapts a plain function to the Job interface, mirroring the
// teacher's FunctionNode wrapper for StateNode.
type Func func(ctx context.Context, inputs Inputs, task Task, jc Context) (map[string]any, error)

func (f Func) Run(ctx context.Context, inputs Inputs, task Task, jc Context) (map[string]any, error) {
	return f(ctx, inputs, task, jc)
}
