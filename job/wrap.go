package job

import (
	"context"
	"fmt"
	"strings"
)

// Callable is a plain function accepted by the DSL composer as a graph leaf.
// Unlike Job, a Callable does not see predecessor inputs or saved results —
// only the parameters the task addressed to it, so it can be written without
// any dependency on this package.
//
// Example:
//
//	worker := job.Callable(func(ctx context.Context, params map[string]any) (map[string]any, error) {
//	    time.Sleep(params["duration"].(time.Duration))
//	    return map[string]any{"task_id": params["task_id"]}, nil
//	})
type Callable func(ctx context.Context, params map[string]any) (map[string]any, error)

// kind tags which branch of the wrapping rule an arbitrary value falls
// into. A tagged-variant dispatch table, not structural introspection at
// each call.
type kind int

const (
	kindJob kind = iota
	kindCallable
	kindValue
)

// Wrap adapts an arbitrary DSL leaf value to Job, applying the wrapping
// rule:
//   - a value already implementing Job is returned unchanged;
//   - a Callable is wrapped so its Run extracts "<short>.<param>" keys from
//     the task into a plain params map and invokes the callable with them;
//   - anything else becomes a job that returns a constant output holding
//     the value's string form.
func Wrap(short string, v any) Job {
	switch t := v.(type) {
	case Job:
		return t
	case Callable:
		return callableJob{short: short, fn: t}
	default:
		return constJob{value: fmt.Sprint(v)}
	}
}

// classify reports which branch of the wrapping rule Wrap applies to v. It
// is used by this package's tests; the graph compiler decides node identity
// by *Spec pointer, not through classify.
func classify(v any) kind {
	switch v.(type) {
	case Job:
		return kindJob
	case Callable:
		return kindCallable
	default:
		return kindValue
	}
}

type callableJob struct {
	short string
	fn    Callable
}

func (c callableJob) Run(ctx context.Context, inputs Inputs, task Task, jc Context) (map[string]any, error) {
	prefix := c.short + "."
	params := make(map[string]any)
	for k, v := range task {
		if after, ok := strings.CutPrefix(k, prefix); ok {
			params[after] = v
		}
	}
	return c.fn(ctx, params)
}

type constJob struct {
	value string
}

func (j constJob) Run(ctx context.Context, inputs Inputs, task Task, jc Context) (map[string]any, error) {
	return map[string]any{"value": j.value}, nil
}
