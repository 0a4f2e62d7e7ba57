package job

import "context"

// Echo returns a Job that passes its task through unchanged under the given
// key, a trivial building block for wiring tests and examples without
// writing a one-off Func.
func Echo(key string) Job {
	return Func(func(ctx context.Context, inputs Inputs, task Task, jc Context) (map[string]any, error) {
		return map[string]any{key: task[key]}, nil
	})
}

// Const returns a Job that ignores its inputs and task and always produces
// the same output map — useful as a fixed fan-in source in tests.
func Const(output map[string]any) Job {
	return Func(func(ctx context.Context, inputs Inputs, task Task, jc Context) (map[string]any, error) {
		return output, nil
	})
}
