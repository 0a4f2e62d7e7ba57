package main

import (
	"context"

	"github.com/tailored-agentic-units/jobflow/dsl"
	"github.com/tailored-agentic-units/jobflow/job"
)

// buildDiamond returns A >> (B | C) >> D: A seeds a value, B doubles it, C
// adds ten, D sums B and C's outputs. A demo graph exercising fan-out and
// fan-in in one shape.
func buildDiamond() *dsl.Fragment {
	a := dsl.Value("A", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		return map[string]any{"v": 1}, nil
	}))
	b := dsl.Value("B", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		v := jc.Inputs()["A"].(map[string]any)["v"].(int)
		return map[string]any{"b": v * 2}, nil
	}))
	c := dsl.Value("C", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		v := jc.Inputs()["A"].(map[string]any)["v"].(int)
		return map[string]any{"c": v + 10}, nil
	}))
	d := dsl.Value("D", job.Func(func(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
		in := jc.Inputs()
		b := in["B"].(map[string]any)["b"].(int)
		c := in["C"].(map[string]any)["c"].(int)
		return map[string]any{"sum": b + c}, nil
	}))
	return dsl.Serial(a, dsl.Serial(dsl.Parallel(b, c), d))
}
