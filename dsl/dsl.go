// Package dsl implements the graph composition operators: parallel and
// serial combinators over jobs, callables, and constants, producing an
// opaque tree the graph package compiles into a DAG.
//
// The composer never inspects job internals — it only builds and reshapes
// trees of Fragment nodes, deferring FQN assignment and adjacency
// computation entirely to the compiler.
package dsl

import (
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/jobflow/job"
)

// ErrEmptyList is returned by ParallelList and SerialList when given zero
// fragments; an empty list is a hard error, never a silently-degenerate
// no-op fragment.
var ErrEmptyList = errors.New("dsl: empty list")

type op int

const (
	opLeaf op = iota
	opParallel
	opSerial
)

// Fragment is a node in an uncompiled DSL tree: either a leaf wrapping a
// single job.Spec, or a composite combining member fragments with parallel
// or serial semantics. Fragment is opaque outside this package; callers
// build one with Leaf/Value/Parallel/Serial and hand it to graph.Compile.
type Fragment struct {
	op      op
	spec    *job.Spec
	members []*Fragment
}

// Leaf wraps an already-built job.Spec as a single-node fragment.
func Leaf(spec *job.Spec) *Fragment {
	return &Fragment{op: opLeaf, spec: spec}
}

// Value wraps v (a Job, a job.Callable, or a plain constant) under a short
// name in one step, applying job.Wrap's rule.
func Value(short string, v any, opts ...job.Option) *Fragment {
	return Leaf(job.NewSpec(short, v, opts...))
}

// Parallel composes two or more fragments that run concurrently from a
// shared set of predecessors and converge on a shared set of successors.
// Binary-plus-variadic so the tree can never be empty at construction time.
func Parallel(a, b *Fragment, rest ...*Fragment) *Fragment {
	members := make([]*Fragment, 0, 2+len(rest))
	members = append(members, a, b)
	members = append(members, rest...)
	return &Fragment{op: opParallel, members: members}
}

// Serial composes two or more fragments that run in sequence, each waiting
// on the previous fragment's completion.
func Serial(a, b *Fragment, rest ...*Fragment) *Fragment {
	members := make([]*Fragment, 0, 2+len(rest))
	members = append(members, a, b)
	members = append(members, rest...)
	return &Fragment{op: opSerial, members: members}
}

// ParallelList composes a slice of fragments the same way Parallel does,
// for callers assembling the member list at runtime. An empty slice is
// ErrEmptyList, never a silent identity fragment.
func ParallelList(items []*Fragment) (*Fragment, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("dsl.ParallelList: %w", ErrEmptyList)
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return &Fragment{op: opParallel, members: items}, nil
}

// SerialList composes a slice of fragments the same way Serial does.
func SerialList(items []*Fragment) (*Fragment, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("dsl.SerialList: %w", ErrEmptyList)
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return &Fragment{op: opSerial, members: items}, nil
}

// IsLeaf reports whether f wraps a single job.Spec.
func (f *Fragment) IsLeaf() bool { return f.op == opLeaf }

// Spec returns f's wrapped job.Spec. Only valid when f.IsLeaf().
func (f *Fragment) Spec() *job.Spec { return f.spec }

// IsParallel reports whether f is a parallel composite.
func (f *Fragment) IsParallel() bool { return f.op == opParallel }

// IsSerial reports whether f is a serial composite.
func (f *Fragment) IsSerial() bool { return f.op == opSerial }

// Members returns f's direct members. Only valid for composite fragments.
func (f *Fragment) Members() []*Fragment { return f.members }
