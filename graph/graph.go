package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/tailored-agentic-units/jobflow/dsl"
	"github.com/tailored-agentic-units/jobflow/job"
)

// DuplicateShortNameError is returned when two distinct job.Spec values in
// one DSL tree share a short name.
type DuplicateShortNameError struct {
	Short string
}

func (e *DuplicateShortNameError) Error() string {
	return fmt.Sprintf("graph: duplicate short name %q", e.Short)
}

// ErrEmptyTree is returned by Compile when handed a nil fragment.
var ErrEmptyTree = fmt.Errorf("graph: empty dsl tree")

const (
	defaultHeadShort = "DefaultHead"
	defaultTailShort = "DefaultTail"
)

// Node is one compiled graph node: a job plus its place in the adjacency
// structure. Successors is ordered (insertion order of the compiled edges);
// ExpectedInputs is the unordered set of predecessor FQNs a node's fan-in
// waits on.
type Node struct {
	FQN            string
	Short          string
	Job            job.Job
	SaveResult     bool
	Properties     map[string]any
	Successors     []string
	ExpectedInputs map[string]struct{}
}

// Graph is a compiled DAG: nodes keyed by FQN, a single head and tail.
type Graph struct {
	FQN          string
	Nodes        map[string]*Node
	Head         string
	Tail         string
	FanInTimeout time.Duration
}

// buildNode is the pre-FQN working representation keyed by short name; FQNs
// are assigned only once the graph's own disambiguated variant is known
// (see Compile), since a node FQN embeds the graph's variant.
type buildNode struct {
	short      string
	job        job.Job
	saveResult bool
	properties map[string]any
	succ       []string
	succSet    map[string]struct{}
}

type builder struct {
	nodes   map[string]*buildNode
	bySpec  map[*job.Spec]string
	byShort map[string]*job.Spec
}

func newBuilder() *builder {
	return &builder{
		nodes:   map[string]*buildNode{},
		bySpec:  map[*job.Spec]string{},
		byShort: map[string]*job.Spec{},
	}
}

func (b *builder) addLeaf(spec *job.Spec) (string, error) {
	if short, ok := b.bySpec[spec]; ok {
		return short, nil
	}
	if existing, ok := b.byShort[spec.Short]; ok && existing != spec {
		return "", &DuplicateShortNameError{Short: spec.Short}
	}
	b.byShort[spec.Short] = spec
	b.bySpec[spec] = spec.Short
	b.nodes[spec.Short] = &buildNode{
		short:      spec.Short,
		job:        spec.Job,
		saveResult: spec.SaveResult,
		properties: spec.Properties,
		succSet:    map[string]struct{}{},
	}
	return spec.Short, nil
}

func (b *builder) addEdge(from, to string) {
	n := b.nodes[from]
	if _, ok := n.succSet[to]; ok {
		return
	}
	n.succSet[to] = struct{}{}
	n.succ = append(n.succ, to)
}

// walk compiles fragment f into b, returning the short names of f's heads
// and tails.
func (b *builder) walk(f *dsl.Fragment) (heads, tails []string, err error) {
	switch {
	case f.IsLeaf():
		short, err := b.addLeaf(f.Spec())
		if err != nil {
			return nil, nil, err
		}
		return []string{short}, []string{short}, nil

	case f.IsParallel():
		var allHeads, allTails []string
		for _, m := range f.Members() {
			h, t, err := b.walk(m)
			if err != nil {
				return nil, nil, err
			}
			allHeads = append(allHeads, h...)
			allTails = append(allTails, t...)
		}
		return allHeads, allTails, nil

	case f.IsSerial():
		members := f.Members()
		var firstHeads, lastTails []string
		var prevTails []string
		for i, m := range members {
			h, t, err := b.walk(m)
			if err != nil {
				return nil, nil, err
			}
			if i == 0 {
				firstHeads = h
			} else {
				for _, from := range prevTails {
					for _, to := range h {
						b.addEdge(from, to)
					}
				}
			}
			prevTails = t
			lastTails = t
		}
		return firstHeads, lastTails, nil

	default:
		return nil, nil, fmt.Errorf("graph: unknown fragment kind")
	}
}

// Compile converts tree into a Graph named name (with optional variant
// tag). fqnTaken reports whether a candidate graph FQN is already
// registered (typically backed by a flowmanager's registry); Compile
// appends "_1", "_2", ... to variant until it finds one fqnTaken rejects.
// Compile has no notion of "the same tree instance" — every call that
// passes an fqnTaken rejecting the prior candidate gets a new, suffixed
// FQN, even if tree is the identical pointer as a previous call. Callers
// that want recompiling the same tree to return its original FQN (rather
// than colliding with itself and being suffixed) must track tree identity
// themselves and short-circuit before calling Compile again; flowmanager's
// AddDSL does exactly that. fanInTimeout is carried on the resulting Graph
// for the executor to apply at each node.
func Compile(tree *dsl.Fragment, name, variant string, fanInTimeout time.Duration, fqnTaken func(fqn string) bool) (*Graph, error) {
	if tree == nil {
		return nil, ErrEmptyTree
	}

	b := newBuilder()
	heads, tails, err := b.walk(tree)
	if err != nil {
		return nil, err
	}

	head := dedupe(heads)
	tail := dedupe(tails)

	if len(head) > 1 {
		b.nodes[defaultHeadShort] = &buildNode{
			short:   defaultHeadShort,
			job:     job.Func(defaultHeadRun),
			succSet: map[string]struct{}{},
		}
		for _, h := range head {
			b.addEdge(defaultHeadShort, h)
		}
		head = []string{defaultHeadShort}
	}

	if len(tail) > 1 {
		b.nodes[defaultTailShort] = &buildNode{
			short:   defaultTailShort,
			job:     job.Func(defaultTailRun),
			succSet: map[string]struct{}{},
		}
		for _, t := range tail {
			b.addEdge(t, defaultTailShort)
		}
		tail = []string{defaultTailShort}
	}

	headShort := head[0]

	finalVariant := variant
	for suffix := 1; ; suffix++ {
		candidate := FQN{Graph: name, Variant: finalVariant, Short: headShort}.Format()
		if fqnTaken == nil || !fqnTaken(candidate) {
			break
		}
		finalVariant = fmt.Sprintf("%s_%d", variant, suffix)
	}

	g := &Graph{
		FQN:          FQN{Graph: name, Variant: finalVariant, Short: headShort}.Format(),
		Nodes:        map[string]*Node{},
		Head:         FQN{Graph: name, Variant: finalVariant, Short: headShort}.Format(),
		Tail:         FQN{Graph: name, Variant: finalVariant, Short: tail[0]}.Format(),
		FanInTimeout: fanInTimeout,
	}

	shortToFQN := func(short string) string {
		return FQN{Graph: name, Variant: finalVariant, Short: short}.Format()
	}

	for short, bn := range b.nodes {
		fqn := shortToFQN(short)
		succ := make([]string, 0, len(bn.succ))
		for _, s := range bn.succ {
			succ = append(succ, shortToFQN(s))
		}
		g.Nodes[fqn] = &Node{
			FQN:            fqn,
			Short:          short,
			Job:            bn.job,
			SaveResult:     bn.saveResult,
			Properties:     bn.properties,
			Successors:     succ,
			ExpectedInputs: map[string]struct{}{},
		}
	}

	for _, n := range g.Nodes {
		for _, s := range n.Successors {
			g.Nodes[s].ExpectedInputs[n.FQN] = struct{}{}
		}
	}

	return g, nil
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// defaultHeadRun is the synthetic head injected when a DSL tree has more
// than one source. It does no real work.
func defaultHeadRun(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
	return map[string]any{}, nil
}

// defaultTailRun is the synthetic tail injected when a DSL tree has more
// than one sink. Its output is exactly its predecessors' outputs keyed by
// short name — which is precisely what jc.Inputs() already provides.
func defaultTailRun(ctx context.Context, inputs job.Inputs, task job.Task, jc job.Context) (map[string]any, error) {
	return jc.Inputs(), nil
}
