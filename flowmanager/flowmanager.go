// Package flowmanager owns the set of compiled graphs, accepts task
// submissions, runs them concurrently on a cooperative scheduler, and
// delivers results by blocking wait, queue pop, or completion callback.
package flowmanager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tailored-agentic-units/jobflow/config"
	"github.com/tailored-agentic-units/jobflow/dsl"
	"github.com/tailored-agentic-units/jobflow/executor"
	"github.com/tailored-agentic-units/jobflow/graph"
	"github.com/tailored-agentic-units/jobflow/job"
	"github.com/tailored-agentic-units/jobflow/observability"
)

// OnCompleteFunc is invoked after a task's successful completion, receiving
// the same augmented tail output PopResults would otherwise surface. A
// panic from it is recovered and reported to the observer as an
// EventOnCompleteFail event — it must never stop the manager from draining
// the queue.
type OnCompleteFunc func(output map[string]any)

// FlowManager is the owner of compiled graphs and the scheduler of task
// executions.
type FlowManager struct {
	cfg      config.FlowManagerConfig
	observer observability.Observer

	graphMu sync.RWMutex
	graphs  map[string]*graph.Graph
	treeFQN map[*dsl.Fragment]string

	sem *semaphore.Weighted

	resultsMu sync.Mutex
	completed map[string][]map[string]any
	errorsBuf map[string][]error

	submitted atomic.Int64
	completedCount atomic.Int64
	errorsCount    atomic.Int64
	inFlight       atomic.Int64

	onCompleteMu sync.RWMutex
	onComplete   OnCompleteFunc

	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// New constructs a manager from cfg, resolving its named observer via the
// observability registry (falling back to NoOpObserver on a bad name).
func New(cfg config.FlowManagerConfig) *FlowManager {
	obs, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		obs = observability.NoOpObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &FlowManager{
		cfg:       cfg,
		observer:  obs,
		graphs:    make(map[string]*graph.Graph),
		treeFQN:   make(map[*dsl.Fragment]string),
		completed: make(map[string][]map[string]any),
		errorsBuf: make(map[string][]error),
		ctx:       ctx,
		cancel:    cancel,
	}
	if cfg.MaxConcurrentExecutions > 0 {
		m.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentExecutions))
	}
	return m
}

// OnComplete registers the manager's completion callback.
func (m *FlowManager) OnComplete(fn OnCompleteFunc) {
	m.onCompleteMu.Lock()
	defer m.onCompleteMu.Unlock()
	m.onComplete = fn
}

// AddDSL compiles tree under the given graph name and optional variant,
// registers it, and returns its FQN. A collision on the candidate FQN is
// resolved by appending a numeric variant suffix. Calling AddDSL again with
// the identical *dsl.Fragment pointer is idempotent: it returns the FQN
// already assigned to that tree instead of colliding with its own prior
// registration and being suffixed. The fan-in timeout applied to every node
// comes from the manager's own FlowManagerConfig; use AddGraphConfig to
// override it per graph.
func (m *FlowManager) AddDSL(tree *dsl.Fragment, name, variant string) (string, error) {
	return m.addCompiled(tree, name, variant, m.cfg.FanInTimeout())
}

// AddGraphConfig compiles tree per cfg — name, variant, and a per-graph
// fan-in timeout instead of the manager's own default — registers it, and
// returns its FQN. Same idempotence-by-tree-identity as AddDSL.
func (m *FlowManager) AddGraphConfig(tree *dsl.Fragment, cfg config.GraphConfig) (string, error) {
	return m.addCompiled(tree, cfg.Name, cfg.Variant, cfg.FanInTimeout)
}

func (m *FlowManager) addCompiled(tree *dsl.Fragment, name, variant string, fanInTimeout time.Duration) (string, error) {
	m.graphMu.Lock()
	defer m.graphMu.Unlock()

	if fqn, ok := m.treeFQN[tree]; ok {
		return fqn, nil
	}

	g, err := graph.Compile(tree, name, variant, fanInTimeout, func(fqn string) bool {
		_, ok := m.graphs[fqn]
		return ok
	})
	if err != nil {
		return "", err
	}
	m.graphs[g.FQN] = g
	m.treeFQN[tree] = g.FQN

	m.observer.OnEvent(m.ctx, observability.Event{
		Type:      EventGraphAdded,
		Level:     observability.LevelInfo,
		Timestamp: nowFunc(),
		Source:    "flowmanager",
		Data:      map[string]any{"fqn": g.FQN},
	})
	return g.FQN, nil
}

// Submit enqueues task against the graph registered under fqn, incrementing
// submitted immediately and running the walk on its own goroutine.
func (m *FlowManager) Submit(task job.Task, fqn string) error {
	m.graphMu.RLock()
	g, ok := m.graphs[fqn]
	m.graphMu.RUnlock()
	if !ok {
		return &UnknownFQNError{FQN: fqn}
	}

	m.submitted.Add(1)
	m.inFlight.Add(1)

	m.observer.OnEvent(m.ctx, observability.Event{
		Type:      EventTaskSubmitted,
		Level:     observability.LevelVerbose,
		Timestamp: nowFunc(),
		Source:    "flowmanager",
		Data:      map[string]any{"fqn": fqn},
	})

	m.wg.Add(1)
	go m.run(g, fqn, task)
	return nil
}

func (m *FlowManager) run(g *graph.Graph, fqn string, task job.Task) {
	defer m.wg.Done()
	defer m.inFlight.Add(-1)

	if m.sem != nil {
		if err := m.sem.Acquire(m.ctx, 1); err != nil {
			m.recordError(fqn, err)
			return
		}
		defer m.sem.Release(1)
	}

	output, err := executor.Run(m.ctx, g, task, m.cfg.ExecutionTimeout)
	if err != nil {
		m.recordError(fqn, err)
		return
	}
	m.recordCompletion(fqn, output)
}

func (m *FlowManager) recordCompletion(fqn string, output map[string]any) {
	m.resultsMu.Lock()
	m.completed[fqn] = append(m.completed[fqn], output)
	m.resultsMu.Unlock()
	m.completedCount.Add(1)

	m.observer.OnEvent(m.ctx, observability.Event{
		Type:      EventTaskCompleted,
		Level:     observability.LevelInfo,
		Timestamp: nowFunc(),
		Source:    "flowmanager",
		Data:      map[string]any{"fqn": fqn},
	})

	m.onCompleteMu.RLock()
	cb := m.onComplete
	m.onCompleteMu.RUnlock()
	if cb == nil {
		return
	}
	m.invokeOnComplete(cb, output)
}

func (m *FlowManager) invokeOnComplete(cb OnCompleteFunc, output map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			m.observer.OnEvent(m.ctx, observability.Event{
				Type:      EventOnCompleteFail,
				Level:     observability.LevelError,
				Timestamp: nowFunc(),
				Source:    "flowmanager",
				Data:      map[string]any{"panic": fmt.Sprint(r)},
			})
		}
	}()
	cb(output)
}

func (m *FlowManager) recordError(fqn string, err error) {
	m.resultsMu.Lock()
	m.errorsBuf[fqn] = append(m.errorsBuf[fqn], err)
	m.resultsMu.Unlock()
	m.errorsCount.Add(1)

	m.observer.OnEvent(m.ctx, observability.Event{
		Type:      EventTaskErrored,
		Level:     observability.LevelError,
		Timestamp: nowFunc(),
		Source:    "flowmanager",
		Data:      map[string]any{"fqn": fqn, "error": err.Error()},
	})
}

// WaitForCompletion polls until submitted == completed + errors, timeout
// elapses, or ctx is done. It returns true on convergence, false on
// timeout. When the manager's RaiseOnError flag is set, it returns a
// non-nil error only after the wait has concluded and only if errors > 0.
func (m *FlowManager) WaitForCompletion(ctx context.Context, timeout, interval time.Duration) (bool, error) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if m.submitted.Load() == m.completedCount.Load()+m.errorsCount.Load() {
			return true, m.raiseIfNeeded()
		}
		if timeout > 0 && time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *FlowManager) raiseIfNeeded() error {
	if !m.cfg.RaiseOnError {
		return nil
	}
	if n := m.errorsCount.Load(); n > 0 {
		return &RaiseOnErrorError{Count: n}
	}
	return nil
}

// PopResults drains and returns the completed/errors buffers.
func (m *FlowManager) PopResults() Results {
	m.resultsMu.Lock()
	defer m.resultsMu.Unlock()

	res := Results{
		Completed: m.completed,
		Errors:    m.errorsBuf,
	}
	m.completed = make(map[string][]map[string]any)
	m.errorsBuf = make(map[string][]error)
	return res
}

// GetCounts returns a snapshot of the manager's atomic counters.
func (m *FlowManager) GetCounts() Counts {
	return Counts{
		Submitted: m.submitted.Load(),
		Completed: m.completedCount.Load(),
		Errors:    m.errorsCount.Load(),
		InFlight:  m.inFlight.Load(),
	}
}

// FQNames returns the FQNs of every compiled graph the manager holds.
func (m *FlowManager) FQNames() []string {
	m.graphMu.RLock()
	defer m.graphMu.RUnlock()
	out := make([]string, 0, len(m.graphs))
	for fqn := range m.graphs {
		out = append(out, fqn)
	}
	return out
}

// HeadJobs returns the short names of the head node's immediate successors
// for the graph registered under fqn, or an UnknownFQNError. A graph whose
// head has no successors (a single-node graph) returns an empty slice.
func (m *FlowManager) HeadJobs(fqn string) ([]string, error) {
	m.graphMu.RLock()
	defer m.graphMu.RUnlock()
	g, ok := m.graphs[fqn]
	if !ok {
		return nil, &UnknownFQNError{FQN: fqn}
	}
	head, ok := g.Nodes[g.Head]
	if !ok {
		return nil, fmt.Errorf("flowmanager: head node %s missing from graph %s", g.Head, fqn)
	}
	out := make([]string, 0, len(head.Successors))
	for _, succFQN := range head.Successors {
		if n, ok := g.Nodes[succFQN]; ok {
			out = append(out, n.Short)
		}
	}
	return out, nil
}

// Run is the one-shot convenience helper: compile tree, submit task once,
// block for completion, and return the tail output. It always returns the
// tail's own augmented output map, never a per-job map — see DESIGN.md.
func (m *FlowManager) Run(tree *dsl.Fragment, task job.Task, graphName string) (map[string]any, error) {
	fqn, err := m.AddDSL(tree, graphName, "")
	if err != nil {
		return nil, err
	}
	if err := m.Submit(task, fqn); err != nil {
		return nil, err
	}
	if _, err := m.WaitForCompletion(m.ctx, 0, 20*time.Millisecond); err != nil {
		return nil, err
	}

	res := m.PopResults()
	if errs := res.Errors[fqn]; len(errs) > 0 {
		return nil, errs[0]
	}
	outs := res.Completed[fqn]
	if len(outs) == 0 {
		return nil, fmt.Errorf("flowmanager: no result recorded for %s", fqn)
	}
	return outs[0], nil
}

// Shutdown cancels every in-flight execution and waits up to timeout for
// them to unwind.
func (m *FlowManager) Shutdown(timeout time.Duration) {
	m.cancel()
	m.observer.OnEvent(context.Background(), observability.Event{
		Type:      EventShutdown,
		Level:     observability.LevelInfo,
		Timestamp: nowFunc(),
		Source:    "flowmanager",
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}
}

// nowFunc is a seam for tests; production code always uses time.Now.
var nowFunc = time.Now

var (
	instanceMu  sync.Mutex
	instanceVal *FlowManager
)

// Instance returns the process-wide shared FlowManager, constructing it
// from cfg on first call. Subsequent calls ignore cfg and return the
// already-built instance until ResetInstance discards it. This is an
// accessor convenience for callers that want to share one manager across
// unrelated packages without threading a *FlowManager through every call
// site; correctness never depends on going through it instead of New.
func Instance(cfg config.FlowManagerConfig) *FlowManager {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instanceVal == nil {
		instanceVal = New(cfg)
	}
	return instanceVal
}

// ResetInstance discards the process-wide shared FlowManager so the next
// Instance call builds a fresh one from whatever cfg it is given. Intended
// for use between test cases that each want a clean manager.
func ResetInstance() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instanceVal = nil
}
