package config

// ParallelDispatchConfig controls the worker pool used by the CLI's
// batch-submit helper, which fans independent input lines out to
// FlowManager.Submit concurrently. It mirrors the orchestration pack's
// worker-sizing and fail-fast conventions; unlike GraphConfig and
// FlowManagerConfig it governs a plain item fan-out, not the DAG itself.
//
// Worker Pool Sizing:
//   - MaxWorkers > 0: use exact count
//   - MaxWorkers = 0: auto-detect min(NumCPU*2, WorkerCap, itemCount)
type ParallelDispatchConfig struct {
	// MaxWorkers specifies exact worker pool size (0 = auto-detect).
	MaxWorkers int `json:"max_workers"`

	// WorkerCap limits auto-detected workers.
	WorkerCap int `json:"worker_cap"`

	// FailFastNil controls error handling. nil defaults to false: collect
	// all submission errors and keep dispatching (individual task failures
	// already surface through FlowManager's own errors buffer, so stopping
	// the whole batch on one bad submission is rarely what a caller wants).
	FailFastNil *bool `json:"fail_fast"`

	// Observer specifies which observer implementation to use.
	Observer string `json:"observer"`
}

func (c *ParallelDispatchConfig) FailFast() bool {
	if c.FailFastNil == nil {
		return false
	}
	return *c.FailFastNil
}

// DefaultParallelDispatchConfig returns sensible defaults for batch
// submission: auto-detected worker count capped at 16, collect-all-errors.
func DefaultParallelDispatchConfig() ParallelDispatchConfig {
	return ParallelDispatchConfig{
		MaxWorkers: 0,
		WorkerCap:  16,
		Observer:   "noop",
	}
}

func (c *ParallelDispatchConfig) Merge(source *ParallelDispatchConfig) {
	if source.MaxWorkers > 0 {
		c.MaxWorkers = source.MaxWorkers
	}
	if source.WorkerCap > 0 {
		c.WorkerCap = source.WorkerCap
	}
	if source.FailFastNil != nil {
		c.FailFastNil = source.FailFastNil
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}
