package config

import "time"

// FlowManagerConfig controls the flow manager's scheduling and reporting
// behavior: consumed once by flowmanager.New, after which the manager only
// holds what it derived from it.
//
// Example JSON (durations are integer nanoseconds, as encoding/json decodes
// a time.Duration):
//
//	{
//	  "observer": "slog",
//	  "max_concurrent_executions": 256,
//	  "execution_timeout": 0,
//	  "fan_in_timeout": 30000000000,
//	  "raise_on_error": false
//	}
type FlowManagerConfig struct {
	// Observer specifies which observer implementation to use ("noop",
	// "slog", ...), resolved via the observability registry.
	Observer string `json:"observer"`

	// MaxConcurrentExecutions bounds how many task executions run at once
	// (the manager's cooperative-scheduler concurrency cap). 0 means
	// unbounded.
	MaxConcurrentExecutions int `json:"max_concurrent_executions"`

	// ExecutionTimeout bounds a single task's walk through its graph.
	// 0 means unbounded.
	ExecutionTimeout time.Duration `json:"execution_timeout"`

	// FanInTimeoutDuration bounds how long any node in a graph compiled via
	// AddDSL waits for its predecessors to arrive. 0 falls back to the
	// package default of 30s.
	FanInTimeoutDuration time.Duration `json:"fan_in_timeout"`

	// RaiseOnError makes WaitForCompletion return a summary error if any
	// task errored during the wait. Detailed errors remain available via
	// PopResults regardless of this flag. Default off in production, on in
	// tests.
	RaiseOnError bool `json:"raise_on_error"`
}

// FanInTimeout returns the configured fan-in deadline, or the 30s package
// default when unset.
func (c FlowManagerConfig) FanInTimeout() time.Duration {
	if c.FanInTimeoutDuration > 0 {
		return c.FanInTimeoutDuration
	}
	return 30 * time.Second
}

// DefaultFlowManagerConfig returns production defaults: unbounded execution
// timeout, unbounded concurrency, 30s fan-in timeout, RaiseOnError disabled.
func DefaultFlowManagerConfig() FlowManagerConfig {
	return FlowManagerConfig{
		Observer:                "noop",
		MaxConcurrentExecutions: 0,
		ExecutionTimeout:        0,
		FanInTimeoutDuration:    30 * time.Second,
		RaiseOnError:            false,
	}
}

func (c *FlowManagerConfig) Merge(source *FlowManagerConfig) {
	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.MaxConcurrentExecutions > 0 {
		c.MaxConcurrentExecutions = source.MaxConcurrentExecutions
	}
	if source.ExecutionTimeout > 0 {
		c.ExecutionTimeout = source.ExecutionTimeout
	}
	if source.FanInTimeoutDuration > 0 {
		c.FanInTimeoutDuration = source.FanInTimeoutDuration
	}
	if source.RaiseOnError {
		c.RaiseOnError = source.RaiseOnError
	}
}
