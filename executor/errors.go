package executor

import (
	"fmt"

	"github.com/pkg/errors"
)

// JobFailedError wraps a user job's error with the FQN of the node that
// raised it. Err is wrapped with errors.Wrap so the original stack trace
// survives up through the executor and flow manager, where a job failure
// otherwise only has the node's FQN to go on.
type JobFailedError struct {
	NodeFQN string
	Err     error
}

func newJobFailedError(nodeFQN string, cause error) *JobFailedError {
	return &JobFailedError{NodeFQN: nodeFQN, Err: errors.Wrapf(cause, "node %s", nodeFQN)}
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("executor: job %s failed: %v", e.NodeFQN, e.Err)
}

func (e *JobFailedError) Unwrap() error { return e.Err }

// CancelledError reports that the execution's context was cancelled by its
// caller (typically the flow manager, shutting down or cancelling
// in-flight work) before the walk completed.
type CancelledError struct{}

func (e *CancelledError) Error() string { return "executor: execution cancelled" }

// TimeoutError reports that the per-execution deadline elapsed before the
// walk completed. Distinct from FanInTimeoutError, which is a per-node
// deadline internal to one fan-in wait.
type TimeoutError struct{}

func (e *TimeoutError) Error() string { return "executor: execution timeout" }
