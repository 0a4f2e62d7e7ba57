package flowmanager

import "fmt"

// UnknownFQNError reports that submit referenced a graph that was never
// added.
type UnknownFQNError struct {
	FQN string
}

func (e *UnknownFQNError) Error() string {
	return fmt.Sprintf("flowmanager: unknown fqn %q", e.FQN)
}

// RaiseOnErrorError is the summary error WaitForCompletion raises when the
// manager's RaiseOnError flag is set and at least one task errored during
// the wait.
type RaiseOnErrorError struct {
	Count int64
}

func (e *RaiseOnErrorError) Error() string {
	return fmt.Sprintf("flowmanager: %d task(s) errored", e.Count)
}
