package flowmanager

// Results is the record PopResults drains from the manager: completed task
// outputs and errors, each keyed by the graph FQN the task ran against.
// Either list may be empty; an entry is never silently dropped.
type Results struct {
	Completed map[string][]map[string]any
	Errors    map[string][]error
}

// Counts is a snapshot of the manager's atomic counters.
type Counts struct {
	Submitted int64
	Completed int64
	Errors    int64
	InFlight  int64
}
