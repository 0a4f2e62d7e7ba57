package batch

import "github.com/tailored-agentic-units/jobflow/observability"

const (
	EventParallelStart    observability.EventType = "batch.parallel.start"
	EventParallelComplete observability.EventType = "batch.parallel.complete"
	EventWorkerStart      observability.EventType = "batch.worker.start"
	EventWorkerComplete   observability.EventType = "batch.worker.complete"
)
