package flowmanager

import "github.com/tailored-agentic-units/jobflow/observability"

const (
	EventGraphAdded     observability.EventType = "flowmanager.graph.added"
	EventTaskSubmitted  observability.EventType = "flowmanager.task.submitted"
	EventTaskCompleted  observability.EventType = "flowmanager.task.completed"
	EventTaskErrored    observability.EventType = "flowmanager.task.errored"
	EventOnCompleteFail observability.EventType = "flowmanager.on_complete.error"
	EventShutdown       observability.EventType = "flowmanager.shutdown"
)
