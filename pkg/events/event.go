package events

import (
	"context"
	"time"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "ANALYSIS_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher sends events to whichever bus is wired in.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// BaseEvent is the common concrete implementation.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Workflow lifecycle event codes.
const (
	TypeAnalysisCompleted = "ANALYSIS_COMPLETED"
	TypeAnalysisFailed    = "ANALYSIS_FAILED"
	TypeWorkflowStarted   = "WORKFLOW_STARTED"
)

// AnalysisCompleted is emitted when a domain tool finishes successfully.
func AnalysisCompleted(sessionID, workflow, summary string, selections map[string]string, artifacts []string) Event {
	sel := make(map[string]interface{}, len(selections))
	for k, v := range selections {
		sel[k] = v
	}
	return BaseEvent{
		Type: TypeAnalysisCompleted,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"workflow":   workflow,
			"summary":    summary,
			"selections": sel,
			"artifacts":  artifacts,
		},
		OccurredAt: time.Now(),
	}
}

// AnalysisFailed is emitted when a domain tool errors during execution.
func AnalysisFailed(sessionID, workflow, reason string) Event {
	return BaseEvent{
		Type: TypeAnalysisFailed,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"workflow":   workflow,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}
}

// WorkflowStarted is emitted when a trigger engages a workflow.
func WorkflowStarted(sessionID, workflow string) Event {
	return BaseEvent{
		Type: TypeWorkflowStarted,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"workflow":   workflow,
		},
		OccurredAt: time.Now(),
	}
}
