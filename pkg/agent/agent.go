// Package agent is the boundary to the general-purpose reasoning agent that
// answers free-form data questions. The workflow engine only ever reaches it
// through the handoff component, which bounds the call and keeps the
// workflow stage untouched.
package agent

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout marks a reasoning call that exceeded its deadline.
var ErrTimeout = errors.New("agent: timed out")

// AgentError wraps any other failure of the reasoning agent.
type AgentError struct {
	Err error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent: %v", e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

// ContextBundle is everything the agent gets about the session: where the
// workflow stands, which slot options are still pending, and the dataset's
// column/shape metadata so it can answer data questions without guessing
// column names. Raw dataset content is never included.
type ContextBundle struct {
	Stage          string
	PendingSlot    string
	ValidOptions   []string
	DatasetColumns []string
	NumericColumns []string
	DatasetRows    int
}

// ReasoningAgent answers free-form questions with the supplied context.
type ReasoningAgent interface {
	Answer(ctx context.Context, text string, bundle ContextBundle) (string, error)
}
