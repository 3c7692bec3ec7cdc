package entity

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRun is the audit record of one completed domain tool execution.
type AnalysisRun struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	Workflow      string
	Selections    map[string]string
	Summary       string
	Artifacts     []string
	CreatedAt     time.Time
}
