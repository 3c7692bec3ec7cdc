package store

import "time"

// Stage identifies the current position of a session inside a guided workflow.
// Stages are stable strings so they survive JSON round-trips through the
// session store unchanged.
type Stage string

const (
	StageIdle      Stage = "IDLE"
	StageExecuting Stage = "EXECUTING"
	StageComplete  Stage = "COMPLETE"
	StagePaused    Stage = "PAUSED"

	// AwaitingPrefix marks the per-slot stages, e.g. "AWAITING_FACILITY_LEVEL".
	AwaitingPrefix = "AWAITING_"
)

// Awaiting builds the stage for a pending slot name.
func Awaiting(slotName string) Stage {
	return Stage(AwaitingPrefix + normalizeStageName(slotName))
}

// IsAwaiting reports whether the stage is waiting for a slot value.
func (s Stage) IsAwaiting() bool {
	return len(s) > len(AwaitingPrefix) && s[:len(AwaitingPrefix)] == AwaitingPrefix
}

// IsResting reports whether a new workflow can be started from this stage.
func (s Stage) IsResting() bool {
	return s == StageIdle || s == StageComplete || s == ""
}

func (s Stage) String() string {
	return string(s)
}

func normalizeStageName(slotName string) string {
	out := make([]byte, len(slotName))
	for i := 0; i < len(slotName); i++ {
		c := slotName[i]
		switch {
		case c >= 'a' && c <= 'z':
			out[i] = c - ('a' - 'A')
		case c == ' ' || c == '-':
			out[i] = '_'
		default:
			out[i] = c
		}
	}
	return string(out)
}

// Snapshot is the restorable copy of workflow progress saved on pause.
type Snapshot struct {
	Stage      Stage             `json:"stage"`
	Selections map[string]string `json:"selections"`
}

// WorkflowState is the per-session workflow progress record. It is owned by
// the session store and re-read at the start of every engine call; no
// component may cache it across calls.
type WorkflowState struct {
	SessionID string `json:"session_id"`

	// Workflow is the name of the active workflow ("" while idle).
	Workflow string `json:"workflow"`

	Stage      Stage             `json:"stage"`
	Selections map[string]string `json:"selections"`
	Active     bool              `json:"active"`

	// PausedSnapshot holds (stage, selections) saved by an explicit pause.
	PausedSnapshot *Snapshot `json:"paused_snapshot,omitempty"`

	// PendingLargeRequest records a request that was deferred because it was
	// judged too expensive to hand off.
	PendingLargeRequest string `json:"pending_large_request,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`

	// Version backs the store's optimistic concurrency check. Zero means the
	// record has never been persisted.
	Version int64 `json:"version"`
}

// NewWorkflowState returns an idle state for a session.
func NewWorkflowState(sessionID string) *WorkflowState {
	return &WorkflowState{
		SessionID:  sessionID,
		Stage:      StageIdle,
		Selections: map[string]string{},
	}
}

// Clone returns a deep copy so callers can mutate freely without aliasing the
// stored record.
func (w *WorkflowState) Clone() *WorkflowState {
	cp := *w
	cp.Selections = make(map[string]string, len(w.Selections))
	for k, v := range w.Selections {
		cp.Selections[k] = v
	}
	if w.PausedSnapshot != nil {
		snap := Snapshot{
			Stage:      w.PausedSnapshot.Stage,
			Selections: make(map[string]string, len(w.PausedSnapshot.Selections)),
		}
		for k, v := range w.PausedSnapshot.Selections {
			snap.Selections[k] = v
		}
		cp.PausedSnapshot = &snap
	}
	return &cp
}

// Pause saves the current progress into the snapshot and suspends the
// workflow.
func (w *WorkflowState) Pause() {
	snap := Snapshot{
		Stage:      w.Stage,
		Selections: make(map[string]string, len(w.Selections)),
	}
	for k, v := range w.Selections {
		snap.Selections[k] = v
	}
	w.PausedSnapshot = &snap
	w.Stage = StagePaused
	w.Active = false
}

// Resume restores the paused snapshot. Returns false when there is nothing to
// resume.
func (w *WorkflowState) Resume() bool {
	if w.PausedSnapshot == nil {
		return false
	}
	w.Stage = w.PausedSnapshot.Stage
	w.Selections = make(map[string]string, len(w.PausedSnapshot.Selections))
	for k, v := range w.PausedSnapshot.Selections {
		w.Selections[k] = v
	}
	w.PausedSnapshot = nil
	w.Active = true
	return true
}

// Reset clears all workflow progress back to idle.
func (w *WorkflowState) Reset() {
	w.Workflow = ""
	w.Stage = StageIdle
	w.Selections = map[string]string{}
	w.Active = false
	w.PausedSnapshot = nil
	w.PendingLargeRequest = ""
}
