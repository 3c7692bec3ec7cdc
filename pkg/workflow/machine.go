// Package workflow implements the guided-analysis state machine. One engine
// instance serves all sessions; per-session state lives exclusively in the
// session store and is re-read on every call, so any worker process can
// serve any message.
package workflow

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"chatmrpt-be/pkg/analysis"
	"chatmrpt-be/pkg/dataset"
	"chatmrpt-be/pkg/events"
	"chatmrpt-be/pkg/sessionstore"
	"chatmrpt-be/pkg/store"
	"chatmrpt-be/pkg/workflow/handoff"
	"chatmrpt-be/pkg/workflow/intent"
	"chatmrpt-be/pkg/workflow/slot"
)

// Response is what the HTTP layer renders back to the user. A nil *Response
// from Handle means the message was not a workflow concern and the caller
// should treat it as a general query.
type Response struct {
	Message    string            `json:"message"`
	Stage      string            `json:"stage"`
	Selections map[string]string `json:"selections"`
	Success    bool              `json:"success"`
}

// Engine drives sessions through the registered workflows with a fixed
// interpretation precedence: navigation commands, then slot resolution, then
// intent classification. Deterministic handling is always tried before the
// reasoning agent.
type Engine struct {
	store      sessionstore.Store
	resolver   *slot.Resolver
	classifier *intent.Classifier
	handoff    *handoff.Handoff
	datasets   *dataset.Provider
	workflows  []*Definition
	publisher  events.Publisher // optional
	logger     *log.Logger
}

func NewEngine(
	st sessionstore.Store,
	h *handoff.Handoff,
	datasets *dataset.Provider,
	workflows []*Definition,
	logger *log.Logger,
) *Engine {
	return &Engine{
		store:      st,
		resolver:   slot.NewResolver(),
		classifier: intent.NewClassifier(),
		handoff:    h,
		datasets:   datasets,
		workflows:  workflows,
		logger:     logger,
	}
}

// WithPublisher wires an event bus for workflow lifecycle events.
func (e *Engine) WithPublisher(p events.Publisher) *Engine {
	e.publisher = p
	return e
}

// Handle processes one inbound message for a session. It runs to completion
// synchronously; on a store conflict (a concurrent writer won) the whole
// logic is retried once against freshly reloaded state.
func (e *Engine) Handle(ctx context.Context, sessionID, text string) (*Response, error) {
	resp, err := e.handleOnce(ctx, sessionID, text)
	if err == sessionstore.ErrConflict {
		e.logger.Printf("[ENGINE] Store conflict for session %s, retrying once", sessionID)
		resp, err = e.handleOnce(ctx, sessionID, text)
	}
	if err == sessionstore.ErrConflict {
		st, _ := e.store.Get(ctx, sessionID)
		if st == nil {
			st = store.NewWorkflowState(sessionID)
		}
		return e.respond(st, "Your session was updated by another request at the same time. Please send that message again.", false), nil
	}
	return resp, err
}

func (e *Engine) handleOnce(ctx context.Context, sessionID, text string) (*Response, error) {
	st, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = store.NewWorkflowState(sessionID)
	}

	switch {
	case st.Stage.IsResting():
		return e.handleResting(ctx, st, text)
	case st.Stage == store.StagePaused:
		return e.handlePaused(ctx, st, text)
	case st.Stage.IsAwaiting():
		return e.handleAwaiting(ctx, st, text)
	default:
		// EXECUTING never persists across messages; seeing it here means a
		// crashed run. Treat like resting so the user is not stuck.
		e.logger.Printf("[ENGINE] Session %s stuck in %s, resetting", sessionID, st.Stage)
		st.Reset()
		if err := e.store.Put(ctx, st); err != nil {
			return nil, err
		}
		return e.handleResting(ctx, st, text)
	}
}

// handleResting covers IDLE and COMPLETE: a trigger starts a workflow,
// resume is answered explicitly, anything else is not our concern.
func (e *Engine) handleResting(ctx context.Context, st *store.WorkflowState, text string) (*Response, error) {
	switch intent.ParseNavigation(text) {
	case intent.NavResume:
		if st.Resume() {
			return e.persistAndPrompt(ctx, st, "Resuming where you left off. ")
		}
		return e.respond(st, "There is no paused workflow to resume. Say \"calculate tpr\", \"risk analysis\" or \"itn planning\" to start one.", true), nil
	case intent.NavExit:
		if st.Stage == store.StageComplete || len(st.Selections) > 0 {
			st.Reset()
			if err := e.store.Put(ctx, st); err != nil {
				return nil, err
			}
			return e.respond(st, "Workflow state cleared. Say \"calculate tpr\" whenever you want to start again.", true), nil
		}
	}

	def := e.matchTrigger(text)
	if def == nil {
		return nil, nil // not a workflow concern
	}

	st.Reset()
	st.Workflow = def.Name
	st.Active = true
	st.Stage = store.Awaiting(def.Slots[0].Name)
	e.publish(ctx, events.WorkflowStarted(st.SessionID, def.Name))
	return e.persistAndPrompt(ctx, st, fmt.Sprintf("Starting the %s workflow. ", strings.ToUpper(def.Name)))
}

func (e *Engine) handlePaused(ctx context.Context, st *store.WorkflowState, text string) (*Response, error) {
	switch intent.ParseNavigation(text) {
	case intent.NavResume:
		if st.Resume() {
			return e.persistAndPrompt(ctx, st, "Resuming where you left off. ")
		}
		return e.respond(st, "There is no paused workflow to resume.", true), nil
	case intent.NavExit:
		st.Reset()
		if err := e.store.Put(ctx, st); err != nil {
			return nil, err
		}
		return e.respond(st, "Workflow exited and selections cleared. Say \"calculate tpr\" whenever you want to start again.", true), nil
	case intent.NavPause:
		return e.respond(st, "The workflow is already paused. Say \"resume\" to continue or \"exit\" to discard it.", true), nil
	default:
		return nil, nil // paused; free exploration is not our concern
	}
}

func (e *Engine) handleAwaiting(ctx context.Context, st *store.WorkflowState, text string) (*Response, error) {
	def := e.definition(st.Workflow)
	if def == nil {
		// Stored workflow name no longer registered; recover rather than trap
		// the session.
		e.logger.Printf("[ENGINE] Session %s references unknown workflow %q, resetting", st.SessionID, st.Workflow)
		st.Reset()
		if err := e.store.Put(ctx, st); err != nil {
			return nil, err
		}
		return e.respond(st, "Your previous workflow is no longer available, so I reset it. Say \"calculate tpr\" to start again.", false), nil
	}
	idx := e.currentSlot(def, st.Stage)
	spec := &def.Slots[idx]

	// Navigation always outranks slot resolution; a "pause" must never be
	// swallowed as a slot answer.
	switch intent.ParseNavigation(text) {
	case intent.NavPause:
		st.Pause()
		if err := e.store.Put(ctx, st); err != nil {
			return nil, err
		}
		msg := fmt.Sprintf("Workflow paused. I saved your progress (stage %s, selections: %s). Say \"resume\" to pick up exactly where you left off.",
			st.PausedSnapshot.Stage, renderSelections(st.PausedSnapshot.Selections))
		return e.respond(st, msg, true), nil
	case intent.NavResume:
		return e.respond(st, fmt.Sprintf("The workflow is already running. I still need the %s. Valid options: %s.",
			humanSlot(spec.Name), spec.OptionsLine()), true), nil
	case intent.NavExit:
		st.Reset()
		if err := e.store.Put(ctx, st); err != nil {
			return nil, err
		}
		return e.respond(st, "Workflow exited and selections cleared. Say \"calculate tpr\" whenever you want to start again.", true), nil
	}

	// Slot resolution outranks intent classification; a legitimate slot
	// answer must never be misrouted into general-query handling.
	if res := e.resolver.Resolve(text, spec); res.Resolved {
		st.Selections[spec.Name] = res.Value
		st.PendingLargeRequest = ""
		if idx+1 < len(def.Slots) {
			st.Stage = store.Awaiting(def.Slots[idx+1].Name)
			return e.persistAndPrompt(ctx, st, fmt.Sprintf("Got it, %s = %s. ", humanSlot(spec.Name), res.Value))
		}
		return e.execute(ctx, st, def, spec)
	}

	switch e.classifier.Classify(text, st.Stage) {
	case intent.InformationRequest:
		// Slot-specific help; the stage does not move.
		return e.respond(st, spec.HelpText(), true), nil

	case intent.GeneralAnalysisRequest:
		outcome := e.handoff.Do(ctx, st.SessionID, text, st.Stage, spec)
		if outcome.Deferred {
			st.PendingLargeRequest = text
			if err := e.store.Put(ctx, st); err != nil {
				return nil, err
			}
		}
		// Stage is untouched either way.
		return e.respond(st, outcome.Message, true), nil

	default: // Ambiguous
		msg := fmt.Sprintf("I didn't recognize %q as a %s. Please pick one of the valid options: %s.",
			strings.TrimSpace(text), humanSlot(spec.Name), spec.OptionsLine())
		return e.respond(st, msg, true), nil
	}
}

// execute is the single-tick EXECUTING stage: the bound tool runs
// synchronously and the stage lands on COMPLETE (or rolls back to the last
// slot on failure) within this same call.
func (e *Engine) execute(ctx context.Context, st *store.WorkflowState, def *Definition, lastSpec *slot.Spec) (*Response, error) {
	st.Stage = store.StageExecuting

	handle, err := e.datasets.Resolve(st.SessionID, def.DataPhase)
	if err != nil {
		e.logger.Printf("[ENGINE] Dataset resolve failed for session %s: %v", st.SessionID, err)
	}

	result, toolErr := e.runTool(ctx, def, st.Selections, handle)
	if toolErr != nil {
		// Never swallow the failure into COMPLETE: roll back to the last slot
		// so the user can retry, and name the failure.
		st.Stage = store.Awaiting(lastSpec.Name)
		delete(st.Selections, lastSpec.Name)
		if err := e.store.Put(ctx, st); err != nil {
			return nil, err
		}
		e.publish(ctx, events.AnalysisFailed(st.SessionID, def.Name, toolErr.Error()))
		return e.respond(st, e.renderToolFailure(def, lastSpec, toolErr), false), nil
	}

	st.Stage = store.StageComplete
	st.Active = false
	if err := e.store.Put(ctx, st); err != nil {
		return nil, err
	}
	artifacts := make([]string, 0, len(result.Artifacts))
	for _, a := range result.Artifacts {
		artifacts = append(artifacts, a.Path)
	}
	e.publish(ctx, events.AnalysisCompleted(st.SessionID, def.Name, result.Summary, st.Selections, artifacts))

	msg := result.Summary + "\n\n" + e.whatsNext(def)
	return e.respond(st, msg, true), nil
}

func (e *Engine) runTool(ctx context.Context, def *Definition, selections map[string]string, handle *dataset.Handle) (*analysis.Result, error) {
	result, err := def.Tool.Run(ctx, selections, handle)
	if err != nil {
		return nil, err
	}
	if result == nil || strings.TrimSpace(result.Summary) == "" {
		// A content-free success is treated as a failure so it can never be
		// presented to the user as a completed analysis.
		return nil, &analysis.ToolError{Tool: def.Tool.Name(), Reason: "tool returned no result content"}
	}
	return result, nil
}

func (e *Engine) renderToolFailure(def *Definition, lastSpec *slot.Spec, toolErr error) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("The %s analysis failed: ", strings.ToUpper(def.Name)))
	if sm, ok := analysis.AsSchemaMismatch(toolErr); ok {
		b.WriteString(fmt.Sprintf("column %q was not found in your dataset.", sm.Column))
		if sm.Suggestion != "" {
			b.WriteString(fmt.Sprintf(" Did you mean %q?", sm.Suggestion))
		}
	} else {
		b.WriteString(toolErr.Error() + ".")
	}
	b.WriteString(fmt.Sprintf(" I've moved back to the %s step so you can adjust and retry. Valid options: %s.",
		humanSlot(lastSpec.Name), lastSpec.OptionsLine()))
	return b.String()
}

// whatsNext suggests the following analysis after a completed one.
func (e *Engine) whatsNext(done *Definition) string {
	switch done.Name {
	case "tpr":
		return "Next you can say \"risk analysis\" to score areas, or ask me anything about the results."
	case "risk":
		return "Next you can say \"itn planning\" to plan bed-net distribution, or ask me anything about the results."
	default:
		return "You can ask me anything about the results, or start another analysis."
	}
}

// persistAndPrompt commits the state and prompts for the now-current slot,
// enriching the prompt with live dataset counts when the schema is at hand.
func (e *Engine) persistAndPrompt(ctx context.Context, st *store.WorkflowState, prefix string) (*Response, error) {
	if err := e.store.Put(ctx, st); err != nil {
		return nil, err
	}
	def := e.definition(st.Workflow)
	idx := e.currentSlot(def, st.Stage)
	spec := &def.Slots[idx]

	msg := prefix + spec.Prompt + " Options: " + spec.OptionsLine() + "."
	if note := e.datasetNote(st.SessionID, def); note != "" {
		msg += " " + note
	}
	return e.respond(st, msg, true), nil
}

func (e *Engine) datasetNote(sessionID string, def *Definition) string {
	handle, err := e.datasets.Resolve(sessionID, def.DataPhase)
	if err != nil || handle == nil {
		return ""
	}
	schema, err := e.datasets.Schema(handle)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("(Your dataset has %d records and %d columns.)", schema.Rows, len(schema.Columns))
}

func (e *Engine) matchTrigger(text string) *Definition {
	for _, def := range e.workflows {
		if def.Matches(text) {
			return def
		}
	}
	return nil
}

func (e *Engine) definition(name string) *Definition {
	for _, def := range e.workflows {
		if def.Name == name {
			return def
		}
	}
	return nil
}

// currentSlot maps an awaiting stage back to its slot index. Defaults to the
// first slot if the stage is somehow unknown, which keeps the session usable.
func (e *Engine) currentSlot(def *Definition, stage store.Stage) int {
	for i := range def.Slots {
		if store.Awaiting(def.Slots[i].Name) == stage {
			return i
		}
	}
	e.logger.Printf("[ENGINE] Unknown awaiting stage %s for workflow %s", stage, def.Name)
	return 0
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Printf("[ENGINE] Event publish failed: %v", err)
	}
}

func (e *Engine) respond(st *store.WorkflowState, message string, success bool) *Response {
	selections := make(map[string]string, len(st.Selections))
	for k, v := range st.Selections {
		selections[k] = v
	}
	return &Response{
		Message:    message,
		Stage:      st.Stage.String(),
		Selections: selections,
		Success:    success,
	}
}

func renderSelections(selections map[string]string) string {
	if len(selections) == 0 {
		return "none yet"
	}
	keys := make([]string, 0, len(selections))
	for k := range selections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, selections[k]))
	}
	return strings.Join(parts, ", ")
}

func humanSlot(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
