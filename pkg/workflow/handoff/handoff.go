// Package handoff bridges workflow deviations to the reasoning agent. It
// packages the session context, bounds the agent call with a timeout, and
// makes sure every reply still steers the user back to the pending slot.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"chatmrpt-be/pkg/agent"
	"chatmrpt-be/pkg/dataset"
	"chatmrpt-be/pkg/store"
	"chatmrpt-be/pkg/workflow/slot"
)

// DefaultTimeout bounds one reasoning call. The workflow stage must never
// straddle an in-flight agent call across inbound messages, so the call is
// fully awaited here and cut off at this deadline.
const DefaultTimeout = 45 * time.Second

// Datasets with more numeric columns than this trip the large-request guard
// for bulk phrasings like "plot all variables".
const largeColumnThreshold = 10

// How many columns a narrowed-scope suggestion lists.
const sampleColumns = 8

var bulkPhrases = []string{
	"all variables", "all columns", "everything", "every variable",
	"every column", "all of the data", "whole dataset",
}

// Handoff forwards deviations to the reasoning agent.
type Handoff struct {
	agent    agent.ReasoningAgent
	datasets *dataset.Provider
	timeout  time.Duration
	logger   *log.Logger
}

func New(reasoner agent.ReasoningAgent, datasets *dataset.Provider, logger *log.Logger) *Handoff {
	return &Handoff{
		agent:    reasoner,
		datasets: datasets,
		timeout:  DefaultTimeout,
		logger:   logger,
	}
}

// WithTimeout overrides the agent deadline (tests use short ones).
func (h *Handoff) WithTimeout(d time.Duration) *Handoff {
	h.timeout = d
	return h
}

// Outcome is the user-facing result of a handoff. Deferred marks a request
// that was short-circuited by the large-request guard; the caller records it
// on the session as a pending large request.
type Outcome struct {
	Message  string
	Deferred bool
}

// Do answers a deviation while leaving workflow state untouched. The pending
// spec may be nil when no workflow is active.
func (h *Handoff) Do(ctx context.Context, sessionID, text string, stage store.Stage, pending *slot.Spec) Outcome {
	bundle := h.buildBundle(sessionID, stage, pending)

	if msg, deferred := h.guardLargeRequest(text, bundle); deferred {
		h.logger.Printf("[HANDOFF] Large request deferred for session %s", sessionID)
		return Outcome{Message: msg, Deferred: true}
	}

	callCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	answer, err := h.agent.Answer(callCtx, text, bundle)
	if err != nil {
		return Outcome{Message: h.degrade(err, pending)}
	}
	return Outcome{Message: h.appendReminder(answer, pending)}
}

func (h *Handoff) buildBundle(sessionID string, stage store.Stage, pending *slot.Spec) agent.ContextBundle {
	bundle := agent.ContextBundle{Stage: stage.String()}
	if pending != nil {
		bundle.PendingSlot = pending.Name
		bundle.ValidOptions = pending.CanonicalValues()
	}

	handle, err := h.datasets.Current(sessionID)
	if err != nil || handle == nil {
		if err != nil {
			h.logger.Printf("[HANDOFF] Dataset lookup failed for session %s: %v", sessionID, err)
		}
		return bundle
	}
	schema, err := h.datasets.Schema(handle)
	if err != nil {
		h.logger.Printf("[HANDOFF] Schema read failed for %s: %v", handle.Path, err)
		return bundle
	}
	bundle.DatasetColumns = schema.Columns
	bundle.NumericColumns = schema.NumericColumns
	bundle.DatasetRows = schema.Rows
	return bundle
}

// guardLargeRequest short-circuits bulk requests against wide datasets
// before any agent time is spent on them.
func (h *Handoff) guardLargeRequest(text string, bundle agent.ContextBundle) (string, bool) {
	if len(bundle.NumericColumns) <= largeColumnThreshold {
		return "", false
	}
	lower := strings.ToLower(text)
	bulk := false
	for _, phrase := range bulkPhrases {
		if strings.Contains(lower, phrase) {
			bulk = true
			break
		}
	}
	if !bulk {
		return "", false
	}

	sample := bundle.NumericColumns
	if len(sample) > sampleColumns {
		sample = sample[:sampleColumns]
	}
	return fmt.Sprintf(
		"That request covers %d numeric columns, which is too many to process at once. "+
			"Please narrow it to a specific subset, for example: %s.",
		len(bundle.NumericColumns), strings.Join(sample, ", ")), true
}

// appendReminder nudges the user back to the pending slot. The agent's
// answer is never replaced, only extended.
func (h *Handoff) appendReminder(answer string, pending *slot.Spec) string {
	if pending == nil {
		return answer
	}
	return fmt.Sprintf("%s\n\nWhen you're ready to continue, I still need the %s. Valid options: %s.",
		answer, strings.ReplaceAll(pending.Name, "_", " "), pending.OptionsLine())
}

// degrade turns an agent failure into a graceful message that still states
// the pending options, never a bare error.
func (h *Handoff) degrade(err error, pending *slot.Spec) string {
	var reason string
	if errors.Is(err, agent.ErrTimeout) {
		reason = "That question took too long to answer, so I had to stop it."
	} else {
		reason = "I couldn't answer that question right now."
	}
	if pending == nil {
		return reason + " Feel free to try again or rephrase."
	}
	return fmt.Sprintf("%s You can try rephrasing it, or continue the workflow. I still need the %s (options: %s).",
		reason, strings.ReplaceAll(pending.Name, "_", " "), pending.OptionsLine())
}
