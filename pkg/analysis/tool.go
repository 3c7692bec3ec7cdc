// Package analysis holds the domain executors bound to workflow completion:
// test-positivity (TPR), composite risk scoring and ITN planning. Each tool
// consumes the session's dataset for the phase it needs and writes its
// artifact for the next phase.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"chatmrpt-be/pkg/dataset"
)

// ArtifactRef points at a file a tool produced.
type ArtifactRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Result is a successful tool execution. Summary must always carry at least
// one data-derived value; an empty summary is treated as a tool failure
// upstream so a content-free "success" can never reach the user.
type Result struct {
	Summary   string        `json:"summary"`
	Artifacts []ArtifactRef `json:"artifacts,omitempty"`
}

// Tool is a domain executor invoked by the workflow engine when all slots of
// its workflow are filled.
type Tool interface {
	Name() string
	Run(ctx context.Context, selections map[string]string, handle *dataset.Handle) (*Result, error)
}

// ToolError is a named execution failure. The engine reverts the workflow to
// the slot it was on and surfaces Reason verbatim.
type ToolError struct {
	Tool   string
	Reason string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Tool, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Tool, e.Reason)
}

func (e *ToolError) Unwrap() error { return e.Err }

// SchemaMismatchError reports a referenced column that does not exist in the
// dataset, with the closest actual column as a suggestion. It is always
// rendered as an actionable message, never as a raw database error.
type SchemaMismatchError struct {
	Column     string
	Suggestion string
}

func (e *SchemaMismatchError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("column %q not found in the dataset (closest match: %q)", e.Column, e.Suggestion)
	}
	return fmt.Sprintf("column %q not found in the dataset", e.Column)
}

// AsSchemaMismatch unwraps a SchemaMismatchError from an error chain.
func AsSchemaMismatch(err error) (*SchemaMismatchError, bool) {
	var sm *SchemaMismatchError
	if errors.As(err, &sm) {
		return sm, true
	}
	return nil, false
}

// requireColumn resolves a column by exact name or fails with a fuzzy
// suggestion built from the schema.
func requireColumn(schema *dataset.Schema, name string) (int, error) {
	for i, c := range schema.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, &SchemaMismatchError{Column: name, Suggestion: schema.ClosestColumn(name)}
}
