package analysis

import (
	"context"
	"strings"
	"testing"

	"chatmrpt-be/pkg/dataset"
)

func postRiskRows() [][]string {
	return [][]string{
		{"state_name", "population", "risk_score"},
		{"Kano", "1000", "0.9"},
		{"Lagos", "2000", "0.5"},
		{"Kaduna", "1000", "0.1"},
	}
}

func TestITNToolTargetedCoverage(t *testing.T) {
	provider := newProvider(t)
	handle := writeDataset(t, provider, "s1", dataset.PhasePostRisk, postRiskRows())
	tool := NewITNTool(provider)

	result, err := tool.Run(context.Background(), map[string]string{"coverage_target": "targeted"}, handle)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Budget is half of 4000 people. Ranking by risk covers Kano then Lagos
	// (3000 people) before the budget is met: ceil(3000/1.8) nets.
	if !strings.Contains(result.Summary, "targeted coverage") {
		t.Errorf("summary = %q, want targeted coverage label", result.Summary)
	}
	if !strings.Contains(result.Summary, "1667 nets for 3000 people") {
		t.Errorf("summary = %q, want 1667 nets for 3000 people", result.Summary)
	}
	if !strings.Contains(result.Summary, "2 highest-risk of 3 areas") {
		t.Errorf("summary = %q, want 2 of 3 areas covered", result.Summary)
	}
}

func TestITNToolUniversalCoversEveryone(t *testing.T) {
	provider := newProvider(t)
	handle := writeDataset(t, provider, "s1", dataset.PhasePostRisk, postRiskRows())
	tool := NewITNTool(provider)

	result, err := tool.Run(context.Background(), map[string]string{"coverage_target": "universal"}, handle)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(result.Summary, "2223 nets for 4000 people") {
		t.Errorf("summary = %q, want full population netted", result.Summary)
	}
	if !strings.Contains(result.Summary, "3 highest-risk of 3 areas") {
		t.Errorf("summary = %q, want all areas covered", result.Summary)
	}
}

func TestITNToolUnknownTargetFallsBackToStandard(t *testing.T) {
	provider := newProvider(t)
	handle := writeDataset(t, provider, "s1", dataset.PhasePostRisk, postRiskRows())
	tool := NewITNTool(provider)

	result, err := tool.Run(context.Background(), map[string]string{"coverage_target": "everything"}, handle)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(result.Summary, "standard coverage") {
		t.Errorf("summary = %q, want fallback to standard coverage", result.Summary)
	}
}

func TestITNToolMissingRiskScoreColumn(t *testing.T) {
	provider := newProvider(t)
	handle := writeDataset(t, provider, "s1", dataset.PhasePostRisk, [][]string{
		{"state_name", "population", "riskscore"},
		{"Kano", "1000", "0.9"},
	})
	tool := NewITNTool(provider)

	_, err := tool.Run(context.Background(), map[string]string{}, handle)
	if err == nil {
		t.Fatal("Run without a risk_score column must fail")
	}
	sm, ok := AsSchemaMismatch(err)
	if !ok {
		t.Fatalf("error %v is not a schema mismatch", err)
	}
	if sm.Column != "risk_score" || sm.Suggestion != "riskscore" {
		t.Errorf("mismatch = %+v, want risk_score -> riskscore suggestion", sm)
	}
}

func TestITNToolNoUsableRecords(t *testing.T) {
	provider := newProvider(t)
	handle := writeDataset(t, provider, "s1", dataset.PhasePostRisk, [][]string{
		{"state_name", "population", "risk_score"},
		{"Kano", "unknown", "0.9"},
		{"Lagos", "2000", ""},
	})
	tool := NewITNTool(provider)

	_, err := tool.Run(context.Background(), map[string]string{}, handle)
	if err == nil {
		t.Fatal("Run with no parseable rows must fail")
	}
	if !strings.Contains(err.Error(), "no records carry both population and risk score") {
		t.Errorf("error = %v, want no-usable-records message", err)
	}
}

func TestITNToolWithoutHandle(t *testing.T) {
	tool := NewITNTool(newProvider(t))
	_, err := tool.Run(context.Background(), map[string]string{}, nil)
	if err == nil {
		t.Fatal("Run without a dataset must fail")
	}
	if !strings.Contains(err.Error(), "risk analysis first") {
		t.Errorf("error = %v, want pointer at the risk prerequisite", err)
	}
}
