package analysis

import (
	"context"
	"strings"
	"testing"

	"chatmrpt-be/pkg/dataset"
)

func postTPRRows() [][]string {
	return [][]string{
		{"state_name", "tpr", "rainfall", "population_density"},
		{"Kano", "10", "100", "50"},
		{"Lagos", "30", "300", "150"},
		{"Kaduna", "20", "200", "100"},
	}
}

func TestRiskToolCoreIndicators(t *testing.T) {
	provider := newProvider(t)
	handle := writeDataset(t, provider, "s1", dataset.PhasePostTPR, postTPRRows())
	tool := NewRiskTool(provider)

	result, err := tool.Run(context.Background(), map[string]string{
		"risk_variables": "core",
		"scoring_method": "composite",
	}, handle)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Every indicator min-max normalizes to 0, 1 and 0.5 across the three
	// rows, so the mean score is 0.5 and the highest is 1.0.
	if !strings.Contains(result.Summary, "3 of 3 records scored") {
		t.Errorf("summary = %q, want all rows scored", result.Summary)
	}
	if !strings.Contains(result.Summary, "mean risk score 0.500, highest 1.000") {
		t.Errorf("summary = %q, want mean 0.500 and highest 1.000", result.Summary)
	}
	if !strings.Contains(result.Summary, "tpr, rainfall, population_density") {
		t.Errorf("summary = %q, want core indicator list", result.Summary)
	}

	out, err := provider.Resolve("s1", dataset.PhasePostRisk)
	if err != nil || out == nil {
		t.Fatalf("risk_unified.csv not written: %v", err)
	}
	header, rows, err := dataset.ReadAll(out.Path)
	if err != nil {
		t.Fatal(err)
	}
	if header[len(header)-1] != "risk_score" {
		t.Errorf("result header = %v, want trailing risk_score column", header)
	}
	if len(rows) != 3 {
		t.Fatalf("result rows = %d, want 3", len(rows))
	}
	if got := rows[1][len(rows[1])-1]; got != "1.0000" {
		t.Errorf("highest-risk row score = %q, want 1.0000", got)
	}
}

func TestRiskToolAllUsesEveryNumericColumn(t *testing.T) {
	provider := newProvider(t)
	handle := writeDataset(t, provider, "s1", dataset.PhasePostTPR, [][]string{
		{"state_name", "tpr", "elevation"},
		{"Kano", "10", "480"},
		{"Lagos", "30", "40"},
	})
	tool := NewRiskTool(provider)

	result, err := tool.Run(context.Background(), map[string]string{"risk_variables": "all"}, handle)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(result.Summary, "[tpr, elevation]") {
		t.Errorf("summary = %q, want both numeric columns as indicators", result.Summary)
	}
	if strings.Contains(result.Summary, "state_name") {
		t.Errorf("summary = %q, text column must not be scored", result.Summary)
	}
}

func TestRiskToolConstantIndicatorScoresMidpoint(t *testing.T) {
	provider := newProvider(t)
	handle := writeDataset(t, provider, "s1", dataset.PhasePostTPR, [][]string{
		{"tpr", "rainfall", "population_density"},
		{"25", "100", "80"},
		{"25", "100", "80"},
	})
	tool := NewRiskTool(provider)

	result, err := tool.Run(context.Background(), map[string]string{"risk_variables": "core"}, handle)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(result.Summary, "mean risk score 0.500, highest 0.500") {
		t.Errorf("summary = %q, want every constant column contributing 0.5", result.Summary)
	}
}

func TestRiskToolMissingCoreIndicator(t *testing.T) {
	provider := newProvider(t)
	handle := writeDataset(t, provider, "s1", dataset.PhasePostTPR, [][]string{
		{"tpr", "rain_fall", "population_density"},
		{"25", "100", "80"},
	})
	tool := NewRiskTool(provider)

	_, err := tool.Run(context.Background(), map[string]string{"risk_variables": "core"}, handle)
	if err == nil {
		t.Fatal("Run with a missing core indicator must fail")
	}
	sm, ok := AsSchemaMismatch(err)
	if !ok {
		t.Fatalf("error %v is not a schema mismatch", err)
	}
	if sm.Column != "rainfall" || sm.Suggestion != "rain_fall" {
		t.Errorf("mismatch = %+v, want rainfall -> rain_fall suggestion", sm)
	}
}

func TestRiskToolNonNumericCellsAreSkipped(t *testing.T) {
	provider := newProvider(t)
	handle := writeDataset(t, provider, "s1", dataset.PhasePostTPR, [][]string{
		{"state_name", "tpr", "rainfall", "population_density"},
		{"Kano", "10", "100", "50"},
		{"Lagos", "n/a", "n/a", "n/a"},
		{"Kaduna", "30", "300", "150"},
	})
	tool := NewRiskTool(provider)

	result, err := tool.Run(context.Background(), map[string]string{"risk_variables": "core"}, handle)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(result.Summary, "2 of 3 records scored") {
		t.Errorf("summary = %q, row without numeric cells must stay unscored", result.Summary)
	}

	out, _ := provider.Resolve("s1", dataset.PhasePostRisk)
	_, rows, err := dataset.ReadAll(out.Path)
	if err != nil {
		t.Fatal(err)
	}
	if got := rows[1][len(rows[1])-1]; got != "" {
		t.Errorf("unscoreable row risk_score = %q, want empty", got)
	}
}

func TestRiskToolWithoutHandle(t *testing.T) {
	tool := NewRiskTool(newProvider(t))
	_, err := tool.Run(context.Background(), map[string]string{}, nil)
	if err == nil {
		t.Fatal("Run without a dataset must fail")
	}
	if !strings.Contains(err.Error(), "TPR analysis first") {
		t.Errorf("error = %v, want pointer at the TPR prerequisite", err)
	}
}
