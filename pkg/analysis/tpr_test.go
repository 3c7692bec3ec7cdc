package analysis

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chatmrpt-be/pkg/dataset"
)

func newProvider(t *testing.T) *dataset.Provider {
	t.Helper()
	return dataset.NewProvider(t.TempDir(), dataset.NewSchemaCache())
}

func writeDataset(t *testing.T, provider *dataset.Provider, sessionID string, phase dataset.Phase, rows [][]string) *dataset.Handle {
	t.Helper()
	path, err := provider.PathFor(sessionID, phase)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			t.Fatal(err)
		}
	}
	handle, err := provider.Resolve(sessionID, phase)
	if err != nil || handle == nil {
		t.Fatalf("resolve written dataset: handle=%v err=%v", handle, err)
	}
	return handle
}

func rawRows() [][]string {
	return [][]string{
		{"state_name", "facility_level", "age_group", "tested", "positive"},
		{"Kano", "primary", "pw", "100", "40"},
		{"Kano", "primary", "u5", "150", "60"},
		{"Lagos", "secondary", "pw", "200", "30"},
		{"Kaduna", "primary", "pw", "100", "20"},
	}
}

func TestTPRToolFiltersAndSummarizes(t *testing.T) {
	provider := newProvider(t)
	handle := writeDataset(t, provider, "s1", dataset.PhaseRaw, rawRows())
	tool := NewTPRTool(provider)

	result, err := tool.Run(context.Background(), map[string]string{
		"facility_level": "primary",
		"age_group":      "pw",
	}, handle)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// primary+pw rows: 40/100 and 20/100, overall 30.0%.
	if !strings.Contains(result.Summary, "30.0%") {
		t.Errorf("summary = %q, want overall positivity 30.0%%", result.Summary)
	}
	if !strings.Contains(result.Summary, "2 facility records") {
		t.Errorf("summary = %q, want 2 matched records", result.Summary)
	}

	out, err := provider.Resolve("s1", dataset.PhasePostTPR)
	if err != nil || out == nil {
		t.Fatalf("tpr_results.csv not written: %v", err)
	}
	header, rows, err := dataset.ReadAll(out.Path)
	if err != nil {
		t.Fatal(err)
	}
	if header[len(header)-1] != "tpr" {
		t.Errorf("result header = %v, want trailing tpr column", header)
	}
	if len(rows) != 2 {
		t.Errorf("result rows = %d, want only the 2 matched rows", len(rows))
	}
}

func TestTPRToolAllSelectionsSkipFiltering(t *testing.T) {
	provider := newProvider(t)
	handle := writeDataset(t, provider, "s1", dataset.PhaseRaw, rawRows())
	tool := NewTPRTool(provider)

	result, err := tool.Run(context.Background(), map[string]string{
		"facility_level": "all",
		"age_group":      "all",
	}, handle)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 150 positive of 550 tested.
	if !strings.Contains(result.Summary, "4 facility records") {
		t.Errorf("summary = %q, want all 4 records", result.Summary)
	}
}

func TestTPRToolMissingColumnSuggestsClosest(t *testing.T) {
	provider := newProvider(t)
	handle := writeDataset(t, provider, "s1", dataset.PhaseRaw, [][]string{
		{"state_name", "facility_level", "age_group", "testd", "positive"},
		{"Kano", "primary", "pw", "100", "40"},
	})
	tool := NewTPRTool(provider)

	_, err := tool.Run(context.Background(), map[string]string{}, handle)
	if err == nil {
		t.Fatal("Run with missing column must fail")
	}
	sm, ok := AsSchemaMismatch(err)
	if !ok {
		t.Fatalf("error %v is not a schema mismatch", err)
	}
	if sm.Column != "tested" || sm.Suggestion != "testd" {
		t.Errorf("mismatch = %+v, want tested -> testd suggestion", sm)
	}
}

func TestTPRToolNoMatchingRows(t *testing.T) {
	provider := newProvider(t)
	handle := writeDataset(t, provider, "s1", dataset.PhaseRaw, rawRows())
	tool := NewTPRTool(provider)

	_, err := tool.Run(context.Background(), map[string]string{
		"facility_level": "tertiary",
	}, handle)
	if err == nil {
		t.Fatal("Run with no matching rows must fail")
	}
	var te *ToolError
	if !errors.As(err, &te) {
		t.Fatalf("error %v is not a ToolError", err)
	}
	if !strings.Contains(te.Reason, "no rows matched") {
		t.Errorf("reason = %q, want no-rows explanation", te.Reason)
	}
}

func TestTPRToolNilHandle(t *testing.T) {
	tool := NewTPRTool(newProvider(t))
	_, err := tool.Run(context.Background(), map[string]string{}, nil)
	if err == nil {
		t.Fatal("Run without a dataset must fail")
	}
	if !strings.Contains(err.Error(), "no dataset uploaded") {
		t.Errorf("error = %v, want missing-dataset message", err)
	}
}
