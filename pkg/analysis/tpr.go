package analysis

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"chatmrpt-be/pkg/dataset"
)

// Column names the TPR tool expects in the raw upload.
const (
	colTested        = "tested"
	colPositive      = "positive"
	colFacilityLevel = "facility_level"
	colAgeGroup      = "age_group"
	colStateName     = "state_name"
)

// TPRTool computes the test positivity rate for the selected state, facility
// level and age group, and writes the per-facility results artifact that the
// risk phase consumes.
type TPRTool struct {
	provider *dataset.Provider
}

var _ Tool = &TPRTool{}

func NewTPRTool(provider *dataset.Provider) *TPRTool {
	return &TPRTool{provider: provider}
}

func (t *TPRTool) Name() string { return "tpr" }

func (t *TPRTool) Run(ctx context.Context, selections map[string]string, handle *dataset.Handle) (*Result, error) {
	if handle == nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "no dataset uploaded for this session"}
	}

	header, rows, err := dataset.ReadAll(handle.Path)
	if err != nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "dataset could not be read", Err: err}
	}
	schema, err := t.provider.Schema(handle)
	if err != nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "dataset schema could not be read", Err: err}
	}

	testedIdx, err := requireColumn(schema, colTested)
	if err != nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "required column missing", Err: err}
	}
	positiveIdx, err := requireColumn(schema, colPositive)
	if err != nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "required column missing", Err: err}
	}

	filters := map[string]string{
		colStateName:     selections["state_name"],
		colFacilityLevel: selections["facility_level"],
		colAgeGroup:      selections["age_group"],
	}
	filterIdx := map[int]string{}
	for col, want := range filters {
		if want == "" || want == "all" {
			continue
		}
		idx, err := requireColumn(schema, col)
		if err != nil {
			return nil, &ToolError{Tool: t.Name(), Reason: "filter column missing", Err: err}
		}
		filterIdx[idx] = strings.ToLower(want)
	}

	var tested, positive float64
	matched := 0
	outRows := [][]string{}
	for _, row := range rows {
		if !rowMatches(row, filterIdx) {
			continue
		}
		tv, err1 := cell(row, testedIdx)
		pv, err2 := cell(row, positiveIdx)
		if err1 != nil || err2 != nil {
			continue
		}
		tested += tv
		positive += pv
		matched++
		tpr := 0.0
		if tv > 0 {
			tpr = pv / tv * 100
		}
		outRows = append(outRows, append(append([]string{}, row...), strconv.FormatFloat(tpr, 'f', 2, 64)))
	}

	if matched == 0 {
		return nil, &ToolError{Tool: t.Name(), Reason: fmt.Sprintf(
			"no rows matched the selection %v; check the selected values against the dataset", selections)}
	}
	if tested == 0 {
		return nil, &ToolError{Tool: t.Name(), Reason: "matched rows report zero tests, positivity is undefined"}
	}

	outPath, err := t.provider.PathFor(handle.SessionID, dataset.PhasePostTPR)
	if err != nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "could not prepare results file", Err: err}
	}
	if err := writeCSV(outPath, append(header, "tpr"), outRows); err != nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "could not write results file", Err: err}
	}

	overall := positive / tested * 100
	summary := fmt.Sprintf(
		"TPR analysis complete: overall positivity %.1f%% (%.0f positive of %.0f tested across %d facility records, facility level %q, age group %q).",
		overall, positive, tested, matched,
		orAll(selections["facility_level"]), orAll(selections["age_group"]))

	return &Result{
		Summary:   summary,
		Artifacts: []ArtifactRef{{Name: "tpr_results.csv", Path: outPath}},
	}, nil
}

func orAll(v string) string {
	if v == "" {
		return "all"
	}
	return v
}

func rowMatches(row []string, filters map[int]string) bool {
	for idx, want := range filters {
		if idx >= len(row) || strings.ToLower(strings.TrimSpace(row[idx])) != want {
			return false
		}
	}
	return true
}

func cell(row []string, idx int) (float64, error) {
	if idx >= len(row) {
		return 0, fmt.Errorf("row too short")
	}
	return strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
