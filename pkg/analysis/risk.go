package analysis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"chatmrpt-be/pkg/dataset"
)

// Core indicator columns used when the user narrows the risk analysis to the
// core variable set.
var coreRiskColumns = []string{"tpr", "rainfall", "population_density"}

// RiskTool builds a composite risk score over the post-TPR dataset: each
// selected numeric indicator is min-max normalized and the score is their
// mean, written out as the unified risk dataset for ITN planning.
type RiskTool struct {
	provider *dataset.Provider
}

var _ Tool = &RiskTool{}

func NewRiskTool(provider *dataset.Provider) *RiskTool {
	return &RiskTool{provider: provider}
}

func (t *RiskTool) Name() string { return "risk" }

func (t *RiskTool) Run(ctx context.Context, selections map[string]string, handle *dataset.Handle) (*Result, error) {
	if handle == nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "run the TPR analysis first so risk has per-facility positivity to work from"}
	}

	header, rows, err := dataset.ReadAll(handle.Path)
	if err != nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "dataset could not be read", Err: err}
	}
	schema, err := t.provider.Schema(handle)
	if err != nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "dataset schema could not be read", Err: err}
	}

	indicators, err := t.selectIndicators(schema, selections["risk_variables"])
	if err != nil {
		return nil, err
	}

	cols := make([]int, len(indicators))
	for i, name := range indicators {
		idx, err := requireColumn(schema, name)
		if err != nil {
			return nil, &ToolError{Tool: t.Name(), Reason: "indicator column missing", Err: err}
		}
		cols[i] = idx
	}

	// Column-wise min/max over parseable cells.
	mins := make([]float64, len(cols))
	maxs := make([]float64, len(cols))
	for i := range cols {
		mins[i], maxs[i] = math.Inf(1), math.Inf(-1)
	}
	values := make([][]float64, len(rows))
	for r, row := range rows {
		values[r] = make([]float64, len(cols))
		for i, idx := range cols {
			v, err := cell(row, idx)
			if err != nil {
				v = math.NaN()
			}
			values[r][i] = v
			if !math.IsNaN(v) {
				if v < mins[i] {
					mins[i] = v
				}
				if v > maxs[i] {
					maxs[i] = v
				}
			}
		}
	}

	scored := 0
	var scoreSum, scoreMax float64
	outRows := make([][]string, 0, len(rows))
	for r, row := range rows {
		var sum float64
		n := 0
		for i := range cols {
			v := values[r][i]
			if math.IsNaN(v) {
				continue
			}
			span := maxs[i] - mins[i]
			if span == 0 {
				sum += 0.5
			} else {
				sum += (v - mins[i]) / span
			}
			n++
		}
		score := math.NaN()
		rendered := ""
		if n > 0 {
			score = sum / float64(n)
			rendered = strconv.FormatFloat(score, 'f', 4, 64)
			scored++
			scoreSum += score
			if score > scoreMax {
				scoreMax = score
			}
		}
		outRows = append(outRows, append(append([]string{}, row...), rendered))
	}

	if scored == 0 {
		return nil, &ToolError{Tool: t.Name(), Reason: fmt.Sprintf(
			"none of the indicator columns %v contained numeric values to score", indicators)}
	}

	outPath, err := t.provider.PathFor(handle.SessionID, dataset.PhasePostRisk)
	if err != nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "could not prepare results file", Err: err}
	}
	if err := writeCSV(outPath, append(header, "risk_score"), outRows); err != nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "could not write results file", Err: err}
	}

	summary := fmt.Sprintf(
		"Risk analysis complete: %d of %d records scored on indicators [%s] using the %s method; mean risk score %.3f, highest %.3f.",
		scored, len(rows), strings.Join(indicators, ", "),
		orComposite(selections["scoring_method"]), scoreSum/float64(scored), scoreMax)

	return &Result{
		Summary:   summary,
		Artifacts: []ArtifactRef{{Name: "risk_unified.csv", Path: outPath}},
	}, nil
}

func (t *RiskTool) selectIndicators(schema *dataset.Schema, variables string) ([]string, error) {
	if variables == "" || variables == "all" {
		if len(schema.NumericColumns) == 0 {
			return nil, &ToolError{Tool: t.Name(), Reason: "the dataset has no numeric columns to score"}
		}
		return schema.NumericColumns, nil
	}
	// "core" narrows to the canonical indicator set; anything absent from the
	// dataset fails loudly with a suggestion instead of silently shrinking.
	out := make([]string, 0, len(coreRiskColumns))
	for _, name := range coreRiskColumns {
		if _, err := requireColumn(schema, name); err != nil {
			return nil, &ToolError{Tool: t.Name(), Reason: "core indicator missing", Err: err}
		}
		out = append(out, name)
	}
	return out, nil
}

func orComposite(v string) string {
	if v == "" {
		return "composite"
	}
	return v
}
