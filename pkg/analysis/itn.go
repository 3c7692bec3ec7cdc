package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"chatmrpt-be/pkg/dataset"
)

const colPopulation = "population"

// Persons covered by one net under WHO universal-coverage planning.
const personsPerNet = 1.8

// Share of population targeted per coverage strategy.
var coverageShare = map[string]float64{
	"universal": 1.0,
	"standard":  0.8,
	"targeted":  0.5, // highest-risk half only
}

// ITNTool plans bed-net quantities from the unified risk dataset: it ranks
// records by risk score and allocates nets to the selected coverage share of
// the population, highest risk first.
type ITNTool struct {
	provider *dataset.Provider
}

var _ Tool = &ITNTool{}

func NewITNTool(provider *dataset.Provider) *ITNTool {
	return &ITNTool{provider: provider}
}

func (t *ITNTool) Name() string { return "itn" }

func (t *ITNTool) Run(ctx context.Context, selections map[string]string, handle *dataset.Handle) (*Result, error) {
	if handle == nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "run the risk analysis first so ITN planning has risk scores to rank by"}
	}

	_, rows, err := dataset.ReadAll(handle.Path)
	if err != nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "dataset could not be read", Err: err}
	}
	schema, err := t.provider.Schema(handle)
	if err != nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "dataset schema could not be read", Err: err}
	}

	popIdx, err := requireColumn(schema, colPopulation)
	if err != nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "population column missing", Err: err}
	}
	riskIdx, err := requireColumn(schema, "risk_score")
	if err != nil {
		return nil, &ToolError{Tool: t.Name(), Reason: "risk score column missing", Err: err}
	}

	target := selections["coverage_target"]
	share, ok := coverageShare[target]
	if !ok {
		share = coverageShare["standard"]
		target = "standard"
	}

	type record struct {
		population float64
		risk       float64
	}
	records := make([]record, 0, len(rows))
	var totalPop float64
	for _, row := range rows {
		pop, err1 := cell(row, popIdx)
		risk, err2 := cell(row, riskIdx)
		if err1 != nil || err2 != nil {
			continue
		}
		records = append(records, record{population: pop, risk: risk})
		totalPop += pop
	}
	if len(records) == 0 {
		return nil, &ToolError{Tool: t.Name(), Reason: "no records carry both population and risk score values"}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].risk > records[j].risk })

	budget := totalPop * share
	var coveredPop float64
	covered := 0
	for _, r := range records {
		if coveredPop >= budget {
			break
		}
		coveredPop += r.population
		covered++
	}
	nets := int(math.Ceil(coveredPop / personsPerNet))

	summary := fmt.Sprintf(
		"ITN plan complete (%s coverage): %d nets for %.0f people across the %d highest-risk of %d areas (%.0f%% of total population %.0f).",
		target, nets, coveredPop, covered, len(records), coveredPop/totalPop*100, totalPop)

	return &Result{Summary: summary}, nil
}
