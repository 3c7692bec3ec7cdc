package workflow

import (
	"strings"

	"chatmrpt-be/pkg/analysis"
	"chatmrpt-be/pkg/dataset"
	"chatmrpt-be/pkg/workflow/slot"
)

// Definition is one guided workflow: a strict linear sequence of slots ending
// in a bound domain tool. The slot order IS the transition table; each
// awaiting stage accepts exactly one slot's input and advances to the next.
type Definition struct {
	Name string

	// Triggers start the workflow from a resting stage (substring match on
	// normalized input).
	Triggers []string

	Slots []slot.Spec

	// DataPhase is the dataset artifact the bound tool consumes.
	DataPhase dataset.Phase

	Tool analysis.Tool
}

// SlotIndex returns the position of a slot name, or -1.
func (d *Definition) SlotIndex(name string) int {
	for i := range d.Slots {
		if d.Slots[i].Name == name {
			return i
		}
	}
	return -1
}

// SpecFor returns the slot spec for a name, or nil.
func (d *Definition) SpecFor(name string) *slot.Spec {
	if i := d.SlotIndex(name); i >= 0 {
		return &d.Slots[i]
	}
	return nil
}

// Matches reports whether text triggers this workflow.
func (d *Definition) Matches(text string) bool {
	t := slot.Normalize(text)
	for _, trigger := range d.Triggers {
		if strings.Contains(t, trigger) {
			return true
		}
	}
	return false
}

// DefaultWorkflows builds the three guided analyses over the given tools.
// This is the single source of truth for slot vocabulary; no other component
// keeps its own keyword lists.
func DefaultWorkflows(provider *dataset.Provider) []*Definition {
	return []*Definition{
		{
			Name:      "tpr",
			Triggers:  []string{"calculate tpr", "run tpr", "tpr analysis", "start tpr", "test positivity"},
			DataPhase: dataset.PhaseRaw,
			Tool:      analysis.NewTPRTool(provider),
			// Geography comes from the uploaded dataset itself; the guided
			// part only needs the facility level and age group.
			Slots: []slot.Spec{
				{
					Name:   "facility_level",
					Prompt: "Which facility level should be included?",
					Options: []slot.Option{
						{
							Canonical:      "primary",
							Aliases:        []string{"1", "one", "phc"},
							TriggerPhrases: []string{"primary health", "community health center", "health post"},
							Help:           "primary health centers and community health posts",
						},
						{
							Canonical:      "secondary",
							Aliases:        []string{"2", "two"},
							TriggerPhrases: []string{"general hospital", "district hospital"},
							Help:           "general and district hospitals",
						},
						{
							Canonical:      "tertiary",
							Aliases:        []string{"3", "three"},
							TriggerPhrases: []string{"teaching hospital", "federal medical"},
							Help:           "teaching hospitals and federal medical centres",
						},
						{
							Canonical:      "all",
							Aliases:        []string{"4", "four", "every level"},
							TriggerPhrases: []string{"all levels", "all facilities"},
							Help:           "every facility level together",
						},
					},
				},
				{
					Name:   "age_group",
					Prompt: "Which age group should be analyzed?",
					Options: []slot.Option{
						{
							Canonical:      "u5",
							Aliases:        []string{"1", "one", "under5", "under 5"},
							TriggerPhrases: []string{"under five", "children under", "under-five"},
							Help:           "children under five years",
						},
						{
							Canonical:      "o5",
							Aliases:        []string{"2", "two", "over5", "over 5"},
							TriggerPhrases: []string{"over five", "five and above", "older than five"},
							Help:           "persons five years and older",
						},
						{
							Canonical:      "pw",
							Aliases:        []string{"3", "three"},
							TriggerPhrases: []string{"pregnant", "pregnant women", "anc"},
							Help:           "pregnant women attending antenatal care",
						},
						{
							Canonical:      "all",
							Aliases:        []string{"4", "four", "everyone"},
							TriggerPhrases: []string{"all ages", "all age groups"},
							Help:           "every age group together",
						},
					},
				},
			},
		},
		{
			Name:      "risk",
			Triggers:  []string{"risk analysis", "run risk", "calculate risk", "risk scoring"},
			DataPhase: dataset.PhasePostTPR,
			Tool:      analysis.NewRiskTool(provider),
			Slots: []slot.Spec{
				{
					Name:   "risk_variables",
					Prompt: "Which variables should feed the risk score?",
					Options: []slot.Option{
						{
							Canonical:      "core",
							Aliases:        []string{"1", "one", "core set"},
							TriggerPhrases: []string{"core variables", "core indicators", "main indicators"},
							Help:           "the core indicator set: TPR, rainfall and population density",
						},
						{
							Canonical:      "all",
							Aliases:        []string{"2", "two", "every variable"},
							TriggerPhrases: []string{"all variables", "all indicators", "everything numeric"},
							Help:           "every numeric column in the dataset",
						},
					},
				},
				{
					Name:   "scoring_method",
					Prompt: "How should variables be combined into a score?",
					Options: []slot.Option{
						{
							Canonical:      "composite",
							Aliases:        []string{"1", "one"},
							TriggerPhrases: []string{"composite score", "weighted average", "normalized mean"},
							Help:           "min-max normalize each indicator and average them",
						},
						{
							Canonical:      "ranked",
							Aliases:        []string{"2", "two"},
							TriggerPhrases: []string{"rank based", "rank-based", "by rank"},
							Help:           "rank areas per indicator and average the ranks",
						},
					},
				},
			},
		},
		{
			Name:      "itn",
			Triggers:  []string{"itn planning", "bed net", "bednet", "plan itn", "net distribution"},
			DataPhase: dataset.PhasePostRisk,
			Tool:      analysis.NewITNTool(provider),
			Slots: []slot.Spec{
				{
					Name:   "coverage_target",
					Prompt: "Which coverage strategy should the ITN plan use?",
					Options: []slot.Option{
						{
							Canonical:      "universal",
							Aliases:        []string{"1", "one", "full"},
							TriggerPhrases: []string{"universal coverage", "everyone covered", "full coverage"},
							Help:           "one net per 1.8 people for the whole population",
						},
						{
							Canonical:      "standard",
							Aliases:        []string{"2", "two"},
							TriggerPhrases: []string{"standard coverage", "80 percent", "80%"},
							Help:           "cover 80% of the population, highest risk first",
						},
						{
							Canonical:      "targeted",
							Aliases:        []string{"3", "three"},
							TriggerPhrases: []string{"targeted coverage", "high risk only", "highest risk"},
							Help:           "cover the highest-risk half of the population",
						},
					},
				},
			},
		},
	}
}
