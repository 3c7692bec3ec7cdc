package intent

import (
	"testing"

	"chatmrpt-be/pkg/store"
)

func TestClassify(t *testing.T) {
	c := NewClassifier()
	stage := store.Awaiting("facility_level")

	tests := []struct {
		name  string
		input string
		want  Kind
	}{
		{"trailing question mark", "is primary the right one?", InformationRequest},
		{"what question", "what does facility level mean", InformationRequest},
		{"explain request", "explain the options to me", InformationRequest},
		{"plot request", "plot rainfall against tpr", GeneralAnalysisRequest},
		{"summary statistics request", "show me summary statistics for my dataset", GeneralAnalysisRequest},
		{"data question in question form", "what is the average of column tested?", GeneralAnalysisRequest},
		{"pause command", "pause", Navigation},
		{"bare stop is navigation", "stop", Navigation},
		{"garbage input", "purple elephants", Ambiguous},
		{"empty input", "   ", Ambiguous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.input, stage); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestClassifyOrderIsAnalysisFirst(t *testing.T) {
	c := NewClassifier()

	// Contains both a question word and an analysis word; the checklist is
	// ordered and the analysis rule must win, so dataset questions reach the
	// agent instead of being answered with slot help.
	got := c.Classify("what is the average tpr?", store.StageIdle)
	if got != GeneralAnalysisRequest {
		t.Errorf("Classify mixed input = %v, want %v", got, GeneralAnalysisRequest)
	}

	// A bare explanation ask carries no analysis vocabulary and stays an
	// information request, "mean" as in "what does X mean" included.
	got = c.Classify("what does facility level mean?", store.StageIdle)
	if got != InformationRequest {
		t.Errorf("Classify explanation ask = %v, want %v", got, InformationRequest)
	}
}

func TestParseNavigation(t *testing.T) {
	tests := []struct {
		input string
		want  NavigationCommand
	}{
		{"pause", NavPause},
		{"hold on a second", NavPause},
		{"stop", NavPause},
		{"resume", NavResume},
		{"please continue workflow", NavResume},
		{"exit", NavExit},
		{"cancel workflow", NavExit},
		{"primary", NavNone},
		{"", NavNone},
	}

	for _, tt := range tests {
		if got := ParseNavigation(tt.input); got != tt.want {
			t.Errorf("ParseNavigation(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
