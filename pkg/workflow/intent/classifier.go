// Package intent classifies free-form user input that failed slot
// resolution. The rules are deliberately deterministic: an ordered keyword
// checklist evaluated first-match-wins, so routing never depends on an LLM.
package intent

import (
	"strings"

	"chatmrpt-be/pkg/store"
)

// Kind is the classification outcome.
type Kind string

const (
	// InformationRequest asks what something means; answered from the slot
	// spec's help text without leaving the stage.
	InformationRequest Kind = "INFORMATION_REQUEST"

	// GeneralAnalysisRequest asks for work on the loaded data; delegated to
	// the reasoning agent with the stage preserved.
	GeneralAnalysisRequest Kind = "GENERAL_ANALYSIS_REQUEST"

	// Navigation is a pause/resume/exit command.
	Navigation Kind = "NAVIGATION"

	// Ambiguous means none of the rules matched; the caller reprompts with
	// the exact valid options.
	Ambiguous Kind = "AMBIGUOUS"
)

// NavigationCommand distinguishes the navigation keywords.
type NavigationCommand string

const (
	NavPause  NavigationCommand = "pause"
	NavResume NavigationCommand = "resume"
	NavExit   NavigationCommand = "exit"
	NavNone   NavigationCommand = ""
)

var questionWords = []string{
	"what", "why", "how", "explain", "tell me", "describe",
}

// Dataset-work vocabulary. "mean of" rather than bare "mean": explanation
// asks ("what does facility level mean") carry the bare word.
var analysisWords = []string{
	"plot", "visualize", "visualise", "chart", "graph", "column", "variable",
	"statistics", "correlation", "distribution", "histogram", "average",
	"mean of", "median", "summarize", "summarise",
}

// Classifier applies the ordered detection checklist.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify decides what kind of input this is for the given stage. The stage
// is accepted for future stage-sensitive rules; the current checklist is
// stage-independent.
func (c *Classifier) Classify(text string, stage store.Stage) Kind {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return Ambiguous
	}

	// Dataset work outranks question phrasing: "what is the average of
	// column X?" is a computation ask for the agent, not a slot-help ask.
	if containsAny(t, analysisWords) {
		return GeneralAnalysisRequest
	}
	if strings.HasSuffix(t, "?") || containsAny(t, questionWords) {
		return InformationRequest
	}
	if ParseNavigation(t) != NavNone {
		return Navigation
	}
	return Ambiguous
}

// ParseNavigation extracts a navigation command from text, or NavNone.
// Checked by the engine before slot resolution so a navigation word is never
// swallowed as a slot answer.
func ParseNavigation(text string) NavigationCommand {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case containsAny(t, []string{"pause", "hold on", "stop for now"}):
		return NavPause
	case containsAny(t, []string{"resume", "continue workflow", "unpause"}):
		return NavResume
	case containsAny(t, []string{"exit", "quit workflow", "cancel workflow", "stop workflow"}):
		return NavExit
	case t == "stop":
		return NavPause
	default:
		return NavNone
	}
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
