// Scripted conversation replay against the workflow engine, no server or
// external services needed. Useful for eyeballing stage transitions and
// message wording after engine changes.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"chatmrpt-be/pkg/agent"
	"chatmrpt-be/pkg/dataset"
	"chatmrpt-be/pkg/sessionstore"
	"chatmrpt-be/pkg/store"
	"chatmrpt-be/pkg/workflow"
	"chatmrpt-be/pkg/workflow/handoff"

	"github.com/fatih/color"
)

// cannedAgent stands in for the LLM so the trace runs offline.
type cannedAgent struct{}

func (cannedAgent) Answer(ctx context.Context, text string, bundle agent.ContextBundle) (string, error) {
	return fmt.Sprintf("(canned answer about: %s)", text), nil
}

var script = []string{
	"what columns does my data have?",
	"calculate tpr",
	"what does facility level mean?",
	"primarry",
	"pregnant women",
	"calculate risk",
	"pause",
	"resume",
	"core",
	"composite",
	"plan itn distribution",
	"exit",
}

func main() {
	baseDir, err := os.MkdirTemp("", "trace_workflow")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(baseDir)

	const sessionID = "trace-session"
	writeSampleDataset(filepath.Join(baseDir, sessionID, "raw.csv"))

	logger := log.New(os.Stderr, "[TRACE] ", log.LstdFlags)
	datasets := dataset.NewProvider(baseDir, dataset.NewSchemaCache())
	h := handoff.New(cannedAgent{}, datasets, logger)
	engine := workflow.NewEngine(
		sessionstore.NewMemoryStore(),
		h,
		datasets,
		workflow.DefaultWorkflows(datasets),
		logger,
	)

	ctx := context.Background()
	for _, text := range script {
		color.Cyan("USER: %s", text)
		resp, err := engine.Handle(ctx, sessionID, text)
		if err != nil {
			color.Red("ERROR: %v", err)
			continue
		}
		if resp == nil {
			color.Yellow("(engine declined; falls to general agent)")
			outcome := h.Do(ctx, sessionID, text, store.StageIdle, nil)
			color.Green("AGENT: %s", outcome.Message)
			continue
		}
		color.Magenta("STAGE: %s  SELECTIONS: %v", resp.Stage, resp.Selections)
		color.Green("BOT: %s", resp.Message)
		fmt.Println()
	}
}

func writeSampleDataset(path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	rows := [][]string{
		{"state_name", "facility_level", "age_group", "tested", "positive", "rainfall", "population_density", "population"},
		{"Kano", "primary", "u5", "120", "48", "210", "380", "15000"},
		{"Kano", "primary", "pw", "60", "12", "210", "380", "15000"},
		{"Lagos", "secondary", "o5", "340", "51", "160", "1200", "42000"},
		{"Lagos", "tertiary", "u5", "280", "35", "160", "1200", "42000"},
		{"Kaduna", "primary", "pw", "90", "27", "190", "450", "22000"},
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			log.Fatal(err)
		}
	}
}
