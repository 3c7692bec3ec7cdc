package workflow

import (
	"context"
	"encoding/csv"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chatmrpt-be/pkg/agent"
	"chatmrpt-be/pkg/analysis"
	"chatmrpt-be/pkg/dataset"
	"chatmrpt-be/pkg/sessionstore"
	"chatmrpt-be/pkg/store"
	"chatmrpt-be/pkg/workflow/handoff"
	"chatmrpt-be/pkg/workflow/slot"
)

type stubAgent struct {
	answer string
}

func (s stubAgent) Answer(ctx context.Context, text string, bundle agent.ContextBundle) (string, error) {
	return s.answer, nil
}

type testEnv struct {
	engine   *Engine
	store    sessionstore.Store
	provider *dataset.Provider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	provider := dataset.NewProvider(t.TempDir(), dataset.NewSchemaCache())
	st := sessionstore.NewMemoryStore()
	h := handoff.New(stubAgent{answer: "Here is what I found in your data."}, provider, logger)
	engine := NewEngine(st, h, provider, DefaultWorkflows(provider), logger)
	return &testEnv{engine: engine, store: st, provider: provider}
}

func (env *testEnv) writeRawDataset(t *testing.T, sessionID string) {
	t.Helper()
	path := filepath.Join(env.provider.BaseDir(), sessionID, "raw.csv")
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
	rows := [][]string{
		{"state_name", "facility_level", "age_group", "tested", "positive", "rainfall", "population_density"},
		{"Kano", "primary", "pw", "100", "40", "210", "380"},
		{"Kano", "primary", "u5", "150", "60", "210", "380"},
		{"Lagos", "secondary", "pw", "200", "30", "160", "1200"},
		{"Kaduna", "primary", "pw", "80", "20", "190", "450"},
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			t.Fatal(err)
		}
	}
}

func mustHandle(t *testing.T, env *testEnv, sessionID, text string) *Response {
	t.Helper()
	resp, err := env.engine.Handle(context.Background(), sessionID, text)
	if err != nil {
		t.Fatalf("Handle(%q): %v", text, err)
	}
	if resp == nil {
		t.Fatalf("Handle(%q) = nil, want a workflow response", text)
	}
	return resp
}

func TestFullTPRWorkflow(t *testing.T) {
	env := newTestEnv(t)
	env.writeRawDataset(t, "s1")

	resp := mustHandle(t, env, "s1", "calculate tpr")
	if resp.Stage != "AWAITING_FACILITY_LEVEL" {
		t.Fatalf("after trigger, stage = %q, want AWAITING_FACILITY_LEVEL", resp.Stage)
	}
	if !strings.Contains(resp.Message, "facility level") {
		t.Errorf("trigger response must prompt for the facility level: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "4 records and 7 columns") {
		t.Errorf("prompt should carry live dataset counts: %q", resp.Message)
	}

	resp = mustHandle(t, env, "s1", "primarry") // typo resolves via fuzzy tier
	if resp.Stage != "AWAITING_AGE_GROUP" {
		t.Fatalf("after facility level, stage = %q, want AWAITING_AGE_GROUP", resp.Stage)
	}
	if resp.Selections["facility_level"] != "primary" {
		t.Errorf("selections = %v, want facility_level=primary", resp.Selections)
	}

	resp = mustHandle(t, env, "s1", "pregnant women")
	if resp.Stage != "COMPLETE" {
		t.Fatalf("after last slot, stage = %q, want COMPLETE", resp.Stage)
	}
	if !resp.Success {
		t.Fatalf("completed run must be successful: %q", resp.Message)
	}
	if resp.Selections["age_group"] != "pw" {
		t.Errorf("selections = %v, want age_group=pw", resp.Selections)
	}
	// Summary must carry data-derived values, not a generic done message.
	if !strings.Contains(resp.Message, "TPR") && !strings.Contains(resp.Message, "%") {
		t.Errorf("summary has no data-derived content: %q", resp.Message)
	}

	// The run writes the next phase's artifact.
	handle, err := env.provider.Resolve("s1", dataset.PhasePostTPR)
	if err != nil || handle == nil {
		t.Fatalf("tpr_results.csv not written: handle=%v err=%v", handle, err)
	}
}

func TestNonTriggerAtIdleIsNotAWorkflowConcern(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.engine.Handle(context.Background(), "s1", "hello there")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp != nil {
		t.Fatalf("small talk at idle = %+v, want nil (general query)", resp)
	}
}

func TestInformationRequestKeepsStage(t *testing.T) {
	env := newTestEnv(t)
	env.writeRawDataset(t, "s1")

	mustHandle(t, env, "s1", "calculate tpr")
	resp := mustHandle(t, env, "s1", "what does facility level mean?")

	if resp.Stage != "AWAITING_FACILITY_LEVEL" {
		t.Fatalf("information request moved the stage to %q", resp.Stage)
	}
	// Help must be slot-specific and re-state the valid options.
	for _, want := range []string{"primary", "secondary", "tertiary", "all"} {
		if !strings.Contains(resp.Message, want) {
			t.Errorf("help text missing option %q: %q", want, resp.Message)
		}
	}
}

func TestGeneralAnalysisRequestHandsOffAndAppendsReminder(t *testing.T) {
	env := newTestEnv(t)
	env.writeRawDataset(t, "s1")

	mustHandle(t, env, "s1", "calculate tpr")
	resp := mustHandle(t, env, "s1", "plot rainfall by state")

	if resp.Stage != "AWAITING_FACILITY_LEVEL" {
		t.Fatalf("handoff moved the stage to %q", resp.Stage)
	}
	if !strings.Contains(resp.Message, "Here is what I found in your data.") {
		t.Errorf("agent answer missing: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "I still need the facility level") {
		t.Errorf("slot reminder missing: %q", resp.Message)
	}
}

func TestDataQuestionMidWorkflowHandsOffWithReminder(t *testing.T) {
	env := newTestEnv(t)
	env.writeRawDataset(t, "s1")

	mustHandle(t, env, "s1", "calculate tpr")
	// Question phrasing must not route a dataset computation to slot help.
	resp := mustHandle(t, env, "s1", "what is the average of column tested?")

	if resp.Stage != "AWAITING_FACILITY_LEVEL" {
		t.Fatalf("data question moved the stage to %q", resp.Stage)
	}
	if !strings.Contains(resp.Message, "Here is what I found in your data.") {
		t.Errorf("agent answer missing: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "I still need the facility level") {
		t.Errorf("slot reminder missing: %q", resp.Message)
	}
	if strings.Contains(resp.Message, "Here is what each facility level option means") {
		t.Errorf("data question answered with slot help: %q", resp.Message)
	}
}

func TestAmbiguousInputListsExactOptions(t *testing.T) {
	env := newTestEnv(t)
	env.writeRawDataset(t, "s1")

	mustHandle(t, env, "s1", "calculate tpr")
	mustHandle(t, env, "s1", "primary")
	resp := mustHandle(t, env, "s1", "purple elephants")

	if resp.Stage != "AWAITING_AGE_GROUP" {
		t.Fatalf("ambiguous input moved the stage to %q", resp.Stage)
	}
	if !strings.Contains(resp.Message, "u5, o5, pw, all") {
		t.Errorf("reprompt must list the exact valid options: %q", resp.Message)
	}
}

func TestPauseAndResumeRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.writeRawDataset(t, "s1")

	mustHandle(t, env, "s1", "calculate tpr")
	mustHandle(t, env, "s1", "primary")

	resp := mustHandle(t, env, "s1", "pause")
	if resp.Stage != "PAUSED" {
		t.Fatalf("after pause, stage = %q, want PAUSED", resp.Stage)
	}
	if !strings.Contains(resp.Message, "facility_level=primary") {
		t.Errorf("pause confirmation must state saved selections: %q", resp.Message)
	}

	// While paused, free questions are not a workflow concern.
	free, err := env.engine.Handle(context.Background(), "s1", "tell me about my data")
	if err != nil {
		t.Fatalf("Handle while paused: %v", err)
	}
	if free != nil {
		t.Fatalf("free exploration while paused = %+v, want nil", free)
	}

	resp = mustHandle(t, env, "s1", "resume")
	if resp.Stage != "AWAITING_AGE_GROUP" {
		t.Fatalf("after resume, stage = %q, want AWAITING_AGE_GROUP", resp.Stage)
	}
	if resp.Selections["facility_level"] != "primary" {
		t.Errorf("selections lost across pause/resume: %v", resp.Selections)
	}
}

func TestBareStopPausesInsteadOfExiting(t *testing.T) {
	env := newTestEnv(t)
	env.writeRawDataset(t, "s1")

	mustHandle(t, env, "s1", "calculate tpr")
	mustHandle(t, env, "s1", "primary")
	resp := mustHandle(t, env, "s1", "stop")

	if resp.Stage != "PAUSED" {
		t.Fatalf("after stop, stage = %q, want PAUSED", resp.Stage)
	}
	if len(resp.Selections) == 0 {
		t.Error("stop must preserve selections for a later resume")
	}
}

func TestExitClearsSelections(t *testing.T) {
	env := newTestEnv(t)
	env.writeRawDataset(t, "s1")

	mustHandle(t, env, "s1", "calculate tpr")
	mustHandle(t, env, "s1", "primary")
	resp := mustHandle(t, env, "s1", "exit")

	if resp.Stage != "IDLE" {
		t.Fatalf("after exit, stage = %q, want IDLE", resp.Stage)
	}
	if len(resp.Selections) != 0 {
		t.Errorf("exit must clear selections, got %v", resp.Selections)
	}
}

func TestResumeWithoutPausedWorkflow(t *testing.T) {
	env := newTestEnv(t)

	resp := mustHandle(t, env, "s1", "resume")
	if !strings.Contains(resp.Message, "no paused workflow") {
		t.Errorf("resume without pause must be answered explicitly: %q", resp.Message)
	}
}

// failingTool always errors with a schema mismatch.
type failingTool struct{}

func (failingTool) Name() string { return "failing" }

func (failingTool) Run(ctx context.Context, selections map[string]string, handle *dataset.Handle) (*analysis.Result, error) {
	return nil, &analysis.ToolError{
		Tool:   "failing",
		Reason: "missing column",
		Err:    &analysis.SchemaMismatchError{Column: "tpr", Suggestion: "test_positivity_rate"},
	}
}

// emptyResultTool reports success without any content.
type emptyResultTool struct{}

func (emptyResultTool) Name() string { return "empty" }

func (emptyResultTool) Run(ctx context.Context, selections map[string]string, handle *dataset.Handle) (*analysis.Result, error) {
	return &analysis.Result{Summary: "   "}, nil
}

func singleSlotWorkflow(name string, tool analysis.Tool) []*Definition {
	return []*Definition{
		{
			Name:      name,
			Triggers:  []string{"run " + name},
			DataPhase: dataset.PhaseRaw,
			Tool:      tool,
			Slots: []slot.Spec{
				{
					Name:   "mode",
					Prompt: "Which mode?",
					Options: []slot.Option{
						{Canonical: "fast"},
						{Canonical: "slow"},
					},
				},
			},
		},
	}
}

func TestToolFailureRollsBackToLastSlot(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	provider := dataset.NewProvider(t.TempDir(), dataset.NewSchemaCache())
	h := handoff.New(stubAgent{}, provider, logger)
	engine := NewEngine(sessionstore.NewMemoryStore(), h, provider, singleSlotWorkflow("demo", failingTool{}), logger)

	ctx := context.Background()
	if _, err := engine.Handle(ctx, "s1", "run demo"); err != nil {
		t.Fatal(err)
	}

	resp, err := engine.Handle(ctx, "s1", "fast")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success {
		t.Fatal("failed tool run must not be reported as success")
	}
	if resp.Stage != "AWAITING_MODE" {
		t.Fatalf("after tool failure, stage = %q, want rollback to AWAITING_MODE", resp.Stage)
	}
	if _, ok := resp.Selections["mode"]; ok {
		t.Errorf("failed selection must be dropped, got %v", resp.Selections)
	}
	if !strings.Contains(resp.Message, `column "tpr" was not found`) {
		t.Errorf("schema mismatch not surfaced: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, `Did you mean "test_positivity_rate"?`) {
		t.Errorf("column suggestion missing: %q", resp.Message)
	}
}

func TestEmptyToolResultIsAFailure(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	provider := dataset.NewProvider(t.TempDir(), dataset.NewSchemaCache())
	h := handoff.New(stubAgent{}, provider, logger)
	engine := NewEngine(sessionstore.NewMemoryStore(), h, provider, singleSlotWorkflow("demo", emptyResultTool{}), logger)

	ctx := context.Background()
	if _, err := engine.Handle(ctx, "s1", "run demo"); err != nil {
		t.Fatal(err)
	}

	resp, err := engine.Handle(ctx, "s1", "fast")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success {
		t.Fatal("content-free result must never present as a completed analysis")
	}
	if resp.Stage != "AWAITING_MODE" {
		t.Fatalf("stage = %q, want rollback to AWAITING_MODE", resp.Stage)
	}
}

// conflictingStore fails the first Put with ErrConflict, then delegates.
type conflictingStore struct {
	sessionstore.Store
	failed bool
}

func (c *conflictingStore) Put(ctx context.Context, st *store.WorkflowState) error {
	if !c.failed {
		c.failed = true
		return sessionstore.ErrConflict
	}
	return c.Store.Put(ctx, st)
}

func TestStoreConflictIsRetriedOnce(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	provider := dataset.NewProvider(t.TempDir(), dataset.NewSchemaCache())
	h := handoff.New(stubAgent{}, provider, logger)
	st := &conflictingStore{Store: sessionstore.NewMemoryStore()}
	engine := NewEngine(st, h, provider, DefaultWorkflows(provider), logger)

	resp, err := engine.Handle(context.Background(), "s1", "calculate tpr")
	if err != nil {
		t.Fatalf("Handle with one conflict: %v", err)
	}
	if resp == nil || resp.Stage != "AWAITING_FACILITY_LEVEL" {
		t.Fatalf("retry after conflict did not succeed: %+v", resp)
	}
}

func TestWorkflowChaining(t *testing.T) {
	env := newTestEnv(t)
	env.writeRawDataset(t, "s1")

	mustHandle(t, env, "s1", "calculate tpr")
	mustHandle(t, env, "s1", "all")
	resp := mustHandle(t, env, "s1", "all ages")
	if resp.Stage != "COMPLETE" {
		t.Fatalf("tpr run did not complete: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "risk analysis") {
		t.Errorf("completed tpr should suggest the risk analysis next: %q", resp.Message)
	}

	// COMPLETE is a resting stage: the next trigger starts a fresh workflow.
	resp = mustHandle(t, env, "s1", "risk analysis")
	if resp.Stage != "AWAITING_RISK_VARIABLES" {
		t.Fatalf("risk trigger after completion, stage = %q", resp.Stage)
	}
	if len(resp.Selections) != 0 {
		t.Errorf("new workflow must start with clean selections: %v", resp.Selections)
	}
}
