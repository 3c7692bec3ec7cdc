package handoff

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"chatmrpt-be/pkg/agent"
	"chatmrpt-be/pkg/dataset"
	"chatmrpt-be/pkg/store"
	"chatmrpt-be/pkg/workflow/slot"
)

type stubAgent struct {
	answer string
	err    error
	delay  time.Duration

	gotBundle agent.ContextBundle
}

func (s *stubAgent) Answer(ctx context.Context, text string, bundle agent.ContextBundle) (string, error) {
	s.gotBundle = bundle
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", agent.ErrTimeout
		}
	}
	return s.answer, s.err
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func pendingSpec() *slot.Spec {
	return &slot.Spec{
		Name:   "facility_level",
		Prompt: "Which facility level should be included?",
		Options: []slot.Option{
			{Canonical: "primary"},
			{Canonical: "secondary"},
			{Canonical: "tertiary"},
			{Canonical: "all"},
		},
	}
}

func emptyProvider(t *testing.T) *dataset.Provider {
	t.Helper()
	return dataset.NewProvider(t.TempDir(), dataset.NewSchemaCache())
}

// writeWideDataset creates a raw dataset with the given number of numeric
// columns for one session.
func writeWideDataset(t *testing.T, provider *dataset.Provider, sessionID string, numericCols int) {
	t.Helper()
	path := filepath.Join(provider.BaseDir(), sessionID, "raw.csv")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	header := []string{"state_name"}
	row := []string{"Kano"}
	for i := 0; i < numericCols; i++ {
		header = append(header, fmt.Sprintf("metric_%02d", i))
		row = append(row, strconv.Itoa(i*10))
	}

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write(header); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(row); err != nil {
		t.Fatal(err)
	}
}

func TestDoAppendsSlotReminder(t *testing.T) {
	reasoner := &stubAgent{answer: "Rainfall is measured in millimeters."}
	h := New(reasoner, emptyProvider(t), testLogger())

	outcome := h.Do(context.Background(), "s1", "what is rainfall?", store.Awaiting("facility_level"), pendingSpec())

	if outcome.Deferred {
		t.Fatal("plain question must not be deferred")
	}
	if !strings.Contains(outcome.Message, "Rainfall is measured in millimeters.") {
		t.Errorf("agent answer missing from message: %q", outcome.Message)
	}
	if !strings.Contains(outcome.Message, "I still need the facility level") {
		t.Errorf("reminder missing from message: %q", outcome.Message)
	}
	if !strings.Contains(outcome.Message, "primary, secondary, tertiary, all") {
		t.Errorf("valid options missing from message: %q", outcome.Message)
	}
}

func TestDoWithoutPendingSlotHasNoReminder(t *testing.T) {
	reasoner := &stubAgent{answer: "Here you go."}
	h := New(reasoner, emptyProvider(t), testLogger())

	outcome := h.Do(context.Background(), "s1", "hello", store.StageIdle, nil)

	if strings.Contains(outcome.Message, "I still need") {
		t.Errorf("unexpected reminder without a pending slot: %q", outcome.Message)
	}
}

func TestDoTimeoutDegradesGracefully(t *testing.T) {
	reasoner := &stubAgent{answer: "too late", delay: time.Second}
	h := New(reasoner, emptyProvider(t), testLogger()).WithTimeout(10 * time.Millisecond)

	outcome := h.Do(context.Background(), "s1", "hard question", store.Awaiting("facility_level"), pendingSpec())

	if !strings.Contains(outcome.Message, "took too long") {
		t.Errorf("timeout not surfaced: %q", outcome.Message)
	}
	if !strings.Contains(outcome.Message, "primary, secondary, tertiary, all") {
		t.Errorf("degraded message must still list options: %q", outcome.Message)
	}
}

func TestDoAgentErrorDegradesGracefully(t *testing.T) {
	reasoner := &stubAgent{err: &agent.AgentError{Err: fmt.Errorf("connection refused")}}
	h := New(reasoner, emptyProvider(t), testLogger())

	outcome := h.Do(context.Background(), "s1", "question", store.Awaiting("facility_level"), pendingSpec())

	if strings.Contains(outcome.Message, "connection refused") {
		t.Errorf("raw error leaked to the user: %q", outcome.Message)
	}
	if !strings.Contains(outcome.Message, "couldn't answer") {
		t.Errorf("degraded message missing: %q", outcome.Message)
	}
}

func TestDoLargeRequestGuard(t *testing.T) {
	provider := emptyProvider(t)
	writeWideDataset(t, provider, "s1", 25)

	reasoner := &stubAgent{answer: "should never be called"}
	h := New(reasoner, provider, testLogger())

	outcome := h.Do(context.Background(), "s1", "plot all variables please", store.Awaiting("facility_level"), pendingSpec())

	if !outcome.Deferred {
		t.Fatal("bulk request over a wide dataset must be deferred")
	}
	if !strings.Contains(outcome.Message, "25 numeric columns") {
		t.Errorf("guard message must name the column count: %q", outcome.Message)
	}
	if !strings.Contains(outcome.Message, "metric_00") {
		t.Errorf("guard message must suggest a concrete subset: %q", outcome.Message)
	}
}

func TestDoLargeRequestGuardSkipsNarrowDatasets(t *testing.T) {
	provider := emptyProvider(t)
	writeWideDataset(t, provider, "s1", 4)

	reasoner := &stubAgent{answer: "done"}
	h := New(reasoner, provider, testLogger())

	outcome := h.Do(context.Background(), "s1", "plot all variables", store.StageIdle, nil)

	if outcome.Deferred {
		t.Fatal("narrow dataset must not trip the guard")
	}
}

func TestDoBuildsDatasetBundle(t *testing.T) {
	provider := emptyProvider(t)
	writeWideDataset(t, provider, "s1", 3)

	reasoner := &stubAgent{answer: "ok"}
	h := New(reasoner, provider, testLogger())

	h.Do(context.Background(), "s1", "what columns do I have?", store.Awaiting("age_group"), pendingSpec())

	if reasoner.gotBundle.DatasetRows != 1 {
		t.Errorf("bundle rows = %d, want 1", reasoner.gotBundle.DatasetRows)
	}
	if len(reasoner.gotBundle.DatasetColumns) != 4 {
		t.Errorf("bundle columns = %v, want 4 columns", reasoner.gotBundle.DatasetColumns)
	}
	if reasoner.gotBundle.PendingSlot != "facility_level" {
		t.Errorf("bundle pending slot = %q", reasoner.gotBundle.PendingSlot)
	}
}
