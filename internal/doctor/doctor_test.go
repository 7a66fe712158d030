package doctor

import (
	"context"
	"strings"
	"testing"

	"github.com/wreckit/wreckit/internal/agent"
	"github.com/wreckit/wreckit/internal/config"
	"github.com/wreckit/wreckit/internal/item"
	"github.com/wreckit/wreckit/internal/plan"
	"github.com/wreckit/wreckit/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.Open(t.TempDir())
	if err := s.EnsureWorkspace(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRun_NoRecordedFailure(t *testing.T) {
	s := newTestStore(t)
	it, _ := item.New("001-x", "Add flag", "", nil)
	if err := s.CreateItem(it); err != nil {
		t.Fatal(err)
	}

	out, err := Run(context.Background(), s, &config.Config{}, agent.NewMock(), "001-x")
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Fatalf("expected no diagnosis for an item with no recorded failure, got %q", out)
	}
}

func TestRun_DispatchesDiagnosisTurn(t *testing.T) {
	s := newTestStore(t)
	it, _ := item.New("001-x", "Add flag", "", nil)
	it.State = item.StateImplementing
	msg := "json: cannot unmarshal field"
	it.LastError = &msg
	if err := s.CreateItem(it); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendHealingLog(store.HealingLogEntry{
		ItemID: "001-x", Classification: "json-corruption", Pattern: "cannot unmarshal",
		FinalOutcome: "unrecoverable",
	}); err != nil {
		t.Fatal(err)
	}

	mock := agent.NewMock()
	mock.Script(&agent.Result{ExitCode: 0, Output: "this is a code problem, re-run implement"}, nil)

	out, err := Run(context.Background(), s, &config.Config{TimeoutSeconds: 30}, mock, "001-x")
	if err != nil {
		t.Fatal(err)
	}
	if out != "this is a code problem, re-run implement" {
		t.Fatalf("unexpected diagnosis: %q", out)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(calls))
	}
	if !strings.Contains(calls[0].Prompt, "json: cannot unmarshal field") {
		t.Fatal("expected the recorded error in the diagnosis prompt")
	}
	if !strings.Contains(calls[0].Prompt, "json-corruption") {
		t.Fatal("expected the healing log entry in the diagnosis prompt")
	}
}

func TestNextPhaseFor_ImplementingWithPendingStories(t *testing.T) {
	s := newTestStore(t)
	it, _ := item.New("001-x", "x", "", nil)
	it.State = item.StateImplementing
	doc := &plan.Document{ID: "001-x", UserStories: []plan.Story{
		{ID: "US-001", Title: "a", Status: plan.StatusPending},
	}}
	if err := s.WritePlan("001-x", doc); err != nil {
		t.Fatal(err)
	}

	phase, note := nextPhaseFor(s, it)
	if note != "" || phase != item.PhaseImplement {
		t.Fatalf("phase = %v, note = %q, want implement/empty", phase, note)
	}
}

func TestNextPhaseFor_ImplementingAllStoriesDone(t *testing.T) {
	s := newTestStore(t)
	it, _ := item.New("001-x", "x", "", nil)
	it.State = item.StateImplementing
	doc := &plan.Document{ID: "001-x", UserStories: []plan.Story{
		{ID: "US-001", Title: "a", Status: plan.StatusDone},
	}}
	if err := s.WritePlan("001-x", doc); err != nil {
		t.Fatal(err)
	}

	phase, note := nextPhaseFor(s, it)
	if note != "" || phase != item.PhasePR {
		t.Fatalf("phase = %v, note = %q, want pr/empty", phase, note)
	}
}
