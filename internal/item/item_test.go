package item

import (
	"encoding/json"
	"testing"
)

func TestValidID(t *testing.T) {
	cases := map[string]bool{
		"001-add-flag":   true,
		"042-fix-bug-x":  true,
		"bad-id":         false,
		"1-too-short":    false,
		"001-":           false,
		"001-Has-Upper":  false,
	}
	for id, want := range cases {
		if got := ValidID(id); got != want {
			t.Errorf("ValidID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	it, err := New("001-add-flag", "Add flag", "overview", nil)
	if err != nil {
		t.Fatal(err)
	}
	if it.State != StateRaw {
		t.Fatalf("state = %q, want raw", it.State)
	}
	if _, err := New("nope", "", "", nil); err == nil {
		t.Fatal("expected error for invalid id")
	}
}

func TestValidateTransition(t *testing.T) {
	it := &Item{ID: "001-x", State: StateRaw}
	if err := ValidateTransition(it, PhaseResearch); err != nil {
		t.Fatalf("research from raw should be valid: %v", err)
	}
	if err := ValidateTransition(it, PhasePlan); err == nil {
		t.Fatal("plan from raw should be invalid")
	}

	it.State = StateImplementing
	if err := ValidateTransition(it, PhaseImplement); err != nil {
		t.Fatalf("implement from implementing (resumable) should be valid: %v", err)
	}

	it.State = StateDone
	if err := ValidateTransition(it, PhaseComplete); err != nil {
		t.Fatalf("complete from done should be valid (idempotent retry): %v", err)
	}
	it.State = StateDone
	if err := ValidateTransition(it, PhaseResearch); err == nil {
		t.Fatal("any non-complete phase from done should be invalid")
	}
}

func TestRunnable(t *testing.T) {
	it := &Item{ID: "002-b", State: StateRaw, DependsOn: []string{"001-a"}}
	if Runnable(it, map[string]bool{}) {
		t.Fatal("should not be runnable: dependency not done")
	}
	if !Runnable(it, map[string]bool{"001-a": true}) {
		t.Fatal("should be runnable: dependency done")
	}
	it.DependsOn = []string{"999-missing"}
	if Runnable(it, map[string]bool{"001-a": true}) {
		t.Fatal("dangling dependency must keep item non-runnable indefinitely")
	}
	it.State = StateDone
	it.DependsOn = nil
	if Runnable(it, nil) {
		t.Fatal("done item is never runnable")
	}
}

func TestRollback(t *testing.T) {
	sha := "deadbeef"
	it := &Item{ID: "001-x", State: StateDone, RollbackSHA: &sha}
	if err := Rollback(it); err != nil {
		t.Fatal(err)
	}
	if it.State != StateImplementing || it.RollbackSHA != nil {
		t.Fatalf("rollback did not reset state correctly: %+v", it)
	}

	it2 := &Item{ID: "002-y", State: StateDone}
	if err := Rollback(it2); err == nil {
		t.Fatal("rollback without rollback_sha should fail")
	}

	it3 := &Item{ID: "003-z", State: StateInPR}
	if err := Rollback(it3); err == nil {
		t.Fatal("rollback of non-done item should fail")
	}
}

func TestUnknownKeysRoundTrip(t *testing.T) {
	raw := []byte(`{
		"schema_version": 1,
		"id": "001-x",
		"title": "X",
		"overview": "",
		"state": "raw",
		"branch": null,
		"pr_url": null,
		"pr_number": null,
		"rollback_sha": null,
		"depends_on": null,
		"campaign": null,
		"last_error": null,
		"created_at": "2026-01-01T00:00:00Z",
		"updated_at": "2026-01-01T00:00:00Z",
		"completed_at": null,
		"future_field": "from a newer schema version"
	}`)
	var it Item
	if err := json.Unmarshal(raw, &it); err != nil {
		t.Fatal(err)
	}
	if it.Unknown["future_field"] != "from a newer schema version" {
		t.Fatalf("expected unknown key preserved, got %+v", it.Unknown)
	}

	out, err := json.Marshal(it)
	if err != nil {
		t.Fatal(err)
	}
	var roundTripped map[string]any
	if err := json.Unmarshal(out, &roundTripped); err != nil {
		t.Fatal(err)
	}
	if roundTripped["future_field"] != "from a newer schema version" {
		t.Fatal("unknown key was dropped on re-marshal")
	}
}

func TestNextPhase(t *testing.T) {
	p, ok := NextPhase(StateRaw)
	if !ok || p != PhaseResearch {
		t.Fatalf("NextPhase(raw) = %v, %v", p, ok)
	}
	if _, ok := NextPhase(StateDone); ok {
		t.Fatal("done should have no next phase")
	}
}
