package healing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wreckit/wreckit/internal/store"
)

func newTestController(t *testing.T) (*Controller, *store.Store) {
	t.Helper()
	s := store.Open(t.TempDir())
	if err := s.EnsureWorkspace(); err != nil {
		t.Fatal(err)
	}
	return NewController(s, ""), s
}

func TestClassifyKnownPatterns(t *testing.T) {
	cases := map[string]Class{
		"fatal: Unable to create '.git/index.lock': File exists.":    ClassGitLock,
		"npm ERR! network ENOTFOUND registry.npmjs.org":              ClassPackageManagerFailure,
		`json: cannot unmarshal string into Go value of type int`:    ClassJSONCorruption,
		"plan 001-x: duplicate story id \"US-001\"":                  ClassPlanValidation,
		"story US-001: invalid status \"blocked\"":                   ClassStoryValidation,
		"exit status 1: segmentation fault":                          ClassOther,
	}
	for text, want := range cases {
		if got := Classify(text); got != want {
			t.Errorf("Classify(%q) = %s, want %s", text, got, want)
		}
	}
}

func TestHandleRecoversWithinCap(t *testing.T) {
	c, _ := newTestController(t)
	c.MaxAttempts = 2

	outcome, _, err := c.Handle("001-x", "json: cannot unmarshal")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeRecovered {
		t.Fatalf("first attempt = %s, want recovered", outcome)
	}

	outcome, _, err = c.Handle("001-x", "json: cannot unmarshal")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeRecovered {
		t.Fatalf("second attempt = %s, want recovered", outcome)
	}

	outcome, _, err = c.Handle("001-x", "json: cannot unmarshal")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeUnrecoverable {
		t.Fatalf("third attempt = %s, want unrecoverable once cap exceeded", outcome)
	}
}

func TestHandleOtherClassIsAlwaysUnrecoverable(t *testing.T) {
	c, _ := newTestController(t)
	outcome, guidance, err := c.Handle("001-x", "segmentation fault")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeUnrecoverable {
		t.Fatalf("outcome = %s, want unrecoverable", outcome)
	}
	if guidance != "" {
		t.Fatalf("expected no guidance for an unrecoverable class, got %q", guidance)
	}
}

func TestHandleLogsEveryEpisode(t *testing.T) {
	c, s := newTestController(t)
	if _, _, err := c.Handle("001-x", "json: cannot unmarshal"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.Handle("001-x", "segmentation fault"); err != nil {
		t.Fatal(err)
	}

	entries, err := s.ReadHealingLog()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d log entries, want 2", len(entries))
	}
	if entries[0].Classification != string(ClassJSONCorruption) || entries[0].FinalOutcome != string(OutcomeRecovered) {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Classification != string(ClassOther) || entries[1].FinalOutcome != string(OutcomeUnrecoverable) {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}

func TestClearStaleGitLockRemovesOldLockOnly(t *testing.T) {
	repoRoot := t.TempDir()
	gitDir := filepath.Join(repoRoot, ".git")
	if err := os.MkdirAll(gitDir, 0755); err != nil {
		t.Fatal(err)
	}
	lockPath := filepath.Join(gitDir, "index.lock")
	if err := os.WriteFile(lockPath, []byte{}, 0644); err != nil {
		t.Fatal(err)
	}

	c := &Controller{RepoRoot: repoRoot}
	if c.clearStaleGitLock() {
		t.Fatal("expected a fresh lock to not be cleared")
	}

	old := time.Now().Add(-2 * staleLockAge)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}
	if !c.clearStaleGitLock() {
		t.Fatal("expected a stale lock to be cleared")
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Fatal("expected index.lock to be removed")
	}
}

func TestResetClearsCounters(t *testing.T) {
	c, _ := newTestController(t)
	c.MaxAttempts = 1
	if _, _, err := c.Handle("001-x", "json: cannot unmarshal"); err != nil {
		t.Fatal(err)
	}
	c.Reset("001-x")
	outcome, _, err := c.Handle("001-x", "json: cannot unmarshal")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeRecovered {
		t.Fatalf("outcome after reset = %s, want recovered", outcome)
	}
}
