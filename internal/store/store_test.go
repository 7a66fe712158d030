package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wreckit/wreckit/internal/item"
	"github.com/wreckit/wreckit/internal/plan"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := Open(t.TempDir())
	if err := s.EnsureWorkspace(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCreateReadItem(t *testing.T) {
	s := newTestStore(t)
	it, err := item.New("001-add-flag", "Add flag", "overview", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreateItem(it); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadItem("001-add-flag")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Add flag" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestReadItemNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReadItem("001-missing")
	var nf *ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadItemCorruption(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(s.ItemDir("001-bad"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.ItemPath("001-bad"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := s.ReadItem("001-bad")
	var corrupt *ErrCorruption
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected ErrCorruption, got %v", err)
	}
}

func TestWriteItemRoundTrip(t *testing.T) {
	s := newTestStore(t)
	it, _ := item.New("001-x", "X", "", nil)
	if err := s.CreateItem(it); err != nil {
		t.Fatal(err)
	}
	read1, err := s.ReadItem("001-x")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.WriteItem(read1); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(s.ItemPath("001-x"))
	if err != nil {
		t.Fatal(err)
	}
	read2, err := s.ReadItem("001-x")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.WriteItem(read2); err != nil {
		t.Fatal(err)
	}
	after, err := os.ReadFile(s.ItemPath("001-x"))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("write_item(read_item(id)) was not a no-op on disk:\nbefore=%s\nafter=%s", before, after)
	}
}

func TestListItemsSortedByID(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"003-c", "001-a", "002-b"} {
		it, _ := item.New(id, id, "", nil)
		if err := s.CreateItem(it); err != nil {
			t.Fatal(err)
		}
	}
	items, err := s.ListItems()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"001-a", "002-b", "003-c"}
	for i, w := range want {
		if items[i].ID != w {
			t.Fatalf("items[%d].ID = %s, want %s", i, items[i].ID, w)
		}
	}
}

func TestWriteReadPlan(t *testing.T) {
	s := newTestStore(t)
	doc := &plan.Document{ID: "001-x", BranchName: "wreckit/001-x", UserStories: []plan.Story{
		{ID: "US-001", Status: plan.StatusPending, Priority: 1},
	}}
	if err := os.MkdirAll(s.ItemDir("001-x"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := s.WritePlan("001-x", doc); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadPlan("001-x")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.UserStories) != 1 || got.UserStories[0].ID != "US-001" {
		t.Fatalf("plan round-trip mismatch: %+v", got)
	}
}

func TestAppendHealingLog(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		err := s.AppendHealingLog(HealingLogEntry{
			ItemID:         "001-x",
			Classification: "git-lock",
			FinalOutcome:   "recovered",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	entries, err := s.ReadHealingLog()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 healing log entries, got %d", len(entries))
	}
}

func TestOrphanedTempSwept(t *testing.T) {
	s := newTestStore(t)
	it, _ := item.New("001-x", "X", "", nil)
	if err := s.CreateItem(it); err != nil {
		t.Fatal(err)
	}
	// Simulate a crash mid-write: leave an orphaned temp file behind.
	orphan := filepath.Join(s.ItemDir("001-x"), "item.json.tmp-deadbeef")
	if err := os.WriteFile(orphan, []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteItem(it); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatal("orphaned temp file was not swept on next write")
	}
}
