package integrity

import (
	"os"
	"testing"
	"time"

	"github.com/wreckit/wreckit/internal/item"
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

func TestCheck_FlagsDanglingDependency(t *testing.T) {
	s := newTestStore(t)
	it, _ := item.New("002-b", "b", "", []string{"001-a"})
	if err := s.CreateItem(it); err != nil {
		t.Fatal(err)
	}

	problems, err := Check(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 1 || problems[0].ItemID != "002-b" {
		t.Fatalf("unexpected problems: %+v", problems)
	}
}

func TestCheck_NoProblemsWhenDependenciesResolve(t *testing.T) {
	s := newTestStore(t)
	a, _ := item.New("001-a", "a", "", nil)
	b, _ := item.New("002-b", "b", "", []string{"001-a"})
	if err := s.CreateItem(a); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateItem(b); err != nil {
		t.Fatal(err)
	}

	problems, err := Check(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 0 {
		t.Fatalf("expected no problems, got %+v", problems)
	}
}

func TestCheck_FlagsCorruptItem(t *testing.T) {
	s := newTestStore(t)
	it, _ := item.New("001-a", "a", "", nil)
	if err := s.CreateItem(it); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.ItemPath("001-a"), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	problems, err := Check(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 1 {
		t.Fatalf("expected 1 problem for corrupt item, got %+v", problems)
	}
}

func TestWatch_FlagsStaleNonDoneItems(t *testing.T) {
	s := newTestStore(t)
	it, _ := item.New("001-a", "a", "", nil)
	it.UpdatedAt = time.Now().Add(-time.Hour)
	if err := s.CreateItem(it); err != nil {
		t.Fatal(err)
	}

	stale, err := Watch(s, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0].ItemID != "001-a" {
		t.Fatalf("unexpected stale set: %+v", stale)
	}
}

func TestWatch_IgnoresDoneItems(t *testing.T) {
	s := newTestStore(t)
	it, _ := item.New("001-a", "a", "", nil)
	it.State = item.StateDone
	it.UpdatedAt = time.Now().Add(-time.Hour)
	if err := s.CreateItem(it); err != nil {
		t.Fatal(err)
	}

	stale, err := Watch(s, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Fatalf("expected no stale items, got %+v", stale)
	}
}

func TestCheck_EmptyWorkspace(t *testing.T) {
	s := newTestStore(t)
	problems, err := Check(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 0 {
		t.Fatalf("expected no problems in an empty workspace, got %+v", problems)
	}
}
