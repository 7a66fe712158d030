// Package integrity implements the `check-integrity` and `watchdog`
// read-only collaborators: the former walks every item directory
// re-reading item.json/prd.json through the Store and cross-checking
// depends_on against the live item set; the latter flags items whose
// state hasn't advanced in longer than a configured window.
package integrity

import (
	"fmt"
	"os"
	"time"

	"github.com/wreckit/wreckit/internal/item"
	"github.com/wreckit/wreckit/internal/store"
)

// Problem is one integrity finding.
type Problem struct {
	ItemID string
	Detail string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.ItemID, p.Detail)
}

// Check walks every item directory under the store, surfacing
// not-found/corruption errors and dangling depends_on references.
func Check(s *store.Store) ([]Problem, error) {
	entries, err := os.ReadDir(s.ItemsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	ids := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids[e.Name()] = true
		}
	}

	var problems []Problem
	for id := range ids {
		it, err := s.ReadItem(id)
		if err != nil {
			problems = append(problems, Problem{ItemID: id, Detail: err.Error()})
			continue
		}
		if _, err := s.ReadPlan(id); err != nil {
			if _, ok := err.(*store.ErrNotFound); !ok {
				problems = append(problems, Problem{ItemID: id, Detail: "prd.json: " + err.Error()})
			}
		}
		for _, dep := range it.DependsOn {
			if !ids[dep] {
				problems = append(problems, Problem{ItemID: id, Detail: fmt.Sprintf("depends_on %q: no such item", dep)})
			}
		}
	}
	return problems, nil
}

// Stale is one item whose state hasn't advanced within the watchdog window.
type Stale struct {
	ItemID     string
	Age        time.Duration
	LastUpdate time.Time
}

// Watch reports every non-done item whose updated_at is older than window.
func Watch(s *store.Store, window time.Duration) ([]Stale, error) {
	items, err := s.ListItems()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var stale []Stale
	for _, it := range items {
		if it.State == item.StateDone {
			continue
		}
		age := now.Sub(it.UpdatedAt)
		if age >= window {
			stale = append(stale, Stale{ItemID: it.ID, Age: age, LastUpdate: it.UpdatedAt})
		}
	}
	return stale, nil
}
