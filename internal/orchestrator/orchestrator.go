// Package orchestrator implements the Orchestrator: runs many
// items toward completion respecting depends_on, in either sequential
// or bounded-parallel mode, emitting a typed progress event stream.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wreckit/wreckit/internal/implement"
	"github.com/wreckit/wreckit/internal/item"
	"github.com/wreckit/wreckit/internal/phaserunner"
	"github.com/wreckit/wreckit/internal/store"
	"golang.org/x/sync/errgroup"
)

// EventKind names a typed event in the orchestrator's progress stream.
// phase-started/phase-completed/phase-failed and story-changed/story-done
// are re-bubbled from the Phase Runner and Implement Loop; iteration and
// error are the orchestrator's own.
type EventKind string

const (
	EventPhaseStarted      EventKind = "phase-started"
	EventPhaseCompleted    EventKind = "phase-completed"
	EventPhaseFailed       EventKind = "phase-failed"
	EventStoryChanged      EventKind = "story-changed"
	EventStoryDone         EventKind = "story-done"
	EventIteration         EventKind = "iteration"
	EventAssistantOutput   EventKind = "assistant-output-chunk"
	EventError             EventKind = "error"
)

// Event is one entry of the orchestrator's progress stream.
type Event struct {
	Kind    EventKind
	ItemID  string
	Phase   item.Phase
	Message string
	Err     error
}

// Progress receives Events as the orchestrator makes progress. May be nil.
type Progress func(Event)

// Orchestrator drives many items toward completion via repeated
// Phase Runner calls.
type Orchestrator struct {
	Store        *store.Store
	PhaseRunner  *phaserunner.Runner
	Progress     Progress
	PollInterval time.Duration // bounded wait when no runnable item exists yet; default 2s
}

func (o *Orchestrator) emit(ev Event) {
	if o.Progress != nil {
		o.Progress(ev)
	}
}

func (o *Orchestrator) pollInterval() time.Duration {
	if o.PollInterval > 0 {
		return o.PollInterval
	}
	return 2 * time.Second
}

// bridge wires the Phase Runner's and Implement Loop's own Progress
// callbacks into the orchestrator's event stream.
func (o *Orchestrator) bridge() {
	if o.PhaseRunner != nil {
		o.PhaseRunner.Progress = func(ev phaserunner.Event) {
			o.emit(Event{Kind: EventKind(ev.Kind), ItemID: ev.ItemID, Phase: ev.Phase, Message: ev.Message, Err: ev.Err})
		}
		if loop, ok := o.PhaseRunner.Implement.(*implement.Loop); ok {
			loop.Progress = func(ev implement.Event) {
				msg := ev.Message
				if ev.StoryID != "" {
					msg = ev.StoryID + ": " + msg
				}
				o.emit(Event{Kind: EventKind(ev.Kind), ItemID: ev.ItemID, Message: msg})
			}
		}
	}
}

func doneSet(items []*item.Item) map[string]bool {
	done := make(map[string]bool, len(items))
	for _, it := range items {
		if it.State == item.StateDone {
			done[it.ID] = true
		}
	}
	return done
}

// nextPhaseForItem resolves the phase table's one genuine ambiguity: the
// implement phase's target state equals one of its own start states, so
// a plain state-driven lookup would pick "implement" forever. Once the
// plan has no pending stories left, the next applicable phase is pr.
func nextPhaseForItem(s *store.Store, it *item.Item) (item.Phase, bool, error) {
	if it.State == item.StateImplementing {
		doc, err := s.ReadPlan(it.ID)
		if err != nil {
			var nf *store.ErrNotFound
			if errors.As(err, &nf) {
				return item.PhaseImplement, true, nil
			}
			return "", false, err
		}
		if _, ok := doc.NextPending(); ok {
			return item.PhaseImplement, true, nil
		}
		return item.PhasePR, true, nil
	}
	p, ok := item.NextPhase(it.State)
	return p, ok, nil
}

// AdvanceOne runs it through its single next applicable phase. Returns
// true once it has reached item.StateDone.
func (o *Orchestrator) AdvanceOne(ctx context.Context, it *item.Item) (bool, error) {
	phase, ok, err := nextPhaseForItem(o.Store, it)
	if err != nil {
		return false, err
	}
	if !ok {
		return it.State == item.StateDone, nil
	}
	if _, err := o.PhaseRunner.Run(ctx, it, phase, false); err != nil {
		return false, err
	}
	return it.State == item.StateDone, nil
}

// RunSequential repeatedly rescans items and advances the lowest-id
// runnable one by a single phase, terminating when none remain. An item
// that fails is excluded from further rounds so the loop still
// terminates.
func (o *Orchestrator) RunSequential(ctx context.Context) error {
	o.bridge()
	failed := make(map[string]bool)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		items, err := o.Store.ListItems()
		if err != nil {
			return err
		}
		done := doneSet(items)

		var next *item.Item
		for _, it := range items {
			if failed[it.ID] {
				continue
			}
			if item.Runnable(it, done) {
				next = it
				break
			}
		}
		if next == nil {
			return nil
		}

		o.emit(Event{Kind: EventIteration, ItemID: next.ID})
		if _, err := o.AdvanceOne(ctx, next); err != nil {
			failed[next.ID] = true
			o.emit(Event{Kind: EventError, ItemID: next.ID, Err: err})
		}
	}
}

// coordinator holds the mutable remaining/done sets shared by parallel
// workers, guarded by its own mutex.
type coordinator struct {
	mu        sync.Mutex
	remaining map[string]*item.Item
	done      map[string]bool
}

func newCoordinator(items []*item.Item) *coordinator {
	c := &coordinator{remaining: make(map[string]*item.Item), done: make(map[string]bool)}
	for _, it := range items {
		if it.State == item.StateDone {
			c.done[it.ID] = true
		} else {
			c.remaining[it.ID] = it
		}
	}
	return c
}

// claim removes and returns the lowest-id runnable item, or reports
// exhausted=true once nothing remains to claim.
func (c *coordinator) claim() (it *item.Item, exhausted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.remaining) == 0 {
		return nil, true
	}
	var candidates []*item.Item
	for _, it := range c.remaining {
		if item.Runnable(it, c.done) {
			candidates = append(candidates, it)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	chosen := candidates[0]
	delete(c.remaining, chosen.ID)
	return chosen, false
}

// finish records it as done once it reached item.StateDone. An item that
// failed mid-phase is simply dropped; it is not retried at this level.
func (c *coordinator) finish(it *item.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it.State == item.StateDone {
		c.done[it.ID] = true
	}
}

// RunParallel runs n ≥ 2 workers, each claiming one item at a time and
// driving it through repeated phase advances until terminal or failing,
// before asking the coordinator for the next item.
func (o *Orchestrator) RunParallel(ctx context.Context, n int) error {
	if n < 2 {
		return fmt.Errorf("orchestrator: parallel mode requires n >= 2, got %d", n)
	}
	o.bridge()

	items, err := o.Store.ListItems()
	if err != nil {
		return err
	}
	coord := newCoordinator(items)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			o.runWorker(gctx, coord)
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) runWorker(ctx context.Context, coord *coordinator) {
	for {
		if ctx.Err() != nil {
			return
		}
		it, exhausted := coord.claim()
		if it == nil {
			if exhausted {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.pollInterval()):
			}
			continue
		}

		o.emit(Event{Kind: EventIteration, ItemID: it.ID})
		for it.State != item.StateDone {
			if ctx.Err() != nil {
				break
			}
			done, err := o.AdvanceOne(ctx, it)
			if err != nil {
				o.emit(Event{Kind: EventError, ItemID: it.ID, Err: err})
				break
			}
			if done {
				break
			}
		}
		coord.finish(it)
	}
}

// DryRunEntry describes the phase that would run for one item, without
// invoking any agent or writing any state.
type DryRunEntry struct {
	ItemID string
	Phase  item.Phase
	Note   string
}

// Plan computes the dry-run plan for every item currently in the store.
func (o *Orchestrator) Plan() ([]DryRunEntry, error) {
	items, err := o.Store.ListItems()
	if err != nil {
		return nil, err
	}
	done := doneSet(items)

	entries := make([]DryRunEntry, 0, len(items))
	for _, it := range items {
		if it.State == item.StateDone {
			entries = append(entries, DryRunEntry{ItemID: it.ID, Note: "done"})
			continue
		}
		if !item.Runnable(it, done) {
			entries = append(entries, DryRunEntry{ItemID: it.ID, Note: "blocked on dependencies"})
			continue
		}
		phase, ok, err := nextPhaseForItem(o.Store, it)
		if err != nil {
			return nil, err
		}
		if !ok {
			entries = append(entries, DryRunEntry{ItemID: it.ID, Note: "no applicable phase"})
			continue
		}
		entries = append(entries, DryRunEntry{ItemID: it.ID, Phase: phase})
	}
	return entries, nil
}
