// Package phaserunner implements the Phase Runner: drives one item
// through exactly one phase of the fixed five-phase table, validating the
// transition, skipping on an already-present artifact unless forced,
// resolving the phase's tool allowlist, dispatching to the agent
// transport, and persisting the resulting state and timing record.
package phaserunner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wreckit/wreckit/internal/agent"
	"github.com/wreckit/wreckit/internal/config"
	"github.com/wreckit/wreckit/internal/contextgather"
	"github.com/wreckit/wreckit/internal/item"
	"github.com/wreckit/wreckit/internal/store"
	"github.com/wreckit/wreckit/internal/vcs"
)

// EventKind names a typed progress event emitted by Run.
type EventKind string

const (
	EventPhaseStarted   EventKind = "phase-started"
	EventPhaseSkipped   EventKind = "phase-skipped"
	EventPhaseCompleted EventKind = "phase-completed"
	EventPhaseFailed    EventKind = "phase-failed"
	EventToolMismatch   EventKind = "tool-mismatch-warning"
)

// Event is one entry in the progress stream the orchestrator and CLI
// render to the terminal.
type Event struct {
	Kind    EventKind
	ItemID  string
	Phase   item.Phase
	Message string
	Err     error
}

// Progress receives Events as Run makes progress. May be nil.
type Progress func(Event)

// Runner drives single-phase dispatches for items.
type Runner struct {
	Store     *store.Store
	Config    *config.Config
	Transport agent.Transport
	Progress  Progress

	// VCS and Host back the pr phase's branch push/PR open, the
	// complete phase's merge, and the plan phase's
	// write-set enforcement. Nil for tests that only exercise the
	// research/plan dispatch logic itself; a nil VCS skips the plan
	// phase's write-set check rather than failing it.
	VCS  *vcs.Git
	Host vcs.Host

	// Implement drives the implement phase's full story-by-story loop
	// required whenever Run is called with item.PhaseImplement.
	Implement Implementer

	// ProjectRoot is the repository root gathered for the research
	// phase's prompt. Empty skips context gathering entirely.
	ProjectRoot string
}

// Implementer drives an item through every pending story of its plan
// (internal/implement.Loop satisfies this). It is its own interface here
// so phaserunner doesn't import internal/implement and its wider
// dependency set just to dispatch one phase.
type Implementer interface {
	Run(ctx context.Context, it *item.Item) error
}

func (r *Runner) emit(ev Event) {
	if r.Progress != nil {
		r.Progress(ev)
	}
}

// Result is the outcome of one phase dispatch.
type Result struct {
	Skipped   bool
	Output    string
	SessionID string
}

// Run drives it through phase exactly once. force bypasses skip-on-artifact
// but never bypasses transition validity.
func (r *Runner) Run(ctx context.Context, it *item.Item, phase item.Phase, force bool) (*Result, error) {
	spec, ok := item.Spec(phase)
	if !ok {
		return nil, fmt.Errorf("phaserunner: unknown phase %q", phase)
	}

	if err := item.ValidateTransition(it, phase); err != nil {
		return nil, err
	}

	if !force && spec.SkipIfAtTarget && item.AtTarget(it, phase) {
		var expected []string
		if path := r.artifactPath(it.ID, phase); path != "" {
			expected = append(expected, path)
		}
		if phase == item.PhasePlan {
			expected = append(expected, r.Store.PlanPath(it.ID))
		}
		if len(store.CheckArtifacts(expected)) == 0 {
			r.emit(Event{Kind: EventPhaseSkipped, ItemID: it.ID, Phase: phase, Message: "artifact already at target state"})
			return &Result{Skipped: true}, nil
		}
	}

	if phase == item.PhaseImplement {
		return r.runImplement(ctx, it, spec)
	}

	allowTools := r.resolveAllowTools(spec, phase)

	r.emit(Event{Kind: EventPhaseStarted, ItemID: it.ID, Phase: phase})

	prompt, err := r.renderPrompt(it, phase)
	if err != nil {
		r.emit(Event{Kind: EventPhaseFailed, ItemID: it.ID, Phase: phase, Err: err})
		return nil, err
	}

	timeout := time.Duration(r.Config.TimeoutSeconds) * time.Second
	req := agent.Request{
		ItemID:           it.ID,
		Phase:            string(phase),
		Prompt:           prompt,
		IsFirstTurn:      true,
		AllowTools:       allowTools,
		WorkDir:          r.Store.Root,
		Env:              r.Config.Agent.Env.AsMap(),
		Timeout:          timeout,
		CompletionSignal: r.Config.Agent.CompletionSignal,
	}

	var before []string
	if phase == item.PhasePlan && r.VCS != nil {
		before, err = r.VCS.StatusPorcelain(ctx)
		if err != nil {
			r.emit(Event{Kind: EventPhaseFailed, ItemID: it.ID, Phase: phase, Err: err})
			return nil, fmt.Errorf("phaserunner: snapshotting working tree before plan dispatch: %w", err)
		}
	}

	start := time.Now()
	res, dispatchErr := r.Transport.Run(ctx, req)
	end := time.Now()

	timingErr := r.Store.AppendTimingEntry(it.ID, store.TimingEntry{
		Phase: string(phase), Start: start, End: end, Duration: end.Sub(start),
	})
	if timingErr != nil {
		fmt.Fprintf(os.Stderr, "phaserunner: warning: failed to record timing for %s: %v\n", it.ID, timingErr)
	}

	if dispatchErr != nil {
		r.emit(Event{Kind: EventPhaseFailed, ItemID: it.ID, Phase: phase, Err: dispatchErr})
		return nil, dispatchErr
	}
	if res.ExitCode != 0 {
		err := fmt.Errorf("phaserunner: phase %q exited %d", phase, res.ExitCode)
		r.emit(Event{Kind: EventPhaseFailed, ItemID: it.ID, Phase: phase, Err: err})
		return nil, err
	}

	if path := r.artifactPath(it.ID, phase); path != "" {
		if err := r.Store.WriteArtifact(path, res.Output); err != nil {
			r.emit(Event{Kind: EventPhaseFailed, ItemID: it.ID, Phase: phase, Err: err})
			return nil, err
		}
		missing := store.CheckArtifacts([]string{path})
		if len(missing) > 0 {
			err := fmt.Errorf("phaserunner: phase %q: missing artifact %s", phase, path)
			r.emit(Event{Kind: EventPhaseFailed, ItemID: it.ID, Phase: phase, Err: err})
			return nil, err
		}
	}

	switch phase {
	case item.PhasePlan:
		if err := r.handlePlan(it, res.Output); err != nil {
			r.emit(Event{Kind: EventPhaseFailed, ItemID: it.ID, Phase: phase, Err: err})
			return nil, err
		}
		if r.VCS != nil {
			if err := r.enforcePlanWriteSet(ctx, it.ID, before); err != nil {
				r.emit(Event{Kind: EventPhaseFailed, ItemID: it.ID, Phase: phase, Err: err})
				return nil, err
			}
		}
	case item.PhasePR:
		if err := r.handlePR(ctx, it, res.Output); err != nil {
			r.emit(Event{Kind: EventPhaseFailed, ItemID: it.ID, Phase: phase, Err: err})
			return nil, err
		}
	case item.PhaseComplete:
		if err := r.handleComplete(ctx, it); err != nil {
			r.emit(Event{Kind: EventPhaseFailed, ItemID: it.ID, Phase: phase, Err: err})
			return nil, err
		}
	}

	it.State = spec.TargetState
	it.UpdatedAt = time.Now()
	if spec.TargetState == item.StateDone {
		now := time.Now()
		it.CompletedAt = &now
	}
	if err := r.Store.WriteItem(it); err != nil {
		return nil, err
	}

	r.emit(Event{Kind: EventPhaseCompleted, ItemID: it.ID, Phase: phase, Message: res.Output})
	return &Result{Output: res.Output, SessionID: res.SessionID}, nil
}

// runImplement delegates the whole implement phase to the Implement
// Loop, which iterates every pending story itself. An unrecoverable
// failure leaves the item in implementing, so this never changes
// it.State away from its current value on error.
func (r *Runner) runImplement(ctx context.Context, it *item.Item, spec item.PhaseSpec) (*Result, error) {
	if r.Implement == nil {
		return nil, fmt.Errorf("phaserunner: implement phase requires an Implementer")
	}
	r.emit(Event{Kind: EventPhaseStarted, ItemID: it.ID, Phase: item.PhaseImplement})

	if err := r.Implement.Run(ctx, it); err != nil {
		r.emit(Event{Kind: EventPhaseFailed, ItemID: it.ID, Phase: item.PhaseImplement, Err: err})
		return nil, err
	}

	it.State = spec.TargetState
	it.UpdatedAt = time.Now()
	if err := r.Store.WriteItem(it); err != nil {
		return nil, err
	}
	r.emit(Event{Kind: EventPhaseCompleted, ItemID: it.ID, Phase: item.PhaseImplement})
	return &Result{}, nil
}

// resolveAllowTools merges the phase's fixed allowlist with any skill
// tool requests declared in config, warning (non-fatal) on a tool
// request outside the phase's allowlist.
func (r *Runner) resolveAllowTools(spec item.PhaseSpec, phase item.Phase) []string {
	allowed := make(map[string]bool, len(spec.AllowTools))
	tools := append([]string{}, spec.AllowTools...)
	for _, t := range spec.AllowTools {
		allowed[t] = true
	}

	if r.Config == nil {
		return tools
	}
	for _, skill := range r.Config.SkillsFor(string(phase)) {
		for _, t := range skill.Tools {
			if !allowed[t] {
				r.emit(Event{
					Kind:    EventToolMismatch,
					Phase:   phase,
					Message: fmt.Sprintf("skill %q requested tool %q outside phase %q's allowlist", skill.Name, t, phase),
				})
				continue
			}
			tools = append(tools, t)
		}
	}
	return tools
}

func (r *Runner) renderPrompt(it *item.Item, phase item.Phase) (string, error) {
	data, err := os.ReadFile(r.Store.PromptPath(string(phase)))
	if err != nil {
		return "", fmt.Errorf("phaserunner: reading prompt template for %q: %w", phase, err)
	}
	vars := map[string]string{
		"ITEM_ID":  it.ID,
		"TITLE":    it.Title,
		"OVERVIEW": it.Overview,
		"STATE":    string(it.State),
	}
	if it.Branch != nil {
		vars["BRANCH"] = *it.Branch
	}
	if phase == item.PhaseResearch && r.ProjectRoot != "" {
		pc, err := contextgather.Gather(r.ProjectRoot)
		if err != nil {
			return "", fmt.Errorf("phaserunner: gathering project context: %w", err)
		}
		vars["PROJECT_CONTEXT"] = pc.Render()
	}
	return agent.ExpandVars(string(data), vars), nil
}

// artifactPath returns the plain-text artifact phase writes, or "" if the
// phase has no single-file artifact (implement writes through
// internal/implement; complete writes through internal/vcs).
func (r *Runner) artifactPath(itemID string, phase item.Phase) string {
	switch phase {
	case item.PhaseResearch:
		return r.Store.ResearchPath(itemID)
	case item.PhasePlan:
		return r.Store.PlanMDPath(itemID)
	case item.PhasePR:
		return r.Store.PRPath(itemID)
	default:
		return ""
	}
}

// enforcePlanWriteSet rejects the plan phase if the agent turn touched
// any file outside plan.md/prd.json, comparing a working-tree snapshot
// taken before dispatch against one taken after plan.md and prd.json
// were both written.
func (r *Runner) enforcePlanWriteSet(ctx context.Context, itemID string, before []string) error {
	after, err := r.VCS.StatusPorcelain(ctx)
	if err != nil {
		return fmt.Errorf("phaserunner: snapshotting working tree after plan dispatch: %w", err)
	}

	beforeSet := make(map[string]bool, len(before))
	for _, p := range before {
		beforeSet[p] = true
	}

	allowed := make(map[string]bool, 2)
	for _, abs := range []string{r.Store.PlanMDPath(itemID), r.Store.PlanPath(itemID)} {
		rel, err := filepath.Rel(r.VCS.Root, abs)
		if err != nil {
			return fmt.Errorf("phaserunner: resolving plan artifact path: %w", err)
		}
		allowed[filepath.ToSlash(rel)] = true
	}

	for _, p := range after {
		if beforeSet[p] {
			continue
		}
		if !allowed[p] {
			return fmt.Errorf("phaserunner: plan phase touched %q outside plan.md/prd.json", p)
		}
	}
	return nil
}
