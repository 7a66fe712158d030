// Package doctor implements the `doctor` command: gathers an item's
// failure context from its store artifacts and forwards it to the agent
// transport for a diagnosis turn.
package doctor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wreckit/wreckit/internal/agent"
	"github.com/wreckit/wreckit/internal/config"
	"github.com/wreckit/wreckit/internal/item"
	"github.com/wreckit/wreckit/internal/store"
)

const diagPromptTemplate = `You are diagnosing a failed wreckit item. Analyze the context below and provide a concise diagnosis.

## Item
%s

## Next Phase
%s

## Recorded Error
%s
%s%s
Instructions:
1. Identify what went wrong from the recorded error and history below.
2. Classify this as a WORKFLOW problem (config, phase ordering, missing artifacts) or a CODE problem (the task the agent was working on).
3. Suggest specific fixes.
4. Recommend the next command to run:
   - wreckit phase <phase> <id> --force   (re-run the failed phase)
   - wreckit rollback <id>                (roll back to implementing and retry)
   - Fix the underlying issue first, then retry.

Be direct and concise. Focus on actionable advice.`

// Run gathers diagnostic context for itemID and dispatches one agent
// turn to analyze it, returning the agent's diagnosis text. It returns
// ("", nil) rather than an error when the item has no recorded failure,
// since that is a normal "nothing to diagnose" outcome, not a fault.
func Run(ctx context.Context, s *store.Store, cfg *config.Config, transport agent.Transport, itemID string) (string, error) {
	it, err := s.ReadItem(itemID)
	if err != nil {
		return "", err
	}
	if it.LastError == nil {
		return "", nil
	}

	phase, phaseNote := nextPhaseFor(s, it)
	diagText := buildPrompt(it, phase, phaseNote, gatherTiming(s, itemID), gatherHealing(s, itemID))

	req := agent.Request{
		ItemID:      itemID,
		Phase:       "doctor",
		Prompt:      diagText,
		IsFirstTurn: true,
		WorkDir:     s.Root,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
	res, err := transport.Run(ctx, req)
	if err != nil {
		return "", fmt.Errorf("doctor: dispatching diagnosis turn: %w", err)
	}
	return res.Output, nil
}

// nextPhaseFor mirrors the orchestrator's implementing-state resolution
// (reading the plan's pending stories) without importing
// internal/orchestrator, which pulls in the full phase-runner stack the
// doctor command never otherwise needs.
func nextPhaseFor(s *store.Store, it *item.Item) (item.Phase, string) {
	if it.State == item.StateImplementing {
		doc, err := s.ReadPlan(it.ID)
		if err == nil {
			if _, ok := doc.NextPending(); !ok {
				return item.PhasePR, ""
			}
		}
		return item.PhaseImplement, ""
	}
	phase, ok := item.NextPhase(it.State)
	if !ok {
		return "", "(item has no applicable next phase)"
	}
	return phase, ""
}

func buildPrompt(it *item.Item, phase item.Phase, phaseNote, timing, healing string) string {
	itemSummary := fmt.Sprintf("id: %s\ntitle: %s\nstate: %s", it.ID, it.Title, it.State)

	phaseSummary := phaseNote
	if phaseSummary == "" {
		if spec, ok := item.Spec(phase); ok {
			phaseSummary = fmt.Sprintf("phase: %s\nstart states: %v\ntarget state: %s\nallowed tools: %s",
				spec.Phase, spec.StartStates, spec.TargetState, strings.Join(spec.AllowTools, ", "))
		}
	}

	var timingSection, healingSection string
	if timing != "" {
		timingSection = fmt.Sprintf("\n## Timing History\n%s\n", timing)
	}
	if healing != "" {
		healingSection = fmt.Sprintf("\n## Healing Log\n%s\n", healing)
	}

	return fmt.Sprintf(diagPromptTemplate, itemSummary, phaseSummary, *it.LastError, timingSection, healingSection)
}

func gatherTiming(s *store.Store, itemID string) string {
	entries, err := s.ReadTiming(itemID)
	if err != nil || len(entries) == 0 {
		return ""
	}
	var parts []string
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s started %s, duration %s", e.Phase, e.Start.Format("15:04:05"), e.Duration))
	}
	return strings.Join(parts, "\n")
}

func gatherHealing(s *store.Store, itemID string) string {
	entries, err := s.ReadHealingLog()
	if err != nil || len(entries) == 0 {
		return ""
	}
	var parts []string
	for _, e := range entries {
		if e.ItemID != itemID {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s (%s) -> %s", e.Timestamp.Format("15:04:05"), e.Classification, e.Pattern, e.FinalOutcome))
	}
	return strings.Join(parts, "\n")
}
