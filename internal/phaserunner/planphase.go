package phaserunner

import (
	"encoding/json"
	"fmt"

	"github.com/wreckit/wreckit/internal/fileblocks"
	"github.com/wreckit/wreckit/internal/item"
	"github.com/wreckit/wreckit/internal/plan"
)

// handlePlan pulls the structured story list out of the plan phase's
// markdown output and persists it as the item's plan document. plan.md
// itself was already written by the generic artifact step before this
// runs.
func (r *Runner) handlePlan(it *item.Item, output string) error {
	raw, ok := fileblocks.ExtractFenced(output, "json")
	if !ok {
		return fmt.Errorf("phaserunner: plan phase output has no ```json block with the story list")
	}

	var doc plan.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("phaserunner: plan phase: parsing story list: %w", err)
	}
	if doc.ID == "" {
		doc.ID = it.ID
	}
	return r.Store.WritePlan(it.ID, &doc)
}
