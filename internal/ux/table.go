package ux

import (
	"io"

	"github.com/aquasecurity/table"
	"github.com/wreckit/wreckit/internal/item"
)

// RenderItemTable renders the `list` command's item overview as an
// aligned table: id, state, next runnable phase, blocked, title.
func RenderItemTable(w io.Writer, items []*item.Item, done map[string]bool) {
	t := table.New(w)
	t.SetHeaders("ID", "STATE", "NEXT", "BLOCKED", "TITLE")

	for _, it := range items {
		next := "-"
		if it.State != item.StateDone {
			if phase, ok := item.NextPhase(it.State); ok {
				next = string(phase)
			}
		}
		blocked := "no"
		if it.State != item.StateDone && !item.Runnable(it, done) {
			blocked = "yes"
		}
		t.AddRow(it.ID, string(it.State), next, blocked, it.Title)
	}

	t.Render()
}
