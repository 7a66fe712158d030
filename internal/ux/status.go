package ux

import (
	"fmt"

	"github.com/wreckit/wreckit/internal/item"
	"github.com/wreckit/wreckit/internal/plan"
	"github.com/wreckit/wreckit/internal/store"
)

// RenderStatus prints the full status display for one item. doc and
// timing are nil/empty whenever the item hasn't reached the plan phase
// or dispatched any phase yet.
func RenderStatus(it *item.Item, doc *plan.Document, timing []store.TimingEntry) {
	fmt.Printf("%sItem:%s    %s\n", Bold, Reset, it.ID)
	fmt.Printf("%sTitle:%s   %s\n", Bold, Reset, it.Title)
	if it.State == item.StateDone {
		fmt.Printf("%sState:%s   %s%sdone%s\n", Bold, Reset, Green, Bold, Reset)
	} else {
		fmt.Printf("%sState:%s   %s\n", Bold, Reset, it.State)
		if phase, ok := item.NextPhase(it.State); ok {
			fmt.Printf("%sNext:%s    %s\n", Bold, Reset, phase)
		}
	}
	if it.Branch != nil {
		fmt.Printf("%sBranch:%s  %s\n", Bold, Reset, *it.Branch)
	}
	if it.PRURL != nil {
		fmt.Printf("%sPR:%s      %s\n", Bold, Reset, *it.PRURL)
	}
	if it.LastError != nil {
		fmt.Printf("%sError:%s   %s%s%s\n", Bold, Reset, Red, *it.LastError, Reset)
	}

	fmt.Printf("\n%sTiming:%s\n", Bold, Reset)
	if len(timing) == 0 {
		fmt.Printf("  %s(none yet)%s\n", Dim, Reset)
	} else {
		for _, e := range timing {
			fmt.Printf("  %s%-10s%s %s\n", Dim, e.Phase, Reset, e.Duration)
		}
	}

	if doc == nil {
		return
	}
	fmt.Printf("\n%sStories:%s\n", Bold, Reset)
	for _, s := range doc.UserStories {
		marker := fmt.Sprintf("%s○%s", Yellow, Reset)
		if s.Status == plan.StatusDone {
			marker = fmt.Sprintf("%s✓%s", Green, Reset)
		}
		fmt.Printf("  %s %s  %-10s %s\n", marker, s.ID, s.Status, s.Title)
	}
	fmt.Println()
}
