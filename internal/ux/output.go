package ux

import (
	"fmt"
	"strings"
	"time"

	"github.com/wreckit/wreckit/internal/item"
)

// ANSI color helpers
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// PhaseHeader prints a timestamped phase header for one item.
func PhaseHeader(itemID string, phase item.Phase) {
	fmt.Printf("\n%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
	fmt.Printf("%s[%s]%s  %s%s: %s%s\n",
		Dim, timestamp(), Reset, Bold, itemID, phase, Reset)
	fmt.Printf("%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
}

// PhaseComplete prints a phase completion message.
func PhaseComplete(itemID string, phase item.Phase, duration time.Duration) {
	m := int(duration.Minutes())
	s := int(duration.Seconds()) % 60
	fmt.Printf("%s[%s]%s  %s✓ %s: %s complete (%dm %02ds)%s\n",
		Dim, timestamp(), Reset, Green, itemID, phase, m, s, Reset)
}

// PhaseFail prints a phase failure message.
func PhaseFail(itemID string, phase item.Phase, errMsg string) {
	fmt.Printf("%s[%s]%s  %s✗ %s: %s failed: %s%s\n",
		Dim, timestamp(), Reset, Red, itemID, phase, errMsg, Reset)
}

// PhaseSkip prints a phase skip message (artifact already at target state).
func PhaseSkip(itemID string, phase item.Phase) {
	fmt.Printf("%s[%s]%s  %s– %s: %s skipped (already at target state)%s\n",
		Dim, timestamp(), Reset, Dim, itemID, phase, Reset)
}

// ResumeHint prints a resume command hint.
func ResumeHint(itemID string) {
	fmt.Printf("\n%sResume:%s wreckit run %s\n", Yellow, Reset, itemID)
}

// ToolMismatch prints a non-fatal skill/tool-allowlist warning.
func ToolMismatch(msg string) {
	fmt.Printf("  %s⚠ %s%s\n", Yellow, msg, Reset)
}

// AssistantChunk prints one streamed chunk of assistant output inline.
func AssistantChunk(itemID, text string) {
	summary := strings.TrimSpace(text)
	if len(summary) > 200 {
		summary = summary[:197] + "..."
	}
	if summary == "" {
		return
	}
	fmt.Printf("  %s%s:%s %s\n", Dim, itemID, Reset, summary)
}

// StoryDone prints a completed-story message during the implement phase.
func StoryDone(itemID, storyID, title string) {
	fmt.Printf("  %s✓ %s / %s: %s%s\n", Green, itemID, storyID, title, Reset)
}

// Success prints a final success message once every runnable item finished.
func Success(total int) {
	fmt.Printf("\n%s[%s]%s  %s%s══ %d item(s) complete ══%s\n\n",
		Dim, timestamp(), Reset, Bold, Green, total, Reset)
}
