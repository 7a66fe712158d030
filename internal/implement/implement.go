// Package implement drives the Implement Loop: story-by-story
// dispatch of the agent under the implement tool allowlist, with scope
// enforcement, a secret-pattern scan, and healing delegation on failure.
package implement

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/wreckit/wreckit/internal/agent"
	"github.com/wreckit/wreckit/internal/config"
	"github.com/wreckit/wreckit/internal/healing"
	"github.com/wreckit/wreckit/internal/item"
	"github.com/wreckit/wreckit/internal/plan"
	"github.com/wreckit/wreckit/internal/store"
	"github.com/wreckit/wreckit/internal/vcs"
)

// EventKind names a progress event the Loop emits while iterating stories.
type EventKind string

const (
	EventStoryChanged EventKind = "story-changed"
	EventStoryDone    EventKind = "story-done"
	EventHealing      EventKind = "healing"
)

// Event is one entry in the Loop's progress stream.
type Event struct {
	Kind    EventKind
	ItemID  string
	StoryID string
	Message string
}

// Progress receives Events as the Loop makes progress. May be nil.
type Progress func(Event)

// Loop iterates the pending stories of one item's plan until none remain
// or an unrecoverable failure stops it.
type Loop struct {
	Store     *store.Store
	VCS       *vcs.Git
	Transport agent.Transport
	Config    *config.Config
	Healing   *healing.Controller
	Progress  Progress

	// SecretPatterns overrides the default secret-like lexical scan.
	SecretPatterns []*regexp.Regexp
}

func (l *Loop) emit(ev Event) {
	if l.Progress != nil {
		l.Progress(ev)
	}
}

var defaultSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`-----BEGIN (RSA|EC|OPENSSH|DSA|PGP) PRIVATE KEY-----`),
	regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
	regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`),
	regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,}\b`),
	regexp.MustCompile(`(?i)password\s*[:=]\s*['"][^'"\s]{6,}['"]`),
}

func (l *Loop) secretPatterns() []*regexp.Regexp {
	if len(l.SecretPatterns) > 0 {
		return l.SecretPatterns
	}
	return defaultSecretPatterns
}

// Run drives it's plan to completion, re-reading the plan and picking
// the next pending story each iteration, so a crash mid-story resumes at
// the same story on re-entry.
func (l *Loop) Run(ctx context.Context, it *item.Item) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, err := l.Store.ReadPlan(it.ID)
		if err != nil {
			return fmt.Errorf("implement: reading plan for %s: %w", it.ID, err)
		}
		story, ok := doc.NextPending()
		if !ok {
			return nil
		}

		l.emit(Event{Kind: EventStoryChanged, ItemID: it.ID, StoryID: story.ID})
		if err := l.runStory(ctx, it, doc, story); err != nil {
			return err
		}
	}
}

// runStory drives one story through retries until it succeeds or the
// Healing Controller reports it unrecoverable.
func (l *Loop) runStory(ctx context.Context, it *item.Item, doc *plan.Document, story plan.Story) error {
	before, err := l.VCS.StatusPorcelain(ctx)
	if err != nil {
		return fmt.Errorf("implement: snapshotting working tree: %w", err)
	}
	beforeSet := toSet(before)

	guidance := ""
	for {
		failureText, output, dispatchErr := l.dispatchStory(ctx, it, story, guidance)
		if dispatchErr != nil {
			return dispatchErr
		}

		if failureText == "" {
			after, err := l.VCS.StatusPorcelain(ctx)
			if err != nil {
				return fmt.Errorf("implement: checking working tree: %w", err)
			}
			touched := newlyTouched(beforeSet, after)
			if verr := l.validateStory(story, touched, output); verr != nil {
				failureText = verr.Error()
			}
		}

		if failureText == "" {
			if err := doc.MarkDone(story.ID, ""); err != nil {
				return err
			}
			if err := l.Store.WritePlan(it.ID, doc); err != nil {
				return err
			}
			if l.Healing != nil {
				l.Healing.Reset(it.ID)
			}
			l.emit(Event{Kind: EventStoryDone, ItemID: it.ID, StoryID: story.ID})
			return nil
		}

		if l.Healing == nil {
			return fmt.Errorf("implement: story %s failed: %s", story.ID, failureText)
		}
		outcome, nextGuidance, herr := l.Healing.Handle(it.ID, failureText)
		if herr != nil {
			return herr
		}
		l.emit(Event{Kind: EventHealing, ItemID: it.ID, StoryID: story.ID, Message: fmt.Sprintf("%s: %s", outcome, failureText)})
		if outcome == healing.OutcomeUnrecoverable {
			return fmt.Errorf("implement: story %s: unrecoverable: %s", story.ID, failureText)
		}
		guidance = nextGuidance
	}
}

// dispatchStory renders the prompt and invokes the agent once, returning
// a non-empty failureText on a dispatch-level failure (err or non-zero
// exit) so the caller can hand it to the Healing Controller.
func (l *Loop) dispatchStory(ctx context.Context, it *item.Item, story plan.Story, guidance string) (failureText, output string, err error) {
	spec, ok := item.Spec(item.PhaseImplement)
	if !ok {
		return "", "", fmt.Errorf("implement: phase table has no implement entry")
	}
	prompt := l.renderPrompt(it, story, guidance)

	req := agent.Request{
		ItemID:           it.ID,
		Phase:            string(item.PhaseImplement),
		Prompt:           prompt,
		IsFirstTurn:      true,
		AllowTools:       spec.AllowTools,
		WorkDir:          l.VCS.Root,
		Env:              l.Config.Agent.Env.AsMap(),
		Timeout:          time.Duration(l.Config.TimeoutSeconds) * time.Second,
		CompletionSignal: l.Config.Agent.CompletionSignal,
	}
	res, dispatchErr := l.Transport.Run(ctx, req)
	if dispatchErr != nil {
		return dispatchErr.Error(), "", nil
	}
	if res.ExitCode != 0 {
		return fmt.Sprintf("implement: story %s exited %d: %s", story.ID, res.ExitCode, res.Output), res.Output, nil
	}
	return "", res.Output, nil
}

func (l *Loop) renderPrompt(it *item.Item, story plan.Story, guidance string) string {
	data, err := os.ReadFile(l.Store.PromptPath(string(item.PhaseImplement)))
	template := string(data)
	if err != nil {
		template = "Implement story ${STORY_ID}: ${STORY_TITLE}\n\nAcceptance criteria:\n${STORY_CRITERIA}"
	}
	vars := map[string]string{
		"ITEM_ID":        it.ID,
		"TITLE":          it.Title,
		"STORY_ID":       story.ID,
		"STORY_TITLE":    story.Title,
		"STORY_CRITERIA": strings.Join(story.AcceptanceCriteria, "\n"),
	}
	prompt := agent.ExpandVars(template, vars)
	if guidance != "" {
		prompt += "\n\n" + guidance
	}
	return prompt
}

// validateStory checks a story's outcome before it's marked done: at
// least one file touched, touched files within the story's declared
// scope (if any), and no secret-like strings in the touched files or
// agent output.
func (l *Loop) validateStory(story plan.Story, touched []string, output string) error {
	if len(touched) == 0 {
		return fmt.Errorf("story-validation: story %s: agent did not modify any file", story.ID)
	}
	if len(story.Scope) > 0 {
		for _, t := range touched {
			if !inScope(t, story.Scope) {
				return fmt.Errorf("story-validation: story %s: touched %q outside declared scope %v", story.ID, t, story.Scope)
			}
		}
	}
	for _, pat := range l.secretPatterns() {
		if pat.MatchString(output) {
			return fmt.Errorf("story-validation: story %s: agent output matches a secret-like pattern", story.ID)
		}
	}
	for _, t := range touched {
		data, err := os.ReadFile(filepath.Join(l.VCS.Root, t))
		if err != nil {
			continue // deleted or unreadable; not this check's concern
		}
		for _, pat := range l.secretPatterns() {
			if pat.Match(data) {
				return fmt.Errorf("story-validation: story %s: %s matches a secret-like pattern", story.ID, t)
			}
		}
	}
	return nil
}

func inScope(path string, scope []string) bool {
	for _, s := range scope {
		s = strings.TrimSuffix(s, "/")
		if path == s || strings.HasPrefix(path, s+"/") {
			return true
		}
	}
	return false
}

func toSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}

func newlyTouched(before map[string]bool, after []string) []string {
	var touched []string
	for _, p := range after {
		if !before[p] {
			touched = append(touched, p)
		}
	}
	return touched
}
