// Package healing implements the Healing Controller: a closed error
// taxonomy classifier and bounded per-class retry policy for recoverable
// implement-loop failures.
package healing

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/wreckit/wreckit/internal/store"
)

// Class is one entry of the closed error taxonomy.
type Class string

const (
	ClassGitLock               Class = "git-lock"
	ClassPackageManagerFailure Class = "package-manager-failure"
	ClassJSONCorruption        Class = "json-corruption"
	ClassPlanValidation        Class = "plan-validation"
	ClassStoryValidation       Class = "story-validation"
	ClassOther                 Class = "other"
)

var recoverable = map[Class]bool{
	ClassGitLock:               true,
	ClassPackageManagerFailure: true,
	ClassJSONCorruption:        true,
	ClassPlanValidation:        true,
	ClassStoryValidation:       true,
}

type patternClass struct {
	class   Class
	pattern *regexp.Regexp
}

// classifiers are tried in order; the first match wins. Unmatched text
// classifies as ClassOther, which is never recoverable.
var classifiers = []patternClass{
	{ClassGitLock, regexp.MustCompile(`(?i)index\.lock|unable to create '.*\.lock'|another git process`)},
	{ClassPackageManagerFailure, regexp.MustCompile(`(?i)ENOTFOUND|ECONNRESET|EAI_AGAIN|npm ERR!|checksum mismatch|dial tcp.*connect|no such host`)},
	{ClassJSONCorruption, regexp.MustCompile(`(?i)invalid character|unexpected end of JSON|json: cannot unmarshal|failed schema validation`)},
	{ClassPlanValidation, regexp.MustCompile(`(?i)^plan [^:]+: (invalid|duplicate)`)},
	{ClassStoryValidation, regexp.MustCompile(`(?i)story [^:]*: (invalid status|not found)`)},
}

// Classify maps a failure's text (error message, combined agent output,
// or exit description) to one of the closed taxonomy classes.
func Classify(failureText string) Class {
	for _, c := range classifiers {
		if c.pattern.MatchString(failureText) {
			return c.class
		}
	}
	return ClassOther
}

// DefaultMaxAttempts is the per-(item, class) consecutive-failure cap.
const DefaultMaxAttempts = 3

const staleLockAge = 60 * time.Second

// Outcome is the Controller's verdict for one failure.
type Outcome string

const (
	OutcomeRecovered     Outcome = "recovered"
	OutcomeUnrecoverable Outcome = "unrecoverable"
)

// Controller converts classified, recoverable failures into bounded
// retries, recording every episode to the append-only healing log.
type Controller struct {
	Store *store.Store
	// RepoRoot locates .git/index.lock for the git-lock remediation. May
	// be empty if the item has no working tree (e.g. research/plan only).
	RepoRoot    string
	MaxAttempts int

	mu       sync.Mutex
	counters map[string]map[Class]int
}

// NewController constructs a Controller with the default retry cap.
func NewController(s *store.Store, repoRoot string) *Controller {
	return &Controller{
		Store:       s,
		RepoRoot:    repoRoot,
		MaxAttempts: DefaultMaxAttempts,
		counters:    make(map[string]map[Class]int),
	}
}

// Handle classifies failureText for itemID, bumps its per-class counter,
// and either applies a remediation and returns "recovered" with guidance
// text to fold into the retried prompt, or returns "unrecoverable" once
// the class isn't recoverable or the cap is exceeded.
func (c *Controller) Handle(itemID, failureText string) (Outcome, string, error) {
	class := Classify(failureText)
	if !recoverable[class] {
		err := c.record(itemID, class, failureText, OutcomeUnrecoverable, "")
		return OutcomeUnrecoverable, "", err
	}

	max := c.MaxAttempts
	if max == 0 {
		max = DefaultMaxAttempts
	}
	c.mu.Lock()
	if c.counters[itemID] == nil {
		c.counters[itemID] = make(map[Class]int)
	}
	c.counters[itemID][class]++
	count := c.counters[itemID][class]
	c.mu.Unlock()

	if count > max {
		err := c.record(itemID, class, failureText, OutcomeUnrecoverable, "")
		return OutcomeUnrecoverable, "", err
	}

	remedy, guidance := c.remediate(class, failureText)
	if err := c.record(itemID, class, failureText, OutcomeRecovered, remedy); err != nil {
		return OutcomeRecovered, guidance, err
	}
	return OutcomeRecovered, guidance, nil
}

// Reset clears itemID's counters, called once it reaches a phase success
// so a later, unrelated failure starts its own cap from zero.
func (c *Controller) Reset(itemID string) {
	c.mu.Lock()
	delete(c.counters, itemID)
	c.mu.Unlock()
}

func (c *Controller) remediate(class Class, failureText string) (remedy, guidance string) {
	switch class {
	case ClassGitLock:
		if c.clearStaleGitLock() {
			return "cleared stale index.lock", ""
		}
		return "waited for index.lock to clear", ""
	case ClassPackageManagerFailure:
		return "retry after cache hint", "The previous attempt hit a transient dependency-fetch failure. Clear any local package manager cache before retrying."
	case ClassJSONCorruption:
		return "re-invoke with parse error", fmt.Sprintf("The previous attempt produced an artifact that failed JSON validation: %s. Produce valid JSON this time.", failureText)
	case ClassPlanValidation, ClassStoryValidation:
		return "re-invoke with corrective guidance", fmt.Sprintf("The previous attempt violated a plan/story invariant: %s. Correct this before proceeding.", failureText)
	default:
		return "", ""
	}
}

// clearStaleGitLock removes .git/index.lock once it's older than the
// staleness threshold. index.lock carries no PID payload the way the store's
// own sidecar locks do, so staleness here is judged by mtime alone.
func (c *Controller) clearStaleGitLock() bool {
	if c.RepoRoot == "" {
		return false
	}
	path := filepath.Join(c.RepoRoot, ".git", "index.lock")
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) < staleLockAge {
		return false
	}
	return os.Remove(path) == nil
}

func (c *Controller) record(itemID string, class Class, pattern string, outcome Outcome, remedy string) error {
	entry := store.HealingLogEntry{
		Timestamp:      time.Now(),
		ItemID:         itemID,
		Classification: string(class),
		Pattern:        pattern,
		FinalOutcome:   string(outcome),
	}
	if remedy != "" {
		entry.Attempts = []store.HealingAttempt{{At: time.Now(), Remedy: remedy, Outcome: string(outcome)}}
	}
	if c.Store == nil {
		return nil
	}
	return c.Store.AppendHealingLog(entry)
}
