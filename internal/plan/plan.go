// Package plan defines the structured plan document and its user stories.
package plan

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

const SchemaVersion = 1

// StoryStatus is pending or done.
type StoryStatus string

const (
	StatusPending StoryStatus = "pending"
	StatusDone    StoryStatus = "done"
)

// Story is one user story within a plan document.
type Story struct {
	ID                 string      `json:"id" validate:"required"`
	Title              string      `json:"title"`
	AcceptanceCriteria []string    `json:"acceptance_criteria"`
	Priority           int         `json:"priority"`
	Status             StoryStatus `json:"status" validate:"required"`
	Notes              string      `json:"notes"`
	// Scope is the declared set of files/directories the story may touch.
	// Empty means the scope check is advisory only.
	Scope []string `json:"scope,omitempty"`
}

// Document is the structured plan document, durable as prd.json.
type Document struct {
	SchemaVersion int     `json:"schema_version"`
	ID            string  `json:"id" validate:"required"`
	BranchName    string  `json:"branch_name"`
	UserStories   []Story `json:"user_stories"`
}

var storyIDRe = regexp.MustCompile(`^US-\d{3,}$`)

// ValidStoryID reports whether id has the shape US-NNN.
func ValidStoryID(id string) bool {
	return storyIDRe.MatchString(id)
}

// Validate checks unique story ids and valid shapes.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("plan %s: %w", d.ID, err)
	}
	seen := make(map[string]bool, len(d.UserStories))
	for _, s := range d.UserStories {
		if !ValidStoryID(s.ID) {
			return fmt.Errorf("plan %s: invalid story id %q", d.ID, s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("plan %s: duplicate story id %q", d.ID, s.ID)
		}
		seen[s.ID] = true
		if s.Status != StatusPending && s.Status != StatusDone {
			return fmt.Errorf("plan %s: story %s: invalid status %q", d.ID, s.ID, s.Status)
		}
	}
	return nil
}

// Pending returns the stories with status pending, ordered by priority
// ascending, breaking ties by id lexicographically.
func (d *Document) Pending() []Story {
	var pending []Story
	for _, s := range d.UserStories {
		if s.Status == StatusPending {
			pending = append(pending, s)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority < pending[j].Priority
		}
		return pending[i].ID < pending[j].ID
	})
	return pending
}

// NextPending returns the first pending story under the ordering above,
// or false if none remain.
func (d *Document) NextPending() (Story, bool) {
	pending := d.Pending()
	if len(pending) == 0 {
		return Story{}, false
	}
	return pending[0], true
}

// MarkDone flips the named story's status to done in place. Stories are
// append-only except for this status flip.
func (d *Document) MarkDone(storyID, notes string) error {
	for i := range d.UserStories {
		if d.UserStories[i].ID == storyID {
			d.UserStories[i].Status = StatusDone
			if notes != "" {
				d.UserStories[i].Notes = notes
			}
			return nil
		}
	}
	return fmt.Errorf("plan %s: story %q not found", d.ID, storyID)
}
