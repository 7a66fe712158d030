// Package item defines the durable Item record and its state machine.
package item

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// State is one of the six lifecycle states an item passes through.
type State string

const (
	StateRaw         State = "raw"
	StateResearched  State = "researched"
	StatePlanned     State = "planned"
	StateImplementing State = "implementing"
	StateInPR        State = "in_pr"
	StateDone        State = "done"
)

// order fixes the canonical ordering used by transition validity checks.
var order = []State{StateRaw, StateResearched, StatePlanned, StateImplementing, StateInPR, StateDone}

// Index returns the position of s in the canonical order, or -1 if unknown.
func (s State) Index() int {
	for i, o := range order {
		if o == s {
			return i
		}
	}
	return -1
}

func (s State) Valid() bool {
	return s.Index() >= 0
}

const SchemaVersion = 1

// Item is the unit of work, durable under .wreckit/items/<id>/item.json.
type Item struct {
	SchemaVersion int        `json:"schema_version"`
	ID            string     `json:"id" validate:"required"`
	Title         string     `json:"title"`
	Overview      string     `json:"overview"`
	State         State      `json:"state" validate:"required"`
	Branch        *string    `json:"branch"`
	PRURL         *string    `json:"pr_url"`
	PRNumber      *int       `json:"pr_number"`
	RollbackSHA   *string    `json:"rollback_sha"`
	DependsOn     []string   `json:"depends_on"`
	Campaign      *string    `json:"campaign"`
	LastError     *string    `json:"last_error"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at"`

	// Unknown holds keys the store read but this version of Item does not
	// model, so round-tripping through write_item/read_item preserves them.
	Unknown map[string]any `json:"-"`
}

// itemAlias has the same fields as Item but none of its methods, so
// MarshalJSON/UnmarshalJSON can delegate to the default struct codec
// without recursing into themselves.
type itemAlias Item

var knownItemKeys = map[string]bool{
	"schema_version": true, "id": true, "title": true, "overview": true,
	"state": true, "branch": true, "pr_url": true, "pr_number": true,
	"rollback_sha": true, "depends_on": true, "campaign": true,
	"last_error": true, "created_at": true, "updated_at": true,
	"completed_at": true,
}

// MarshalJSON emits the modeled fields in their declared order, then
// appends any keys this version of Item doesn't model so a read-modify-write
// cycle never silently drops data written by a newer schema version.
func (it Item) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(itemAlias(it))
	if err != nil {
		return nil, err
	}
	if len(it.Unknown) == 0 {
		return body, nil
	}
	keys := make([]string, 0, len(it.Unknown))
	for k := range it.Unknown {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := body[:len(body)-1] // drop trailing '}'
	for _, k := range keys {
		v, err := json.Marshal(it.Unknown[k])
		if err != nil {
			return nil, err
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		out = append(out, ',')
		out = append(out, kb...)
		out = append(out, ':')
		out = append(out, v...)
	}
	out = append(out, '}')
	return out, nil
}

// UnmarshalJSON populates the modeled fields and stashes any unrecognized
// keys in Unknown so they survive a later re-write.
func (it *Item) UnmarshalJSON(data []byte) error {
	var alias itemAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*it = Item(alias)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if knownItemKeys[k] {
			delete(raw, k)
		}
	}
	if len(raw) == 0 {
		it.Unknown = nil
		return nil
	}
	it.Unknown = make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		it.Unknown[k] = val
	}
	return nil
}

// Validate checks the struct-tag constraints (id, state required) before
// a write, catching a hand-edited or corrupt record before it lands on disk.
func (it *Item) Validate() error {
	if err := validate.Struct(it); err != nil {
		return fmt.Errorf("item %s: %w", it.ID, err)
	}
	if !it.State.Valid() {
		return fmt.Errorf("item %s: state %q is not a recognized state", it.ID, it.State)
	}
	return nil
}

var idRe = regexp.MustCompile(`^\d{3,}-[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidID reports whether id has the shape NNN-slug.
func ValidID(id string) bool {
	return idRe.MatchString(id)
}

// New constructs a fresh item in the raw state.
func New(id, title, overview string, dependsOn []string) (*Item, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("item: invalid id %q (want NNN-slug)", id)
	}
	now := time.Now()
	return &Item{
		SchemaVersion: SchemaVersion,
		ID:            id,
		Title:         title,
		Overview:      overview,
		State:         StateRaw,
		DependsOn:     dependsOn,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Phase names the fixed five transitions of the item lifecycle.
type Phase string

const (
	PhaseResearch   Phase = "research"
	PhasePlan       Phase = "plan"
	PhaseImplement  Phase = "implement"
	PhasePR         Phase = "pr"
	PhaseComplete   Phase = "complete"
)

// PhaseSpec describes one entry of the fixed phase table.
type PhaseSpec struct {
	Phase          Phase
	StartStates    []State
	TargetState    State
	SkipIfAtTarget bool
	AllowTools     []string
}

// Table is the fixed, closed phase table. Order matters for "next phase" lookups.
var Table = []PhaseSpec{
	{
		Phase:          PhaseResearch,
		StartStates:    []State{StateRaw},
		TargetState:    StateResearched,
		SkipIfAtTarget: true,
		AllowTools:     []string{"Read", "Glob", "Grep", "WebSearch", "WebFetch"},
	},
	{
		Phase:          PhasePlan,
		StartStates:    []State{StateResearched},
		TargetState:    StatePlanned,
		SkipIfAtTarget: true,
		AllowTools:     []string{"Read", "Glob", "Grep", "Write"},
	},
	{
		Phase:          PhaseImplement,
		StartStates:    []State{StatePlanned, StateImplementing},
		TargetState:    StateImplementing,
		SkipIfAtTarget: false,
		AllowTools:     []string{"Read", "Edit", "Write", "Glob", "Grep", "Bash"},
	},
	{
		Phase:          PhasePR,
		StartStates:    []State{StateImplementing},
		TargetState:    StateInPR,
		SkipIfAtTarget: true,
		AllowTools:     []string{"Read", "Bash"},
	},
	{
		Phase:          PhaseComplete,
		StartStates:    []State{StateInPR},
		TargetState:    StateDone,
		SkipIfAtTarget: true,
		AllowTools:     []string{"Read", "Bash"},
	},
}

// Spec looks up the fixed spec for a phase name.
func Spec(p Phase) (PhaseSpec, bool) {
	for _, s := range Table {
		if s.Phase == p {
			return s, true
		}
	}
	return PhaseSpec{}, false
}

// NextPhase returns the phase that would advance it, or false if it is
// already terminal (done) or its state matches no phase's start states.
func NextPhase(st State) (Phase, bool) {
	for _, s := range Table {
		for _, start := range s.StartStates {
			if start == st {
				return s.Phase, true
			}
		}
	}
	return "", false
}

// ErrInvalidTransition is returned by ValidateTransition.
type ErrInvalidTransition struct {
	ItemID string
	Phase  Phase
	From   State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("item %s: phase %s invalid from state %s", e.ItemID, e.Phase, e.From)
}

// ValidateTransition checks the transition-validity rule: a transition
// is invalid if the current state index strictly exceeds the target state
// index, or the current state is done and the phase is not complete.
// Below the target, the current state must also be one of the phase's
// start states; an item already at the target state passes, so the
// caller can skip the phase or, when forced, re-run it.
func ValidateTransition(it *Item, p Phase) error {
	spec, ok := Spec(p)
	if !ok {
		return fmt.Errorf("item %s: unknown phase %q", it.ID, p)
	}
	if it.State == StateDone && p != PhaseComplete {
		return &ErrInvalidTransition{ItemID: it.ID, Phase: p, From: it.State}
	}
	if it.State.Index() > spec.TargetState.Index() {
		return &ErrInvalidTransition{ItemID: it.ID, Phase: p, From: it.State}
	}
	started := it.State == spec.TargetState
	for _, s := range spec.StartStates {
		if s == it.State {
			started = true
			break
		}
	}
	if !started {
		return &ErrInvalidTransition{ItemID: it.ID, Phase: p, From: it.State}
	}
	return nil
}

// AtTarget reports whether the item is already at the phase's target state.
func AtTarget(it *Item, p Phase) bool {
	spec, ok := Spec(p)
	return ok && it.State == spec.TargetState
}

// Runnable reports whether it is runnable given the set of ids currently done.
// An item is runnable iff state != done and every dependency is done.
func Runnable(it *Item, done map[string]bool) bool {
	if it.State == StateDone {
		return false
	}
	for _, dep := range it.DependsOn {
		if !done[dep] {
			return false
		}
	}
	return true
}

// Rollback resets a done item to implementing, per//S6.
func Rollback(it *Item) error {
	if it.State != StateDone {
		return fmt.Errorf("item %s: rollback requires state done, have %s", it.ID, it.State)
	}
	if it.RollbackSHA == nil {
		return fmt.Errorf("item %s: rollback requires a non-null rollback_sha", it.ID)
	}
	it.State = StateImplementing
	it.RollbackSHA = nil
	it.CompletedAt = nil
	it.LastError = nil
	it.UpdatedAt = time.Now()
	return nil
}
