// Package store is the Artifact Store: atomic, lock-protected
// persistence of item records and phase artifacts under .wreckit/.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wreckit/wreckit/internal/item"
	"github.com/wreckit/wreckit/internal/plan"
)

// Store roots all operations at a workspace directory (.wreckit/).
type Store struct {
	Root string // absolute path to .wreckit
}

// Open returns a Store rooted at the .wreckit directory under projectRoot.
// It does not require the directory to already exist.
func Open(projectRoot string) *Store {
	return &Store{Root: filepath.Join(projectRoot, ".wreckit")}
}

// EnsureWorkspace creates .wreckit's directory skeleton: the root
// itself, prompts/, and items/.
func (s *Store) EnsureWorkspace() error {
	dirs := []string{
		s.Root,
		s.PromptsDir(),
		s.ItemsDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("store: creating %s: %w", d, err)
		}
	}
	return nil
}

func (s *Store) PromptsDir() string { return filepath.Join(s.Root, "prompts") }
func (s *Store) ItemsDir() string   { return filepath.Join(s.Root, "items") }
func (s *Store) ConfigPath() string { return filepath.Join(s.Root, "config.json") }
func (s *Store) LocalConfigPath() string { return filepath.Join(s.Root, "config.local.json") }
func (s *Store) HealingLogPath() string  { return filepath.Join(s.Root, "healing-log.jsonl") }

func (s *Store) ItemDir(id string) string      { return filepath.Join(s.ItemsDir(), id) }
func (s *Store) ItemPath(id string) string      { return filepath.Join(s.ItemDir(id), "item.json") }
func (s *Store) PlanPath(id string) string      { return filepath.Join(s.ItemDir(id), "prd.json") }
func (s *Store) ResearchPath(id string) string  { return filepath.Join(s.ItemDir(id), "research.md") }
func (s *Store) PlanMDPath(id string) string    { return filepath.Join(s.ItemDir(id), "plan.md") }
func (s *Store) PRPath(id string) string        { return filepath.Join(s.ItemDir(id), "pr.md") }
func (s *Store) TimingPath(id string) string    { return filepath.Join(s.ItemDir(id), "timing.json") }
func (s *Store) PromptPath(phase string) string { return filepath.Join(s.PromptsDir(), phase+".md") }

// ScopedLock acquires an advisory lock scoped to the named item.
func (s *Store) ScopedLock(itemID string, mode LockMode) (*Lock, error) {
	if err := os.MkdirAll(s.ItemDir(itemID), 0755); err != nil {
		return nil, err
	}
	return ScopedLock(s.ItemPath(itemID), mode)
}

// CreateItem writes a brand-new item under an exclusive lock.
func (s *Store) CreateItem(it *item.Item) error {
	if err := os.MkdirAll(s.ItemDir(it.ID), 0755); err != nil {
		return err
	}
	lock, err := s.ScopedLock(it.ID, Exclusive)
	if err != nil {
		return err
	}
	defer lock.Unlock()
	return s.writeItemLocked(it)
}

// ReadItem reads the item record. Returns *ErrNotFound or *ErrCorruption
// on failure.
func (s *Store) ReadItem(id string) (*item.Item, error) {
	path := s.ItemPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ErrNotFound{Path: path}
		}
		return nil, err
	}
	var it item.Item
	if err := json.Unmarshal(data, &it); err != nil {
		return nil, &ErrCorruption{Path: path, Err: err}
	}
	return &it, nil
}

// WriteItem persists it under an exclusive lock, atomically.
func (s *Store) WriteItem(it *item.Item) error {
	lock, err := s.ScopedLock(it.ID, Exclusive)
	if err != nil {
		return err
	}
	defer lock.Unlock()
	return s.writeItemLocked(it)
}

func (s *Store) writeItemLocked(it *item.Item) error {
	if it.SchemaVersion == 0 {
		it.SchemaVersion = item.SchemaVersion
	}
	if err := it.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(it, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.ItemPath(it.ID), data, 0644)
}

// ListItems returns every item under items/, sorted by id ascending.
func (s *Store) ListItems() ([]*item.Item, error) {
	entries, err := os.ReadDir(s.ItemsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)

	items := make([]*item.Item, 0, len(ids))
	for _, id := range ids {
		it, err := s.ReadItem(id)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// ReadPlan reads the structured plan document for an item.
func (s *Store) ReadPlan(id string) (*plan.Document, error) {
	path := s.PlanPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ErrNotFound{Path: path}
		}
		return nil, err
	}
	var doc plan.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ErrCorruption{Path: path, Err: err}
	}
	if err := doc.Validate(); err != nil {
		return nil, &ErrCorruption{Path: path, Err: err}
	}
	return &doc, nil
}

// WritePlan persists the plan document under the item's exclusive lock.
func (s *Store) WritePlan(itemID string, doc *plan.Document) error {
	lock, err := s.ScopedLock(itemID, Exclusive)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if doc.SchemaVersion == 0 {
		doc.SchemaVersion = plan.SchemaVersion
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.PlanPath(itemID), data, 0644)
}

// WriteArtifact atomically writes a plain-text artifact (research.md,
// plan.md, pr.md). It takes no lock; the temp-file rename alone keeps
// readers from seeing a partial write.
func (s *Store) WriteArtifact(path, content string) error {
	return writeFileAtomic(path, []byte(content), 0644)
}

// TimingEntry is one phase dispatch's wall-clock record.
type TimingEntry struct {
	Phase    string        `json:"phase"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
}

// AppendTimingEntry appends one entry to an item's timing.json array
// under the item's exclusive lock.
func (s *Store) AppendTimingEntry(itemID string, entry TimingEntry) error {
	lock, err := s.ScopedLock(itemID, Exclusive)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	entries, err := s.readTimingLocked(itemID)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.TimingPath(itemID), data, 0644)
}

// ReadTiming reads every timing entry recorded for an item.
func (s *Store) ReadTiming(itemID string) ([]TimingEntry, error) {
	lock, err := s.ScopedLock(itemID, Shared)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()
	return s.readTimingLocked(itemID)
}

func (s *Store) readTimingLocked(itemID string) ([]TimingEntry, error) {
	data, err := os.ReadFile(s.TimingPath(itemID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var entries []TimingEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &ErrCorruption{Path: s.TimingPath(itemID), Err: err}
	}
	return entries, nil
}

// HealingAttempt records one remediation try within a healing episode.
type HealingAttempt struct {
	At        time.Time `json:"at"`
	Remedy    string    `json:"remedy"`
	Outcome   string    `json:"outcome"` // "retried" | "recovered" | "unrecoverable"
}

// HealingLogEntry is one recoverable-failure episode.
type HealingLogEntry struct {
	Timestamp      time.Time        `json:"timestamp"`
	ItemID         string           `json:"item_id"`
	Classification string           `json:"classification"`
	Pattern        string           `json:"pattern"`
	Attempts       []HealingAttempt `json:"attempts"`
	FinalOutcome   string           `json:"final_outcome"`
}

// AppendHealingLog appends one JSON line to the append-only healing log.
// The append is serialized under the global log's own lock so
// concurrent workers across different items don't interleave lines.
func (s *Store) AppendHealingLog(entry HealingLogEntry) error {
	path := s.HealingLogPath()
	lock, err := ScopedLock(path, Exclusive)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}

// ReadHealingLog reads every entry from the append-only healing log.
func (s *Store) ReadHealingLog() ([]HealingLogEntry, error) {
	path := s.HealingLogPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var entries []HealingLogEntry
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var e HealingLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, &ErrCorruption{Path: path, Err: err}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

// CheckArtifacts returns the subset of paths that do not exist, used by
// the Phase Runner's skip-on-artifact / validation checks.
func CheckArtifacts(paths []string) []string {
	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	return missing
}
