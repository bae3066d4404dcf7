// Package features owns the persisted feature list: loading, validation,
// locked read-modify-write saves, and the status state machine.
package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/ShayCichocki/gauntlet/pkg/models"
)

var (
	// ErrNotFound is returned when the project has no feature list.
	ErrNotFound = errors.New("feature list not found")
	// ErrFeatureNotFound is returned when a feature ID is not in the list.
	ErrFeatureNotFound = errors.New("feature not found")
	// ErrDuplicateID is returned when two features share an ID.
	ErrDuplicateID = errors.New("duplicate feature id")
)

// Metadata is project-level bookkeeping stored alongside the features.
type Metadata struct {
	ProjectGoal string         `json:"projectGoal,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Version     string         `json:"version,omitempty"`
	TDDMode     models.TDDMode `json:"tddMode,omitempty"`
}

// List is the feature list document.
type List struct {
	Features []*models.Feature `json:"features"`
	Metadata Metadata          `json:"metadata"`
}

// Get returns the feature with the given ID.
func (l *List) Get(id string) (*models.Feature, error) {
	for _, f := range l.Features {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFeatureNotFound, id)
}

// TDDMode returns the project TDD mode, defaulting to recommended.
func (l *List) TDDMode() models.TDDMode {
	if l.Metadata.TDDMode == "" {
		return models.TDDRecommended
	}
	return l.Metadata.TDDMode
}

// Validate checks structural invariants. It returns an error for duplicate
// IDs or unknown status values, and a warning for every dependsOn reference
// to a feature that does not exist.
func Validate(l *List) (warnings []string, err error) {
	if l.Metadata.TDDMode != "" && !l.Metadata.TDDMode.Valid() {
		return nil, fmt.Errorf("invalid tdd mode %q", l.Metadata.TDDMode)
	}

	seen := make(map[string]bool, len(l.Features))
	for i, f := range l.Features {
		if f == nil {
			return nil, fmt.Errorf("feature at index %d is null", i)
		}
		if f.ID == "" {
			return nil, fmt.Errorf("feature at index %d has no id", i)
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, f.ID)
		}
		seen[f.ID] = true
		if !f.Status.Valid() {
			return nil, fmt.Errorf("feature %s has invalid status %q", f.ID, f.Status)
		}
	}

	for _, f := range l.Features {
		for _, dep := range f.DependsOn {
			if !seen[dep] {
				warnings = append(warnings, fmt.Sprintf("feature %s depends on unknown feature %s", f.ID, dep))
			}
		}
	}
	return warnings, nil
}

// Store reads and writes the feature list for one project directory.
// Writes take an advisory file lock and replace the file atomically, so a
// reader never observes a partially written list.
type Store struct {
	path string
	lock *flock.Flock
}

// ListPath returns the feature list location for a project root.
func ListPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".gauntlet", "features.json")
}

// NewStore creates a store for the project rooted at projectRoot.
func NewStore(projectRoot string) *Store {
	path := ListPath(projectRoot)
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the feature list file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the feature list file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads and validates the feature list. Features without a status are
// initialised to failing.
func (s *Store) Load() (*List, []string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, nil, fmt.Errorf("read feature list: %w", err)
	}

	var list List
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, nil, fmt.Errorf("parse feature list: %w", err)
	}

	for _, f := range list.Features {
		if f != nil && f.Status == "" {
			f.Status = models.StatusFailing
		}
	}

	warnings, err := Validate(&list)
	if err != nil {
		return nil, nil, err
	}
	return &list, warnings, nil
}

// Save validates and writes the list while holding the file lock.
func (s *Store) Save(list *List) error {
	if err := s.lockFile(); err != nil {
		return err
	}
	defer s.lock.Unlock()
	return s.write(list)
}

// Update performs a locked read-modify-write cycle. fn receives the current
// list; if it returns nil the list is saved.
func (s *Store) Update(fn func(*List) error) error {
	if err := s.lockFile(); err != nil {
		return err
	}
	defer s.lock.Unlock()

	list, _, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(list); err != nil {
		return err
	}
	return s.write(list)
}

func (s *Store) lockFile() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create feature list directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock feature list: %w", err)
	}
	return nil
}

// write replaces the list file via a temp file and rename. Caller holds the lock.
func (s *Store) write(list *List) error {
	if _, err := Validate(list); err != nil {
		return err
	}
	list.Metadata.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feature list: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".features-*.json")
	if err != nil {
		return fmt.Errorf("create temp feature list: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp feature list: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp feature list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp feature list: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace feature list: %w", err)
	}
	return nil
}
