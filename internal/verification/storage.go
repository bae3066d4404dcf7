// Package verification persists immutable per-run verification records and
// keeps a summary index consistent with them.
package verification

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// ErrNoRuns is returned when a feature has no recorded runs.
var ErrNoRuns = errors.New("no verification runs")

// Storage handles persistence of verification results. Each run is one file
// at <baseDir>/<featureID>/<NNN>.json and is never rewritten.
type Storage struct {
	baseDir string
}

// NewStorage creates storage for the given project root.
// Records are stored in .gauntlet/verification/ within the project.
func NewStorage(projectRoot string) *Storage {
	return &Storage{
		baseDir: filepath.Join(projectRoot, ".gauntlet", "verification"),
	}
}

// BaseDir returns the storage root.
func (s *Storage) BaseDir() string {
	return s.baseDir
}

func (s *Storage) featureDir(featureID string) (string, error) {
	if featureID == "" || featureID == "." || featureID == ".." ||
		strings.ContainsAny(featureID, `/\`) {
		return "", fmt.Errorf("invalid feature id %q", featureID)
	}
	return filepath.Join(s.baseDir, featureID), nil
}

func runFileName(run int) string {
	return fmt.Sprintf("%03d.json", run)
}

// Save assigns the next run number, an ID and a timestamp if missing, and
// writes the record. An existing run file is never overwritten.
func (s *Storage) Save(result *models.VerificationResult) error {
	dir, err := s.featureDir(result.FeatureID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create verification directory: %w", err)
	}

	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}

	runs, err := s.Runs(result.FeatureID)
	if err != nil {
		return err
	}
	next := 1
	if len(runs) > 0 {
		next = runs[len(runs)-1] + 1
	}

	for attempt := 0; attempt < 10; attempt++ {
		result.RunNumber = next + attempt
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal verification result: %w", err)
		}

		f, err := os.OpenFile(filepath.Join(dir, runFileName(result.RunNumber)), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("create verification file: %w", err)
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			f.Close()
			return fmt.Errorf("write verification file: %w", err)
		}
		return f.Close()
	}
	return fmt.Errorf("could not allocate a run number for %s", result.FeatureID)
}

// Runs returns the recorded run numbers for a feature in ascending order.
func (s *Storage) Runs(featureID string) ([]int, error) {
	dir, err := s.featureDir(featureID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read verification directory: %w", err)
	}

	var runs []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil || n <= 0 {
			continue
		}
		runs = append(runs, n)
	}
	sort.Ints(runs)
	return runs, nil
}

// Load reads one run.
func (s *Storage) Load(featureID string, run int) (*models.VerificationResult, error) {
	dir, err := s.featureDir(featureID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, runFileName(run)))
	if err != nil {
		return nil, fmt.Errorf("read verification file: %w", err)
	}

	var result models.VerificationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal verification result: %w", err)
	}
	result.RunNumber = run
	return &result, nil
}

// List returns every run for a feature in run order. Unreadable files are
// skipped.
func (s *Storage) List(featureID string) ([]*models.VerificationResult, error) {
	runs, err := s.Runs(featureID)
	if err != nil {
		return nil, err
	}
	results := make([]*models.VerificationResult, 0, len(runs))
	for _, run := range runs {
		r, err := s.Load(featureID, run)
		if err != nil {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// Features returns the IDs of features that have a history directory.
func (s *Storage) Features() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read verification directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
