package verification

import (
	"errors"
	"fmt"

	"github.com/ShayCichocki/gauntlet/internal/state"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// History records verification runs and answers summary queries. Files are
// the source of truth; the index is a cache that is repaired whenever it
// disagrees with them.
type History struct {
	storage  *Storage
	index    state.IndexStore
	debugLog func(format string, args ...interface{})
}

// NewHistory creates a history over storage and index. index may be nil, in
// which case summaries are always derived from files.
func NewHistory(storage *Storage, index state.IndexStore) *History {
	return &History{
		storage:  storage,
		index:    index,
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (h *History) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		h.debugLog = fn
	}
}

// Storage returns the underlying file storage.
func (h *History) Storage() *Storage {
	return h.storage
}

// Record saves result as a new run and updates the index.
func (h *History) Record(result *models.VerificationResult) error {
	if err := h.storage.Save(result); err != nil {
		return fmt.Errorf("save verification %s: %w", result.FeatureID, err)
	}
	if h.index == nil {
		return nil
	}
	entry, err := h.derive(result.FeatureID)
	if err != nil {
		return err
	}
	if err := h.index.UpsertIndex(*entry); err != nil {
		return fmt.Errorf("update verification index: %w", err)
	}
	return nil
}

// Summary returns the index entry for featureID, re-deriving it from the
// run files when the index is missing or stale.
func (h *History) Summary(featureID string) (*state.IndexEntry, error) {
	runs, err := h.storage.Runs(featureID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRuns, featureID)
	}
	latest := runs[len(runs)-1]

	if h.index != nil {
		entry, err := h.index.GetIndex(featureID)
		switch {
		case err == nil && entry.LatestRun == latest && entry.TotalRuns == len(runs):
			return entry, nil
		case err == nil:
			h.debugLog("[history] index stale for %s: run %d/%d vs files %d/%d",
				featureID, entry.LatestRun, entry.TotalRuns, latest, len(runs))
		case errors.Is(err, state.ErrNotIndexed):
			h.debugLog("[history] %s missing from index", featureID)
		default:
			h.debugLog("[history] index read failed for %s: %v", featureID, err)
		}
	}

	entry, err := h.derive(featureID)
	if err != nil {
		return nil, err
	}
	if h.index != nil {
		if err := h.index.UpsertIndex(*entry); err != nil {
			h.debugLog("[history] index repair failed for %s: %v", featureID, err)
		}
	}
	return entry, nil
}

// Summaries returns one entry per feature with recorded runs.
func (h *History) Summaries() ([]state.IndexEntry, error) {
	ids, err := h.storage.Features()
	if err != nil {
		return nil, err
	}
	var entries []state.IndexEntry
	for _, id := range ids {
		entry, err := h.Summary(id)
		if errors.Is(err, ErrNoRuns) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Rebuild re-derives every index entry from files and drops entries whose
// run files are gone.
func (h *History) Rebuild() error {
	if h.index == nil {
		return nil
	}
	ids, err := h.storage.Features()
	if err != nil {
		return err
	}
	recorded := make(map[string]bool, len(ids))
	for _, id := range ids {
		entry, err := h.derive(id)
		if errors.Is(err, ErrNoRuns) {
			continue
		}
		if err != nil {
			return err
		}
		if err := h.index.UpsertIndex(*entry); err != nil {
			return fmt.Errorf("rebuild index %s: %w", id, err)
		}
		recorded[id] = true
	}

	indexed, err := h.index.ListIndex()
	if err != nil {
		return err
	}
	for _, e := range indexed {
		if recorded[e.FeatureID] {
			continue
		}
		h.debugLog("[history] dropping index entry for %s", e.FeatureID)
		if err := h.index.DeleteIndex(e.FeatureID); err != nil {
			return err
		}
	}
	return nil
}

// derive computes the summary for featureID from its run files.
func (h *History) derive(featureID string) (*state.IndexEntry, error) {
	results, err := h.storage.List(featureID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRuns, featureID)
	}
	runs, err := h.storage.Runs(featureID)
	if err != nil {
		return nil, err
	}

	// Unreadable files are missing from results, so the newest readable
	// record supplies both the run number and the verdict.
	latest := results[len(results)-1]
	entry := &state.IndexEntry{
		FeatureID:  featureID,
		LatestRun:  latest.RunNumber,
		Verdict:    string(latest.Verdict),
		CommitHash: latest.CommitHash,
		UpdatedAt:  latest.Timestamp,
		TotalRuns:  len(runs),
	}
	for _, r := range results {
		if r.Verdict == models.VerdictPass {
			entry.PassRuns++
		}
	}
	return entry, nil
}
