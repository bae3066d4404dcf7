package verification

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/gauntlet/internal/state"
	"github.com/ShayCichocki/gauntlet/pkg/models"
)

func openIndex(t *testing.T, root string) *state.DB {
	t.Helper()
	db, err := state.OpenProject(root)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func result(featureID string, verdict models.Verdict) *models.VerificationResult {
	return &models.VerificationResult{
		FeatureID:  featureID,
		CommitHash: "abc123",
		Verdict:    verdict,
		AutomatedChecks: []models.AutomatedCheckResult{
			{Type: models.CheckTest, Success: verdict == models.VerdictPass},
		},
	}
}

func TestStorage_SaveAssignsRunNumbers(t *testing.T) {
	s := NewStorage(t.TempDir())

	first := result("auth.login", models.VerdictFail)
	second := result("auth.login", models.VerdictPass)
	require.NoError(t, s.Save(first))
	require.NoError(t, s.Save(second))

	assert.Equal(t, 1, first.RunNumber)
	assert.Equal(t, 2, second.RunNumber)
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.Timestamp.IsZero())
	assert.FileExists(t, filepath.Join(s.BaseDir(), "auth.login", "001.json"))
	assert.FileExists(t, filepath.Join(s.BaseDir(), "auth.login", "002.json"))

	latest, err := s.Load("auth.login", 2)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictPass, latest.Verdict)
	assert.Equal(t, 2, latest.RunNumber)
}

func TestStorage_NeverOverwrites(t *testing.T) {
	s := NewStorage(t.TempDir())
	dir := filepath.Join(s.BaseDir(), "a")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "003.json"), []byte(`{"featureId":"a","runNumber":3,"verdict":"fail"}`), 0644))

	r := result("a", models.VerdictPass)
	require.NoError(t, s.Save(r))

	assert.Equal(t, 4, r.RunNumber)
	runs, err := s.Runs("a")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, runs)
}

func TestStorage_RejectsPathLikeIDs(t *testing.T) {
	s := NewStorage(t.TempDir())
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		assert.Error(t, s.Save(result(id, models.VerdictPass)), "id %q", id)
	}
}

func TestHistory_SummaryWithoutRuns(t *testing.T) {
	_, err := NewHistory(NewStorage(t.TempDir()), nil).Summary("missing")
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestHistory_RecordUpdatesIndex(t *testing.T) {
	root := t.TempDir()
	db := openIndex(t, root)
	h := NewHistory(NewStorage(root), db)

	require.NoError(t, h.Record(result("auth.login", models.VerdictFail)))
	require.NoError(t, h.Record(result("auth.login", models.VerdictPass)))

	entry, err := db.GetIndex("auth.login")
	require.NoError(t, err)
	assert.Equal(t, 2, entry.LatestRun)
	assert.Equal(t, "pass", entry.Verdict)
	assert.Equal(t, 2, entry.TotalRuns)
	assert.Equal(t, 1, entry.PassRuns)
}

func TestHistory_SummaryRepairsStaleIndex(t *testing.T) {
	root := t.TempDir()
	db := openIndex(t, root)
	storage := NewStorage(root)
	h := NewHistory(storage, db)

	require.NoError(t, h.Record(result("cart", models.VerdictPass)))

	// A run written without going through the index.
	require.NoError(t, storage.Save(result("cart", models.VerdictFail)))

	var logged []string
	h.SetDebugLog(func(format string, args ...interface{}) { logged = append(logged, format) })

	entry, err := h.Summary("cart")
	require.NoError(t, err)
	assert.Equal(t, 2, entry.LatestRun)
	assert.Equal(t, "fail", entry.Verdict)
	assert.NotEmpty(t, logged)

	stored, err := db.GetIndex("cart")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.LatestRun, "index should be repaired")
}

func TestHistory_SummaryWithMissingIndexEntry(t *testing.T) {
	root := t.TempDir()
	db := openIndex(t, root)
	storage := NewStorage(root)
	require.NoError(t, storage.Save(result("search", models.VerdictNeedsReview)))

	entry, err := NewHistory(storage, db).Summary("search")
	require.NoError(t, err)
	assert.Equal(t, "needs_review", entry.Verdict)
}

func TestHistory_SummariesAndRebuild(t *testing.T) {
	root := t.TempDir()
	db := openIndex(t, root)
	storage := NewStorage(root)
	require.NoError(t, storage.Save(result("b", models.VerdictPass)))
	require.NoError(t, storage.Save(result("a", models.VerdictFail)))

	h := NewHistory(storage, db)
	require.NoError(t, h.Rebuild())

	entries, err := db.ListIndex()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	summaries, err := h.Summaries()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "a", summaries[0].FeatureID)
	assert.Equal(t, "b", summaries[1].FeatureID)
}

func TestHistory_WithoutIndex(t *testing.T) {
	root := t.TempDir()
	h := NewHistory(NewStorage(root), nil)

	require.NoError(t, h.Record(result("x", models.VerdictPass)))
	entry, err := h.Summary("x")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.LatestRun)
}

func TestHistory_RebuildDropsOrphanEntries(t *testing.T) {
	root := t.TempDir()
	db := openIndex(t, root)
	storage := NewStorage(root)
	require.NoError(t, storage.Save(result("kept", models.VerdictPass)))
	require.NoError(t, db.UpsertIndex(state.IndexEntry{FeatureID: "ghost", LatestRun: 7, Verdict: "fail", TotalRuns: 7}))

	require.NoError(t, NewHistory(storage, db).Rebuild())

	entries, err := db.ListIndex()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].FeatureID)
}

func TestHistory_SummarySkipsUnreadableNewestRun(t *testing.T) {
	root := t.TempDir()
	storage := NewStorage(root)
	require.NoError(t, storage.Save(result("a", models.VerdictPass)))
	dir := filepath.Join(storage.BaseDir(), "a")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002.json"), []byte("{broken"), 0644))

	entry, err := NewHistory(storage, nil).Summary("a")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.LatestRun)
	assert.Equal(t, "pass", entry.Verdict)
	assert.Equal(t, 2, entry.TotalRuns)
}
