package features

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/gauntlet/pkg/models"
)

func writeList(t *testing.T, root, content string) {
	t.Helper()
	path := ListPath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())

	assert.False(t, store.Exists())
	_, _, err := store.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_LoadDefaultsAndWarnings(t *testing.T) {
	root := t.TempDir()
	writeList(t, root, `{
		"features": [
			{"id": "auth.login", "module": "auth", "acceptance": ["logs in"], "dependsOn": ["core.db"]},
			{"id": "auth.logout", "module": "auth", "status": "passing", "acceptance": ["logs out"], "dependsOn": ["auth.login"]}
		],
		"metadata": {"projectGoal": "demo", "tddMode": "strict"}
	}`)

	list, warnings, err := NewStore(root).Load()
	require.NoError(t, err)

	require.Len(t, list.Features, 2)
	assert.Equal(t, models.StatusFailing, list.Features[0].Status)
	assert.Equal(t, models.StatusPassing, list.Features[1].Status)
	assert.Equal(t, models.TDDStrict, list.TDDMode())
	assert.Equal(t, []string{"feature auth.login depends on unknown feature core.db"}, warnings)
}

func TestStore_LoadDuplicateID(t *testing.T) {
	root := t.TempDir()
	writeList(t, root, `{"features": [
		{"id": "a", "module": "m", "status": "failing", "acceptance": []},
		{"id": "a", "module": "m", "status": "failing", "acceptance": []}
	]}`)

	_, _, err := NewStore(root).Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateID))
}

func TestStore_LoadInvalidStatus(t *testing.T) {
	root := t.TempDir()
	writeList(t, root, `{"features": [{"id": "a", "module": "m", "status": "done", "acceptance": []}]}`)

	_, _, err := NewStore(root).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid status "done"`)
}

func TestStore_SaveRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	list := &List{
		Features: []*models.Feature{
			{ID: "auth.login", Module: "auth", Status: models.StatusFailing, Acceptance: []string{"first", "second"}},
		},
	}
	require.NoError(t, store.Save(list))
	assert.False(t, list.Metadata.UpdatedAt.IsZero())

	loaded, _, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Features, 1)
	assert.Equal(t, []string{"first", "second"}, loaded.Features[0].Acceptance)
	assert.Equal(t, models.TDDRecommended, loaded.TDDMode())

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".features-", "temp file left behind")
	}
}

func TestStore_SaveRejectsDuplicates(t *testing.T) {
	store := NewStore(t.TempDir())
	list := &List{Features: []*models.Feature{
		{ID: "a", Status: models.StatusFailing},
		{ID: "a", Status: models.StatusFailing},
	}}

	err := store.Save(list)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateID))
	assert.False(t, store.Exists())
}

func TestStore_Update(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	require.NoError(t, store.Save(&List{Features: []*models.Feature{
		{ID: "a", Module: "m", Status: models.StatusFailing},
	}}))

	err := store.Update(func(l *List) error {
		f, err := l.Get("a")
		if err != nil {
			return err
		}
		return Transition(f, models.StatusPassing)
	})
	require.NoError(t, err)

	list, _, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, models.StatusPassing, list.Features[0].Status)

	err = store.Update(func(l *List) error {
		_, err := l.Get("missing")
		return err
	})
	assert.True(t, errors.Is(err, ErrFeatureNotFound))
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from, to models.FeatureStatus
		ok       bool
	}{
		{models.StatusFailing, models.StatusPassing, true},
		{models.StatusFailing, models.StatusNeedsReview, true},
		{models.StatusNeedsReview, models.StatusPassing, true},
		{models.StatusPassing, models.StatusFailing, true},
		{models.StatusBlocked, models.StatusFailing, true},
		{models.StatusFailed, models.StatusNeedsReview, true},
		{models.StatusBlocked, models.StatusPassing, false},
		{models.StatusDeprecated, models.StatusFailing, false},
		{models.StatusPassing, models.StatusDeprecated, true},
		{models.StatusFailing, models.StatusFailing, true},
		{models.StatusFailing, models.FeatureStatus("done"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			f := &models.Feature{ID: "x", Status: tt.from}
			err := Transition(f, tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, f.Status)
			} else {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTransition))
				assert.Equal(t, tt.from, f.Status)
			}
		})
	}
}
