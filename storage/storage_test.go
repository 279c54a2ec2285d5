package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"themeqa/model"
	"themeqa/report"
)

func TestBaselineLifecycle(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.EnsureDirs())
	assert.NoDirExists(t, store.Path(VisualDir))

	_, ok, err := store.LoadBaseline()
	require.NoError(t, err)
	assert.False(t, ok, "no baseline before promotion")

	ratio := 4.56
	snap := &model.Snapshot{
		GeneratedAt:      time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC),
		ExpectedOrgCount: 1,
		OrgCount:         1,
		RequiredTokens:   []string{"--theme-primary"},
		Orgs: map[string]model.OrgSnapshot{
			"acme": {
				TokenCount: 1,
				Tokens:     map[string]string{"--theme-primary": "#777"},
				Contrast:   model.ContrastReport{PrimaryOnBlack: &ratio},
			},
		},
		Issues: []model.Issue{},
	}

	require.NoError(t, store.SaveLatest(snap))
	_, ok, err = store.LoadBaseline()
	require.NoError(t, err)
	assert.False(t, ok, "writing latest must not touch the baseline")

	require.NoError(t, store.PromoteBaseline(snap))
	got, ok, err := store.LoadBaseline()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap, got)

	latest, err := os.ReadFile(store.Path(LatestFile))
	require.NoError(t, err)
	want, err := report.JSON(snap)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(latest))
}

func TestEnsureVisualDirs(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.EnsureVisualDirs())
	assert.DirExists(t, store.VisualLatestDir())
	assert.DirExists(t, store.VisualBaselineDir())
}

func TestLoadBaseline_NullContrastSurvives(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.PromoteBaseline(&model.Snapshot{
		Orgs: map[string]model.OrgSnapshot{"acme": {}},
	}))

	data, err := os.ReadFile(store.Path(BaselineFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"primaryOnWhite": null`)

	got, ok, err := store.LoadBaseline()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, got.Orgs["acme"].Contrast.PrimaryOnWhite)
}

func TestLoadBaseline_Corrupt(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.WriteFile(BaselineFile, []byte("{not json")))
	_, _, err := store.LoadBaseline()
	assert.Error(t, err)
}

func TestWriteFile_CreatesParents(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, store.WriteFile(filepath.Join("nested", "dir", ReportFile), []byte("# report")))

	data, err := os.ReadFile(store.Path("nested", "dir", ReportFile))
	require.NoError(t, err)
	assert.Equal(t, "# report", string(data))

	_, err = os.Stat(store.Path("nested", "dir", ReportFile+".tmp"))
	assert.True(t, os.IsNotExist(err))
}
