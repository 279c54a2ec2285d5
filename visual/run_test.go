package visual

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"themeqa/model"
	"themeqa/storage"
	"themeqa/theme"
)

func runOptions(t *testing.T, store *storage.Store, r Renderer) Options {
	srv := okServer(t)
	return Options{
		Orgs:    []string{"globex", "acme"},
		Pages:   []string{"/", "/login"},
		BaseURL: srv.URL,
		Store:   store,
		NewRenderer: func(context.Context) (Renderer, error) {
			return r, nil
		},
		Now: func() time.Time { return time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC) },
	}
}

func readReport(t *testing.T, store *storage.Store) Report {
	t.Helper()
	data, err := os.ReadFile(store.Path(storage.VisualDir, storage.VisualReportJSON))
	require.NoError(t, err)
	var rep Report
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.FileExists(t, store.Path(storage.VisualDir, storage.VisualReportMD))
	return rep
}

func TestRun_SkipsWithoutRenderer(t *testing.T) {
	store := storage.New(t.TempDir())
	opts := runOptions(t, store, nil)
	opts.NewRenderer = func(context.Context) (Renderer, error) {
		return nil, ErrRendererUnavailable
	}
	// An unreachable server proves the dev server is never started.
	opts.BaseURL = "http://127.0.0.1:1"

	rep, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, rep.Skipped)
	assert.Equal(t, 0, rep.ExitCode())
	assert.True(t, readReport(t, store).Skipped)
}

func TestRun_UpdateThenCompare(t *testing.T) {
	store := storage.New(t.TempDir())
	r := newFakeRenderer()

	opts := runOptions(t, store, r)
	opts.Update = true
	rep, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.TotalShots)
	assert.Equal(t, 0, rep.ExitCode())
	assert.True(t, r.closed)
	for _, rec := range rep.Records {
		assert.Equal(t, model.VisualUpdated, rec.Status)
		assert.FileExists(t, filepath.Join(store.VisualBaselineDir(), rec.Path))
	}
	assert.NoDirExists(t, store.Path(storage.VisualDir, stagingDir))

	rep, err = Run(context.Background(), runOptions(t, store, newFakeRenderer()))
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Unchanged)
	assert.Equal(t, 0, rep.ExitCode())
	assert.FileExists(t, filepath.Join(store.VisualLatestDir(), "acme", "login.png"))
}

func TestRun_ChangedScreenshotFails(t *testing.T) {
	store := storage.New(t.TempDir())
	opts := runOptions(t, store, newFakeRenderer())
	opts.Update = true
	_, err := Run(context.Background(), opts)
	require.NoError(t, err)

	r := newFakeRenderer()
	opts = runOptions(t, store, r)
	r.images[opts.BaseURL+"/login?org=acme"] = []byte("\x89PNG new header")
	rep, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Changed)
	assert.Equal(t, 3, rep.Unchanged)
	assert.Equal(t, 1, rep.ExitCode())
	assert.Equal(t, 1, readReport(t, store).Changed)
}

func TestRun_FirstCompareIsAllNew(t *testing.T) {
	store := storage.New(t.TempDir())
	rep, err := Run(context.Background(), runOptions(t, store, newFakeRenderer()))
	require.NoError(t, err)
	assert.Equal(t, 4, rep.New)
	assert.Equal(t, 0, rep.ExitCode())
}

func TestRun_FailedUpdateKeepsBaseline(t *testing.T) {
	store := storage.New(t.TempDir())
	opts := runOptions(t, store, newFakeRenderer())
	opts.Update = true
	_, err := Run(context.Background(), opts)
	require.NoError(t, err)
	original, err := os.ReadFile(filepath.Join(store.VisualBaselineDir(), "acme", "home.png"))
	require.NoError(t, err)

	r := newFakeRenderer()
	r.fallback = []byte("\x89PNG replacement")
	opts = runOptions(t, store, r)
	opts.Update = true
	r.failOn = opts.BaseURL + "/login?org=globex"

	_, err = Run(context.Background(), opts)
	require.Error(t, err)

	after, err := os.ReadFile(filepath.Join(store.VisualBaselineDir(), "acme", "home.png"))
	require.NoError(t, err)
	assert.Equal(t, original, after, "partial update must not touch the baseline")
	assert.Contains(t, readReport(t, store).Error, "page crashed")
}

func TestRun_ServerNeverReady(t *testing.T) {
	store := storage.New(t.TempDir())
	r := newFakeRenderer()
	opts := runOptions(t, store, r)
	opts.BaseURL = closedURL(t)
	opts.Server.ReadyTimeout = 200 * time.Millisecond
	opts.Server.PollInterval = 20 * time.Millisecond

	_, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, ErrServerNotReady)
	assert.Empty(t, r.calls)
	assert.True(t, r.closed)
	assert.NotEmpty(t, readReport(t, store).Error)
}

func TestRun_RendererLaunchError(t *testing.T) {
	store := storage.New(t.TempDir())
	opts := runOptions(t, store, nil)
	opts.NewRenderer = func(context.Context) (Renderer, error) {
		return nil, errors.New("chrome crashed on start")
	}
	_, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.False(t, readReport(t, store).Skipped)
}

func TestRun_OrgsFromStylesheet(t *testing.T) {
	dir := t.TempDir()
	css := filepath.Join(dir, "themes.css")
	require.NoError(t, os.WriteFile(css, []byte(`
[data-org="zeta"] { --theme-primary: #111111; }
[data-org="acme"] { --theme-primary: #222222; }
`), 0o644))

	store := storage.New(filepath.Join(dir, "qa"))
	r := newFakeRenderer()
	opts := runOptions(t, store, r)
	opts.Orgs = nil
	opts.Stylesheet = css
	opts.Pages = []string{"/"}

	rep, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.OrgCount)
	assert.ElementsMatch(t, []string{opts.BaseURL + "/?org=acme", opts.BaseURL + "/?org=zeta"}, r.calls)
}

func TestRun_MissingStylesheetWritesReport(t *testing.T) {
	dir := t.TempDir()
	store := storage.New(filepath.Join(dir, "qa"))
	opened := false
	opts := runOptions(t, store, nil)
	opts.Orgs = nil
	opts.Stylesheet = filepath.Join(dir, "missing.css")
	opts.NewRenderer = func(context.Context) (Renderer, error) {
		opened = true
		return newFakeRenderer(), nil
	}

	_, err := Run(context.Background(), opts)
	var missing *theme.MissingFileError
	require.ErrorAs(t, err, &missing)
	assert.False(t, opened)
	assert.Contains(t, readReport(t, store).Error, "missing.css")
}
