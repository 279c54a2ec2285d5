package visual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"themeqa/storage"
	"themeqa/theme"
)

const stagingDir = "baseline.staging"

type Options struct {
	// Orgs lists the organizations to capture. When empty they are read
	// from Stylesheet.
	Orgs       []string
	Stylesheet string
	Source     *theme.Source

	Pages    []string
	BaseURL  string
	OrgParam string
	Update   bool

	Server      ServerConfig
	NewRenderer RendererFactory
	Store       *storage.Store
	Logger      *slog.Logger
	Now         func() time.Time
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.OrgParam == "" {
		o.OrgParam = "org"
	}
	if o.Server.Logger == nil {
		o.Server.Logger = o.Logger
	}
	if o.Source == nil {
		o.Source = theme.NewSource(nil, o.Logger)
	}
	if o.Server.ReadyURL == "" {
		o.Server.ReadyURL = o.BaseURL
	}
}

// Run performs one visual pass. A missing renderer skips the pass. Other
// failures are returned after the report has been written; in update mode
// the baseline is only replaced once every capture has succeeded.
func Run(ctx context.Context, opts Options) (*Report, error) {
	opts.defaults()
	log := opts.Logger
	rep := &Report{GeneratedAt: opts.Now().UTC(), UpdateBaseline: opts.Update}

	if err := opts.Store.EnsureVisualDirs(); err != nil {
		return nil, fmt.Errorf("ensure output dir: %w", err)
	}

	orgs, err := opts.orgs()
	if err != nil {
		return rep, fail(opts.Store, rep, err)
	}
	rep.OrgCount = len(orgs)

	renderer, err := opts.NewRenderer(ctx)
	if errors.Is(err, ErrRendererUnavailable) {
		log.Warn("visual: skipped", "reason", err)
		rep.Skipped = true
		rep.SkipReason = err.Error()
		return rep, writeReport(opts.Store, rep)
	}
	if err != nil {
		return rep, fail(opts.Store, rep, err)
	}
	defer func() {
		if cerr := renderer.Close(); cerr != nil {
			log.Warn("visual: close renderer", "error", cerr)
		}
	}()

	captureDir := opts.Store.VisualLatestDir()
	if opts.Update {
		captureDir = opts.Store.Path(storage.VisualDir, stagingDir)
		if err := os.RemoveAll(captureDir); err != nil {
			return rep, fail(opts.Store, rep, err)
		}
	}

	cmp := &Comparator{
		Renderer:    renderer,
		BaseURL:     opts.BaseURL,
		OrgParam:    opts.OrgParam,
		CaptureDir:  captureDir,
		BaselineDir: opts.Store.VisualBaselineDir(),
		Update:      opts.Update,
		Logger:      log,
	}

	err = WithDevServer(ctx, opts.Server, func(ctx context.Context) error {
		res, err := cmp.Run(ctx, orgs, opts.Pages)
		if err != nil {
			return err
		}
		rep.apply(res)
		return nil
	})
	if err != nil {
		return rep, fail(opts.Store, rep, err)
	}

	if opts.Update {
		if err := promote(captureDir, opts.Store.VisualBaselineDir(), rep); err != nil {
			return rep, fail(opts.Store, rep, err)
		}
	}

	log.Info("visual: done", "shots", rep.TotalShots, "new", rep.New,
		"changed", rep.Changed, "unchanged", rep.Unchanged, "update", opts.Update)
	return rep, writeReport(opts.Store, rep)
}

func (o *Options) orgs() ([]string, error) {
	if len(o.Orgs) > 0 || o.Stylesheet == "" {
		return o.Orgs, nil
	}
	blocks, err := o.Source.LoadFile(o.Stylesheet)
	if err != nil {
		return nil, err
	}
	orgs := make([]string, 0, len(blocks))
	for _, b := range blocks {
		orgs = append(orgs, b.OrgID)
	}
	return orgs, nil
}

// promote moves every staged screenshot over its baseline file.
func promote(staging, baseline string, rep *Report) error {
	for _, rec := range rep.Records {
		dst := filepath.Join(baseline, rec.Path)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.Rename(filepath.Join(staging, rec.Path), dst); err != nil {
			return fmt.Errorf("promote %s: %w", rec.Path, err)
		}
	}
	return os.RemoveAll(staging)
}

func fail(store *storage.Store, rep *Report, err error) error {
	rep.Error = err.Error()
	if werr := writeReport(store, rep); werr != nil {
		return errors.Join(err, werr)
	}
	return err
}

func writeReport(store *storage.Store, rep *Report) error {
	if err := store.WriteJSON(filepath.Join(storage.VisualDir, storage.VisualReportJSON), rep); err != nil {
		return err
	}
	return store.WriteFile(filepath.Join(storage.VisualDir, storage.VisualReportMD), []byte(rep.Markdown()))
}
