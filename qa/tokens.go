// Package qa runs the theme token pipeline: extract, build, diff, report.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"themeqa/model"
	"themeqa/regression"
	"themeqa/report"
	"themeqa/snapshot"
	"themeqa/storage"
	"themeqa/theme"
)

const reportTitle = "Theme Token QA Report"

type Options struct {
	Stylesheet     string
	Policy         snapshot.Policy
	UpdateBaseline bool

	Store  *storage.Store
	Source *theme.Source
	Logger *slog.Logger
	Now    func() time.Time
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Source == nil {
		o.Source = theme.NewSource(nil, o.Logger)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type Result struct {
	Snapshot        *model.Snapshot
	Regressions     []model.Regression
	BaselinePresent bool
	ExitCode        int
	ReportPath      string
}

// Report is the report input describing the result.
func (r *Result) Report(update bool) report.Input {
	return report.Input{
		Snapshot:        r.Snapshot,
		Regressions:     r.Regressions,
		BaselinePresent: r.BaselinePresent,
		UpdateBaseline:  update,
	}
}

// RunTokens builds the current snapshot, stores it as latest, and either
// promotes it to baseline or compares it against the stored baseline. The
// returned error is non-nil only for fatal I/O problems; a failure report is
// written before it is returned.
func RunTokens(ctx context.Context, opts Options) (*Result, error) {
	opts.defaults()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := opts.Store.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("ensure output dir: %w", err)
	}

	res, err := runTokens(opts)
	if err != nil {
		return nil, fail(opts.Store, opts.Logger, err)
	}
	return res, nil
}

func runTokens(opts Options) (*Result, error) {
	log := opts.Logger

	blocks, err := opts.Source.LoadFile(opts.Stylesheet)
	if err != nil {
		return nil, err
	}

	snap := snapshot.Build(blocks, opts.Policy, opts.Now())
	log.Info("qa: snapshot built", "orgs", snap.OrgCount, "issues", len(snap.Issues), "strict", snap.StrictMode)

	if err := opts.Store.SaveLatest(snap); err != nil {
		return nil, fmt.Errorf("save latest snapshot: %w", err)
	}

	res := &Result{Snapshot: snap, Regressions: []model.Regression{}}

	if opts.UpdateBaseline {
		if err := opts.Store.PromoteBaseline(snap); err != nil {
			return nil, fmt.Errorf("promote baseline: %w", err)
		}
		log.Info("qa: baseline updated", "path", opts.Store.Path(storage.BaselineFile))
		res.BaselinePresent = true
	} else {
		baseline, ok, err := opts.Store.LoadBaseline()
		if err != nil {
			return nil, fmt.Errorf("load baseline: %w", err)
		}
		res.BaselinePresent = ok
		if ok {
			res.Regressions = regression.Diff(snap, baseline, opts.Policy.DropTolerance)
			if n := len(res.Regressions) + len(snap.BlockingIssues()); n > 0 {
				res.ExitCode = 1
			}
		} else {
			log.Warn("qa: no baseline; run with --update-baseline to create one")
		}
	}

	if err := writeReports(opts.Store, res.Report(opts.UpdateBaseline)); err != nil {
		return nil, err
	}
	res.ReportPath = opts.Store.Path(storage.ReportFile)

	log.Info("qa: done",
		"regressions", len(res.Regressions),
		"blocking", len(snap.BlockingIssues()),
		"baseline", res.BaselinePresent,
		"exit", res.ExitCode)
	return res, nil
}

// fail replaces report.md with a failure report describing err.
func fail(store *storage.Store, log *slog.Logger, err error) error {
	if werr := store.WriteFile(storage.ReportFile, []byte(report.Failure(reportTitle, err))); werr != nil {
		log.Error("qa: write failure report", "error", werr)
		return errors.Join(err, werr)
	}
	return err
}

func writeReports(store *storage.Store, in report.Input) error {
	md := report.Markdown(in)
	if err := store.WriteFile(storage.ReportFile, []byte(md)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	page, err := report.HTML(reportTitle, md)
	if err != nil {
		return err
	}
	if err := store.WriteFile(storage.HTMLFile, page); err != nil {
		return fmt.Errorf("write html report: %w", err)
	}
	return nil
}
