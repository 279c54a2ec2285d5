// Package visual captures per-organization screenshots and compares them
// with a stored baseline by content hash.
package visual

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"themeqa/model"
)

// Comparator steps through every (org, page) pair on a single rendering
// session, one capture at a time.
type Comparator struct {
	Renderer Renderer
	BaseURL  string
	OrgParam string

	// CaptureDir receives the new screenshots; BaselineDir is compared
	// against. In update mode CaptureDir is the staging area for the new
	// baseline and nothing is classified.
	CaptureDir  string
	BaselineDir string
	Update      bool

	Logger *slog.Logger
}

type Result struct {
	Records    []model.VisualSnapshotRecord
	New        int
	Changed    int
	Unchanged  int
	TotalShots int
}

func (c *Comparator) Run(ctx context.Context, orgs, pages []string) (*Result, error) {
	log := c.Logger
	if log == nil {
		log = slog.Default()
	}
	orgs = append([]string(nil), orgs...)
	sort.Strings(orgs)

	res := &Result{Records: []model.VisualSnapshotRecord{}}
	for _, org := range orgs {
		for _, page := range pages {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			target, err := PageURL(c.BaseURL, page, c.OrgParam, org)
			if err != nil {
				return nil, err
			}
			rel := ShotPath(org, page)
			shot := filepath.Join(c.CaptureDir, rel)

			if err := c.Renderer.Screenshot(ctx, target, shot); err != nil {
				return nil, fmt.Errorf("capture %s %s: %w", org, page, err)
			}
			res.TotalShots++

			rec := model.VisualSnapshotRecord{OrgID: org, Page: page, Path: rel}
			if c.Update {
				rec.Status = model.VisualUpdated
				rec.ImageHash, err = HashFile(shot)
			} else {
				rec.Status, rec.ImageHash, err = Classify(shot, filepath.Join(c.BaselineDir, rel))
			}
			if err != nil {
				return nil, err
			}

			switch rec.Status {
			case model.VisualNew:
				res.New++
			case model.VisualChanged:
				res.Changed++
			case model.VisualUnchanged:
				res.Unchanged++
			}
			log.Debug("visual: captured", "org", org, "page", page, "status", rec.Status)
			res.Records = append(res.Records, rec)
		}
	}
	return res, nil
}

// PageURL builds the address of page rendered for org.
func PageURL(base, page, param, org string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	p, err := url.Parse(page)
	if err != nil {
		return "", fmt.Errorf("parse page %q: %w", page, err)
	}
	u = u.ResolveReference(p)
	q := u.Query()
	q.Set(param, org)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ShotPath is the screenshot location relative to a latest or baseline dir.
func ShotPath(org, page string) string {
	return filepath.Join(org, pageSlug(page)+".png")
}

func pageSlug(page string) string {
	if i := strings.IndexAny(page, "?#"); i >= 0 {
		page = page[:i]
	}
	slug := strings.Trim(page, "/")
	if slug == "" {
		return "home"
	}
	return strings.NewReplacer("/", "-", ".", "-").Replace(slug)
}
