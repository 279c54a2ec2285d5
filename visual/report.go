package visual

import (
	"fmt"
	"strings"
	"time"

	"themeqa/model"
)

type Report struct {
	GeneratedAt    time.Time                    `json:"generatedAt"`
	UpdateBaseline bool                         `json:"updateBaseline"`
	Skipped        bool                         `json:"skipped"`
	SkipReason     string                       `json:"skipReason,omitempty"`
	Error          string                       `json:"error,omitempty"`
	OrgCount       int                          `json:"orgCount"`
	New            int                          `json:"new"`
	Changed        int                          `json:"changed"`
	Unchanged      int                          `json:"unchanged"`
	TotalShots     int                          `json:"totalShots"`
	Records        []model.VisualSnapshotRecord `json:"records"`
}

// ExitCode is 1 when screenshots changed outside update mode.
func (r *Report) ExitCode() int {
	if r.Changed > 0 && !r.UpdateBaseline {
		return 1
	}
	return 0
}

func (r *Report) apply(res *Result) {
	r.Records = res.Records
	r.New = res.New
	r.Changed = res.Changed
	r.Unchanged = res.Unchanged
	r.TotalShots = res.TotalShots
}

func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Visual Snapshot QA Report\n\n")
	fmt.Fprintf(&b, "- Generated: %s\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	if r.UpdateBaseline {
		b.WriteString("- Mode: update baseline\n")
	} else {
		b.WriteString("- Mode: compare\n")
	}

	switch {
	case r.Skipped:
		fmt.Fprintf(&b, "\n**Skipped**: %s\n", r.SkipReason)
		return b.String()
	case r.Error != "":
		fmt.Fprintf(&b, "\n**Failed**: %s\n", r.Error)
	}

	fmt.Fprintf(&b, "- Screenshots: %d\n- New: %d\n- Changed: %d\n- Unchanged: %d\n",
		r.TotalShots, r.New, r.Changed, r.Unchanged)

	if len(r.Records) == 0 {
		return b.String()
	}
	b.WriteString("\n| Org | Page | Status | Hash |\n|---|---|---|---|\n")
	for _, rec := range r.Records {
		hash := rec.ImageHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Fprintf(&b, "| %s | %s | %s | `%s` |\n", rec.OrgID, rec.Page, rec.Status, hash)
	}
	return b.String()
}
