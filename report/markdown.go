// Package report renders snapshots and regressions for people and machines.
// It formats only; issue and regression content is passed through untouched.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"themeqa/model"
)

// Input is everything a token QA report shows.
type Input struct {
	Snapshot        *model.Snapshot
	Regressions     []model.Regression
	BaselinePresent bool
	UpdateBaseline  bool
}

var (
	severityOrder = []model.Severity{model.SeverityError, model.SeverityWarn}
	issueOrder    = []model.IssueType{model.IssueOrgCount, model.IssueMissingTokens, model.IssueContrast}
)

// JSON renders the snapshot as indented JSON.
func JSON(s *model.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Markdown renders the human-readable token QA report.
func Markdown(in Input) string {
	s := in.Snapshot
	var b strings.Builder

	b.WriteString("# Theme Token QA Report\n\n")
	fmt.Fprintf(&b, "- Generated: %s\n", s.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Organizations: %d / %d expected\n", s.OrgCount, s.ExpectedOrgCount)
	fmt.Fprintf(&b, "- Strict mode: %s\n", yesNo(s.StrictMode))
	fmt.Fprintf(&b, "- Baseline: %s\n", presence(in.BaselinePresent))
	if in.UpdateBaseline {
		b.WriteString("- Mode: update baseline\n")
	} else {
		b.WriteString("- Mode: compare\n")
	}

	b.WriteString("\n## Issues\n")
	writeIssues(&b, s.Issues)

	b.WriteString("\n## Regressions\n\n")
	switch {
	case in.UpdateBaseline:
		b.WriteString("Baseline updated from this run; regressions were not evaluated.\n")
	case !in.BaselinePresent:
		b.WriteString("No baseline found. Run with `--update-baseline` to create one.\n")
	case len(in.Regressions) == 0:
		b.WriteString("No regressions.\n")
	default:
		for _, r := range in.Regressions {
			fmt.Fprintf(&b, "- **%s** `%s`: %s\n", r.Type, r.OrgID, r.Detail)
		}
	}

	b.WriteString("\n## Contrast summary\n\n")
	writeContrastTable(&b, s)

	return b.String()
}

func writeIssues(b *strings.Builder, issues []model.Issue) {
	for _, sev := range severityOrder {
		var group []model.Issue
		for _, is := range issues {
			if is.Severity == sev {
				group = append(group, is)
			}
		}
		fmt.Fprintf(b, "\n### %s (%d)\n", severityTitle(sev), len(group))
		if len(group) == 0 {
			b.WriteString("\nNone.\n")
			continue
		}
		for _, typ := range issueOrder {
			var lines []string
			for _, is := range group {
				if is.Type == typ {
					lines = append(lines, fmt.Sprintf("- `%s`: %s", is.OrgID, is.Detail))
				}
			}
			if len(lines) == 0 {
				continue
			}
			fmt.Fprintf(b, "\n#### %s\n\n%s\n", typ, strings.Join(lines, "\n"))
		}
	}
}

func writeContrastTable(b *strings.Builder, s *model.Snapshot) {
	if len(s.Orgs) == 0 {
		b.WriteString("No organizations extracted.\n")
		return
	}
	ids := make([]string, 0, len(s.Orgs))
	for id := range s.Orgs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b.WriteString("| Org | Tokens | Primary best | Accent best | Primary vs light | Primary vs dark |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, id := range ids {
		org := s.Orgs[id]
		c := org.Contrast
		fmt.Fprintf(b, "| %s | %d | %s | %s | %s | %s |\n",
			id, org.TokenCount,
			Ratio(c.PrimaryBestTextContrast), Ratio(c.AccentBestTextContrast),
			Ratio(c.PrimaryVsLight), Ratio(c.PrimaryVsDark))
	}
}

// Failure renders the report written when a run aborts.
func Failure(title string, err error) string {
	return fmt.Sprintf("# %s\n\nThe run aborted with an error.\n\n```\n%v\n```\n", title, err)
}

// Ratio formats a contrast ratio, "n/a" when unknown.
func Ratio(r *float64) string {
	if r == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f:1", *r)
}

func severityTitle(s model.Severity) string {
	if s == model.SeverityError {
		return "Errors"
	}
	return "Warnings"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func presence(v bool) string {
	if v {
		return "present"
	}
	return "missing"
}
