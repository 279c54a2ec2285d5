package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"themeqa/model"
)

var (
	passStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// Summary is the one-screen outcome of a run.
type Summary struct {
	Title    string
	Passed   bool
	Counts   []Count
	Artifact string
}

type Count struct {
	Label string
	N     int
	// Bad marks counts that fail the run when non-zero.
	Bad bool
}

// Console writes a short coloured summary to w.
func Console(w io.Writer, s Summary) {
	status := passStyle.Render("PASS")
	if !s.Passed {
		status = failStyle.Render("FAIL")
	}
	fmt.Fprintf(w, "%s %s\n", status, s.Title)
	for _, c := range s.Counts {
		line := fmt.Sprintf("  %-18s %d", c.Label, c.N)
		switch {
		case c.N > 0 && c.Bad:
			line = failStyle.Render(line)
		case c.N > 0:
			line = warnStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
	if s.Artifact != "" {
		fmt.Fprintln(w, dimStyle.Render("  report: "+s.Artifact))
	}
}

// TokenSummary summarises a token QA run.
func TokenSummary(in Input, passed bool, artifact string) Summary {
	s := in.Snapshot
	var errs, warns int
	for _, is := range s.Issues {
		if is.Severity == model.SeverityError {
			errs++
		} else {
			warns++
		}
	}
	return Summary{
		Title:  fmt.Sprintf("theme tokens (%d/%d orgs)", s.OrgCount, s.ExpectedOrgCount),
		Passed: passed,
		Counts: []Count{
			{Label: "blocking issues", N: errs, Bad: in.BaselinePresent && !in.UpdateBaseline},
			{Label: "warnings", N: warns},
			{Label: "regressions", N: len(in.Regressions), Bad: true},
		},
		Artifact: artifact,
	}
}
