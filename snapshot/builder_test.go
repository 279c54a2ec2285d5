package snapshot

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"themeqa/model"
	"themeqa/theme"
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func orgTokens(overrides map[string]string) map[string]string {
	tokens := map[string]string{
		"--theme-primary":       "#1e3a8a",
		"--theme-primary-light": "#93c5fd",
		"--theme-primary-dark":  "#000000",
		"--theme-accent":        "#D4AF37",
		"--theme-background":    "#ffffff",
		"--theme-surface":       "#f8fafc",
		"--theme-text":          "#0f172a",
		"--theme-text-muted":    "#64748b",
		"--theme-gradient":      "linear-gradient(135deg, #1e3a8a 0%, #D4AF37 100%)",
		"--theme-font-family":   `"Inter", sans-serif`,
	}
	for k, v := range overrides {
		if v == "" {
			delete(tokens, k)
			continue
		}
		tokens[k] = v
	}
	return tokens
}

func stylesheet(n int, overrides map[int]map[string]string) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[data-org=\"org-%02d\"] {\n", i)
		for _, name := range DefaultRequiredTokens {
			if v, ok := orgTokens(overrides[i])[name]; ok {
				fmt.Fprintf(&b, "  %s: %s;\n", name, v)
			}
		}
		b.WriteString("}\n")
	}
	return b.String()
}

func build(t *testing.T, css string, policy Policy) *model.Snapshot {
	t.Helper()
	blocks := theme.ExtractOrgBlocks(css)
	return Build(blocks, policy, fixedNow)
}

func issuesOf(s *model.Snapshot, typ model.IssueType) []model.Issue {
	var out []model.Issue
	for _, is := range s.Issues {
		if is.Type == typ {
			out = append(out, is)
		}
	}
	return out
}

func TestBuild_CompleteStylesheetHasNoErrors(t *testing.T) {
	snap := build(t, stylesheet(20, nil), DefaultPolicy())

	assert.Empty(t, snap.BlockingIssues())
	assert.Equal(t, 20, snap.OrgCount)
	assert.Equal(t, snap.ExpectedOrgCount, snap.OrgCount)
	assert.Equal(t, fixedNow, snap.GeneratedAt)
	require.Len(t, snap.Orgs, 20)

	org := snap.Orgs["org-00"]
	assert.Equal(t, 10, org.TokenCount)
	assert.Equal(t, "#D4AF37", org.Tokens["--theme-accent"])
}

func TestBuild_WrongOrgCount(t *testing.T) {
	snap := build(t, stylesheet(19, nil), DefaultPolicy())

	got := issuesOf(snap, model.IssueOrgCount)
	require.Len(t, got, 1)
	assert.Equal(t, model.GlobalOrgID, got[0].OrgID)
	assert.Equal(t, model.SeverityError, got[0].Severity)
	assert.Contains(t, got[0].Detail, "Expected 20")
	assert.Contains(t, got[0].Detail, "found 19")
}

func TestBuild_BestTextContrastIsMax(t *testing.T) {
	snap := build(t, stylesheet(20, map[int]map[string]string{
		3: {"--theme-primary": "#FFFFF0"},
		4: {"--theme-accent": "#777"},
	}), DefaultPolicy())

	for id, org := range snap.Orgs {
		c := org.Contrast
		require.NotNil(t, c.PrimaryBestTextContrast, id)
		want := max(deref(c.PrimaryOnWhite), deref(c.PrimaryOnBlack))
		assert.Equal(t, want, *c.PrimaryBestTextContrast, id)

		require.NotNil(t, c.AccentBestTextContrast, id)
		want = max(deref(c.AccentOnWhite), deref(c.AccentOnBlack))
		assert.Equal(t, want, *c.AccentBestTextContrast, id)
	}
}

func TestBuild_NearWhitePrimary(t *testing.T) {
	snap := build(t, stylesheet(20, map[int]map[string]string{
		0: {"--theme-primary": "#FFFFF0"},
	}), DefaultPolicy())

	c := snap.Orgs["org-00"].Contrast
	require.NotNil(t, c.PrimaryOnWhite)
	require.NotNil(t, c.PrimaryOnBlack)
	assert.InDelta(t, 1.0, *c.PrimaryOnWhite, 0.05)
	assert.Greater(t, *c.PrimaryOnBlack, 19.0)
	assert.Equal(t, *c.PrimaryOnBlack, *c.PrimaryBestTextContrast)

	for _, is := range issuesOf(snap, model.IssueContrast) {
		assert.NotEqual(t, "org-00", is.OrgID, "best contrast against black is sufficient")
	}
}

func TestTextContrastIssue(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		ratio  *float64
		want   bool
		detail string
	}{
		{name: "meets minimum", value: "#777777", ratio: ptr(4.5)},
		{name: "above minimum", value: "#1e3a8a", ratio: ptr(10.36)},
		{name: "below minimum", value: "#777777", ratio: ptr(4.49), want: true, detail: "4.49:1 does not reach 4.5:1"},
		{name: "invalid colour", value: "teal", want: true, detail: `"teal" is not a valid hex color`},
		{name: "missing value", value: "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is, ok := textContrastIssue("acme", "Primary", TokenPrimary, tt.value, tt.ratio, MinTextContrast)
			require.Equal(t, tt.want, ok)
			if !tt.want {
				return
			}
			assert.Equal(t, "acme", is.OrgID)
			assert.Equal(t, model.IssueContrast, is.Type)
			assert.Equal(t, model.SeverityError, is.Severity)
			assert.Equal(t, []string{TokenPrimary}, is.Tokens)
			assert.Contains(t, is.Detail, tt.detail)
		})
	}
}

func TestBuild_GreysAlwaysReachMinimumAgainstWhiteOrBlack(t *testing.T) {
	overrides := map[int]map[string]string{}
	for i := 0; i < 20; i++ {
		grey := fmt.Sprintf("#%02x%02x%02x", 0x70+i, 0x70+i, 0x70+i)
		overrides[i] = map[string]string{"--theme-primary": grey, "--theme-accent": grey}
	}
	snap := build(t, stylesheet(20, overrides), DefaultPolicy())

	for id, org := range snap.Orgs {
		assert.GreaterOrEqual(t, *org.Contrast.PrimaryBestTextContrast, MinTextContrast, id)
	}
	for _, is := range issuesOf(snap, model.IssueContrast) {
		assert.NotContains(t, is.Detail, "does not reach", is.OrgID)
	}
}

func TestBuild_MissingTokens(t *testing.T) {
	snap := build(t, stylesheet(20, map[int]map[string]string{
		7: {"--theme-gradient": "", "--theme-surface": ""},
	}), DefaultPolicy())

	got := issuesOf(snap, model.IssueMissingTokens)
	require.Len(t, got, 1)
	assert.Equal(t, "org-07", got[0].OrgID)
	assert.Equal(t, model.SeverityError, got[0].Severity)
	assert.Equal(t, []string{"--theme-surface", "--theme-gradient"}, got[0].Tokens)
	assert.Equal(t, 8, snap.Orgs["org-07"].TokenCount)
}

func TestBuild_MissingPrimaryDoesNotDoubleReport(t *testing.T) {
	snap := build(t, stylesheet(20, map[int]map[string]string{
		2: {"--theme-primary": ""},
	}), DefaultPolicy())

	for _, is := range issuesOf(snap, model.IssueContrast) {
		assert.NotEqual(t, "org-02", is.OrgID)
	}
	c := snap.Orgs["org-02"].Contrast
	assert.Nil(t, c.PrimaryOnWhite)
	assert.Nil(t, c.PrimaryBestTextContrast)
	assert.Nil(t, c.PrimaryVsLight)
}

func TestBuild_InvalidPrimaryColor(t *testing.T) {
	snap := build(t, stylesheet(20, map[int]map[string]string{
		1: {"--theme-primary": "rebeccapurple"},
	}), DefaultPolicy())

	c := snap.Orgs["org-01"].Contrast
	assert.Nil(t, c.PrimaryOnWhite)
	assert.Nil(t, c.PrimaryOnBlack)
	assert.Nil(t, c.PrimaryBestTextContrast)

	got := issuesOf(snap, model.IssueContrast)
	require.Len(t, got, 1)
	assert.Equal(t, "org-01", got[0].OrgID)
	assert.Equal(t, model.SeverityError, got[0].Severity)
	assert.Contains(t, got[0].Detail, "not a valid hex color")
}

func TestBuild_CloseVariantsDependOnStrictMode(t *testing.T) {
	// #000000 vs #1b1b1b rounds to 1.22:1.
	css := stylesheet(20, map[int]map[string]string{
		9: {
			"--theme-primary":       "#000000",
			"--theme-primary-light": "#1b1b1b",
			"--theme-primary-dark":  "#808080",
		},
	})

	lenient := build(t, css, DefaultPolicy())
	require.NotNil(t, lenient.Orgs["org-09"].Contrast.PrimaryVsLight)
	assert.Equal(t, 1.22, *lenient.Orgs["org-09"].Contrast.PrimaryVsLight)
	assert.Empty(t, issuesOf(lenient, model.IssueContrast))

	strict := build(t, css, DefaultPolicy().WithStrict(true))
	assert.True(t, strict.StrictMode)
	got := issuesOf(strict, model.IssueContrast)
	require.Len(t, got, 1)
	assert.Equal(t, "org-09", got[0].OrgID)
	assert.Equal(t, model.SeverityError, got[0].Severity)
	assert.Equal(t, []string{TokenPrimary, TokenPrimaryLight}, got[0].Tokens)
}

func TestBuild_CloseVariantsWarnWhenNotStrict(t *testing.T) {
	css := stylesheet(20, map[int]map[string]string{
		4: {"--theme-primary-dark": "#1e3a8a"},
	})

	snap := build(t, css, DefaultPolicy())
	got := issuesOf(snap, model.IssueContrast)
	require.Len(t, got, 1)
	assert.Equal(t, model.SeverityWarn, got[0].Severity)
	assert.Contains(t, got[0].Detail, "primary-dark")
	assert.Empty(t, snap.BlockingIssues())

	strict := build(t, css, DefaultPolicy().WithStrict(true))
	require.Len(t, strict.BlockingIssues(), 1)
}

func TestBuild_Deterministic(t *testing.T) {
	css := stylesheet(20, map[int]map[string]string{3: {"--theme-text": ""}})
	a := build(t, css, DefaultPolicy())
	b := build(t, css, DefaultPolicy())
	assert.Equal(t, a, b)
}

func ptr(f float64) *float64 { return &f }

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
