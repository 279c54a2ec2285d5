// Package snapshot builds an issue-annotated Snapshot from extracted theme
// blocks.
package snapshot

import (
	"fmt"
	"strings"
	"time"

	"themeqa/contrast"
	"themeqa/model"
)

// Build computes the snapshot for blocks under policy. Data-quality problems
// are recorded as issues; Build itself never fails.
func Build(blocks []model.OrgThemeBlock, policy Policy, now time.Time) *model.Snapshot {
	rule := policy.closeRule()
	snap := &model.Snapshot{
		GeneratedAt:      now.UTC(),
		StrictMode:       policy.Strict,
		ExpectedOrgCount: policy.ExpectedOrgCount,
		OrgCount:         len(blocks),
		RequiredTokens:   append([]string(nil), policy.RequiredTokens...),
		Orgs:             make(map[string]model.OrgSnapshot, len(blocks)),
		Issues:           []model.Issue{},
	}

	for _, block := range blocks {
		org, issues := buildOrg(block, policy, rule)
		snap.Orgs[block.OrgID] = org
		snap.Issues = append(snap.Issues, issues...)
	}

	if snap.OrgCount != policy.ExpectedOrgCount {
		snap.Issues = append(snap.Issues, model.Issue{
			OrgID:    model.GlobalOrgID,
			Type:     model.IssueOrgCount,
			Severity: model.SeverityError,
			Detail:   fmt.Sprintf("Expected %d organizations, found %d", policy.ExpectedOrgCount, snap.OrgCount),
		})
	}

	return snap
}

func buildOrg(block model.OrgThemeBlock, policy Policy, rule closeRule) (model.OrgSnapshot, []model.Issue) {
	var issues []model.Issue
	tokens := block.Tokens

	var missing []string
	for _, name := range policy.RequiredTokens {
		if _, ok := tokens.Get(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		issues = append(issues, model.Issue{
			OrgID:    block.OrgID,
			Type:     model.IssueMissingTokens,
			Severity: model.SeverityError,
			Detail:   fmt.Sprintf("Missing %d required token(s): %s", len(missing), strings.Join(missing, ", ")),
			Tokens:   missing,
		})
	}

	primary, _ := tokens.Get(TokenPrimary)
	accent, _ := tokens.Get(TokenAccent)
	light, _ := tokens.Get(TokenPrimaryLight)
	dark, _ := tokens.Get(TokenPrimaryDark)

	c := model.ContrastReport{
		PrimaryOnWhite: contrast.RoundedRatio(primary, contrast.White),
		PrimaryOnBlack: contrast.RoundedRatio(primary, contrast.Black),
		AccentOnWhite:  contrast.RoundedRatio(accent, contrast.White),
		AccentOnBlack:  contrast.RoundedRatio(accent, contrast.Black),
		PrimaryVsLight: contrast.RoundedRatio(primary, light),
		PrimaryVsDark:  contrast.RoundedRatio(primary, dark),
	}
	c.PrimaryBestTextContrast = best(c.PrimaryOnWhite, c.PrimaryOnBlack)
	c.AccentBestTextContrast = best(c.AccentOnWhite, c.AccentOnBlack)

	if is, ok := textContrastIssue(block.OrgID, "Primary", TokenPrimary, primary, c.PrimaryBestTextContrast, MinTextContrast); ok {
		issues = append(issues, is)
	}
	if is, ok := textContrastIssue(block.OrgID, "Accent", TokenAccent, accent, c.AccentBestTextContrast, MinTextContrast); ok {
		issues = append(issues, is)
	}

	for _, v := range []struct {
		label string
		token string
		ratio *float64
	}{
		{"light", TokenPrimaryLight, c.PrimaryVsLight},
		{"dark", TokenPrimaryDark, c.PrimaryVsDark},
	} {
		if v.ratio == nil || *v.ratio >= rule.threshold {
			continue
		}
		issues = append(issues, model.Issue{
			OrgID:    block.OrgID,
			Type:     model.IssueContrast,
			Severity: rule.severity,
			Detail: fmt.Sprintf("Primary vs primary-%s contrast %.2f:1 is below %.2f:1; variants are too close to tell apart",
				v.label, *v.ratio, rule.threshold),
			Tokens: []string{TokenPrimary, v.token},
		})
	}

	return model.OrgSnapshot{
		TokenCount: tokens.Len(),
		Tokens:     tokens.Map(),
		Contrast:   c,
	}, issues
}

func textContrastIssue(orgID, label, token, value string, ratio *float64, minRatio float64) (model.Issue, bool) {
	if strings.TrimSpace(value) == "" {
		// reported as a missing token
		return model.Issue{}, false
	}
	if ratio == nil {
		return model.Issue{
			OrgID:    orgID,
			Type:     model.IssueContrast,
			Severity: model.SeverityError,
			Detail:   fmt.Sprintf("%s color %q is not a valid hex color; contrast cannot be verified", label, value),
			Tokens:   []string{token},
		}, true
	}
	if *ratio >= minRatio {
		return model.Issue{}, false
	}
	return model.Issue{
		OrgID:    orgID,
		Type:     model.IssueContrast,
		Severity: model.SeverityError,
		Detail:   fmt.Sprintf("%s color best text contrast %.2f:1 does not reach %.1f:1 against white or black", label, *ratio, minRatio),
		Tokens:   []string{token},
	}, true
}

// best is max(a ?? 0, b ?? 0), or nil when neither side is known.
func best(a, b *float64) *float64 {
	if a == nil && b == nil {
		return nil
	}
	var x, y float64
	if a != nil {
		x = *a
	}
	if b != nil {
		y = *b
	}
	m := contrast.Round2(max(x, y))
	return &m
}
