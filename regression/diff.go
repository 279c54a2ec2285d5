// Package regression compares a current snapshot against its baseline.
package regression

import (
	"fmt"
	"sort"

	"themeqa/model"
)

// metric is a contrast value watched for drops.
type metric struct {
	name string
	get  func(model.ContrastReport) *float64
}

var watchedMetrics = []metric{
	{"primaryBestTextContrast", func(c model.ContrastReport) *float64 { return c.PrimaryBestTextContrast }},
	{"accentBestTextContrast", func(c model.ContrastReport) *float64 { return c.AccentBestTextContrast }},
	{"primaryVsLight", func(c model.ContrastReport) *float64 { return c.PrimaryVsLight }},
	{"primaryVsDark", func(c model.ContrastReport) *float64 { return c.PrimaryVsDark }},
}

// Diff lists the regressions of current relative to baseline. Removed orgs
// come first; the remaining entries follow current's org ids in ascending
// order. A contrast metric regresses only when it falls more than tolerance
// below its baseline value.
func Diff(current, baseline *model.Snapshot, tolerance float64) []model.Regression {
	regs := []model.Regression{}

	for _, id := range sortedKeys(baseline.Orgs) {
		if _, ok := current.Orgs[id]; !ok {
			regs = append(regs, model.Regression{
				Type:   model.RegressionRemovedOrg,
				OrgID:  id,
				Detail: fmt.Sprintf("Organization %q is no longer present", id),
			})
		}
	}

	for _, id := range sortedKeys(current.Orgs) {
		cur := current.Orgs[id]
		base, ok := baseline.Orgs[id]
		if !ok {
			regs = append(regs, model.Regression{
				Type:   model.RegressionNewOrg,
				OrgID:  id,
				Detail: fmt.Sprintf("Organization %q is new (%d tokens)", id, cur.TokenCount),
			})
			continue
		}
		regs = append(regs, diffOrg(id, cur, base, tolerance)...)
	}

	return regs
}

func diffOrg(id string, cur, base model.OrgSnapshot, tolerance float64) []model.Regression {
	var removed, changed, added, drops []model.Regression

	for _, name := range sortedKeys(base.Tokens) {
		was := base.Tokens[name]
		now, ok := cur.Tokens[name]
		switch {
		case !ok:
			removed = append(removed, model.Regression{
				Type:   model.RegressionRemovedToken,
				OrgID:  id,
				Detail: fmt.Sprintf("%s was removed (was %s)", name, was),
			})
		case now != was:
			changed = append(changed, model.Regression{
				Type:   model.RegressionTokenChange,
				OrgID:  id,
				Detail: fmt.Sprintf("%s changed from %s to %s", name, was, now),
			})
		}
	}
	for _, name := range sortedKeys(cur.Tokens) {
		if _, ok := base.Tokens[name]; !ok {
			added = append(added, model.Regression{
				Type:   model.RegressionNewToken,
				OrgID:  id,
				Detail: fmt.Sprintf("%s was added (%s)", name, cur.Tokens[name]),
			})
		}
	}

	for _, m := range watchedMetrics {
		was, now := m.get(base.Contrast), m.get(cur.Contrast)
		if was == nil || now == nil {
			continue
		}
		if *now < *was-tolerance {
			drops = append(drops, model.Regression{
				Type:   model.RegressionContrastDrop,
				OrgID:  id,
				Detail: fmt.Sprintf("%s dropped from %.2f to %.2f", m.name, *was, *now),
			})
		}
	}

	out := make([]model.Regression, 0, len(removed)+len(changed)+len(added)+len(drops))
	out = append(out, removed...)
	out = append(out, changed...)
	out = append(out, added...)
	return append(out, drops...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
