package snapshot

import "themeqa/model"

// Token names the builder reads contrast inputs from.
const (
	TokenPrimary      = "--theme-primary"
	TokenPrimaryLight = "--theme-primary-light"
	TokenPrimaryDark  = "--theme-primary-dark"
	TokenAccent       = "--theme-accent"
)

// DefaultRequiredTokens is the token set every organization must declare.
var DefaultRequiredTokens = []string{
	"--theme-primary",
	"--theme-primary-light",
	"--theme-primary-dark",
	"--theme-accent",
	"--theme-background",
	"--theme-surface",
	"--theme-text",
	"--theme-text-muted",
	"--theme-gradient",
	"--theme-font-family",
}

// MinTextContrast is the WCAG AA minimum for primary and accent text against
// white or black. It is fixed and not part of Policy.
const MinTextContrast = 4.5

const (
	DefaultExpectedOrgCount     = 20
	DefaultCloseThreshold       = 1.2
	DefaultStrictCloseThreshold = 1.25
	DefaultDropTolerance        = 0.5
)

// Policy is the immutable set of rules a snapshot is built against.
type Policy struct {
	RequiredTokens   []string
	ExpectedOrgCount int
	Strict           bool

	// CloseThreshold and StrictCloseThreshold bound how close primary may be
	// to its light and dark variants.
	CloseThreshold       float64
	StrictCloseThreshold float64

	// DropTolerance is how far a contrast metric may fall below baseline
	// before it counts as a regression.
	DropTolerance float64
}

func DefaultPolicy() Policy {
	return Policy{
		RequiredTokens:       append([]string(nil), DefaultRequiredTokens...),
		ExpectedOrgCount:     DefaultExpectedOrgCount,
		CloseThreshold:       DefaultCloseThreshold,
		StrictCloseThreshold: DefaultStrictCloseThreshold,
		DropTolerance:        DefaultDropTolerance,
	}
}

// WithStrict returns a copy of p with strict mode set.
func (p Policy) WithStrict(strict bool) Policy {
	p.Strict = strict
	p.RequiredTokens = append([]string(nil), p.RequiredTokens...)
	return p
}

// closeRule is the too-close threshold and severity for the policy's mode.
type closeRule struct {
	threshold float64
	severity  model.Severity
}

func (p Policy) closeRule() closeRule {
	if p.Strict {
		return closeRule{threshold: p.StrictCloseThreshold, severity: model.SeverityError}
	}
	return closeRule{threshold: p.CloseThreshold, severity: model.SeverityWarn}
}
