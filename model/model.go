package model

import (
	"time"
)

// TokenSet is an insertion-ordered map of custom-property name to raw value.
type TokenSet struct {
	names  []string
	values map[string]string
}

func NewTokenSet() *TokenSet {
	return &TokenSet{values: make(map[string]string)}
}

// Set stores value under name. A name that is already present keeps its
// position and takes the new value.
func (t *TokenSet) Set(name, value string) {
	if _, ok := t.values[name]; !ok {
		t.names = append(t.names, name)
	}
	t.values[name] = value
}

func (t *TokenSet) Get(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t.values[name]
	return v, ok
}

// Names returns the token names in declaration order.
func (t *TokenSet) Names() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.names...)
}

func (t *TokenSet) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Map returns a copy of the tokens as a plain map.
func (t *TokenSet) Map() map[string]string {
	out := make(map[string]string, t.Len())
	if t == nil {
		return out
	}
	for k, v := range t.values {
		out[k] = v
	}
	return out
}

// OrgThemeBlock is the set of theme tokens declared for one organization.
type OrgThemeBlock struct {
	OrgID  string
	Tokens *TokenSet
}

type ContrastReport struct {
	PrimaryOnWhite          *float64 `json:"primaryOnWhite"`
	PrimaryOnBlack          *float64 `json:"primaryOnBlack"`
	AccentOnWhite           *float64 `json:"accentOnWhite"`
	AccentOnBlack           *float64 `json:"accentOnBlack"`
	PrimaryVsLight          *float64 `json:"primaryVsLight"`
	PrimaryVsDark           *float64 `json:"primaryVsDark"`
	PrimaryBestTextContrast *float64 `json:"primaryBestTextContrast"`
	AccentBestTextContrast  *float64 `json:"accentBestTextContrast"`
}

type OrgSnapshot struct {
	TokenCount int               `json:"tokenCount"`
	Tokens     map[string]string `json:"tokens"`
	Contrast   ContrastReport    `json:"contrast"`
}

type IssueType string

const (
	IssueMissingTokens IssueType = "missing_tokens"
	IssueContrast      IssueType = "contrast"
	IssueOrgCount      IssueType = "org_count"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// GlobalOrgID is the org id used for issues that concern the whole stylesheet.
const GlobalOrgID = "global"

type Issue struct {
	OrgID    string    `json:"orgId"`
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	Detail   string    `json:"detail"`
	Tokens   []string  `json:"tokens,omitempty"`
}

type Snapshot struct {
	GeneratedAt      time.Time              `json:"generatedAt"`
	StrictMode       bool                   `json:"strictMode"`
	ExpectedOrgCount int                    `json:"expectedOrgCount"`
	OrgCount         int                    `json:"orgCount"`
	RequiredTokens   []string               `json:"requiredTokens"`
	Orgs             map[string]OrgSnapshot `json:"orgs"`
	Issues           []Issue                `json:"issues"`
}

// BlockingIssues returns the error-severity issues of the snapshot.
func (s *Snapshot) BlockingIssues() []Issue {
	var out []Issue
	for _, is := range s.Issues {
		if is.Severity == SeverityError {
			out = append(out, is)
		}
	}
	return out
}

type RegressionType string

const (
	RegressionRemovedOrg   RegressionType = "removed_org"
	RegressionNewOrg       RegressionType = "new_org"
	RegressionRemovedToken RegressionType = "removed_token"
	RegressionNewToken     RegressionType = "new_token"
	RegressionTokenChange  RegressionType = "token_change"
	RegressionContrastDrop RegressionType = "contrast_drop"
)

type Regression struct {
	Type   RegressionType `json:"type"`
	OrgID  string         `json:"orgId"`
	Detail string         `json:"detail"`
}

type VisualStatus string

const (
	VisualNew       VisualStatus = "new"
	VisualChanged   VisualStatus = "changed"
	VisualUnchanged VisualStatus = "unchanged"
	VisualUpdated   VisualStatus = "updated" // written straight to baseline
)

type VisualSnapshotRecord struct {
	OrgID     string       `json:"orgId"`
	Page      string       `json:"page"`
	ImageHash string       `json:"imageHash"`
	Path      string       `json:"path"`
	Status    VisualStatus `json:"status"`
}
