package theme

import (
	"regexp"

	"themeqa/model"
)

// Extractor turns stylesheet text into per-organization token blocks.
type Extractor interface {
	ExtractOrgBlocks(text string) []model.OrgThemeBlock
}

// Grammar describes how organization blocks and their tokens are written.
type Grammar struct {
	// Block matches the selector that opens an organization block. The first
	// capture group is the organization id. The selector must be followed
	// directly by "{"; selectors with descendants are not token blocks.
	Block *regexp.Regexp

	// PropertyPrefix restricts which custom properties count as tokens.
	PropertyPrefix string
}

var defaultBlock = regexp.MustCompile(`\[data-org=["']?([A-Za-z0-9_-]+)["']?\]`)

// DefaultGrammar matches `[data-org="acme"] { --theme-*: value; }` blocks.
func DefaultGrammar() Grammar {
	return Grammar{
		Block:          defaultBlock,
		PropertyPrefix: "--theme-",
	}
}
