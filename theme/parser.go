package theme

import (
	"sort"
	"strings"

	"themeqa/model"
)

// ExtractOrgBlocks parses text with the default grammar.
func ExtractOrgBlocks(text string) []model.OrgThemeBlock {
	return DefaultGrammar().ExtractOrgBlocks(text)
}

// ExtractOrgBlocks returns one block per organization, sorted by org id.
// Repeated blocks for the same organization are merged in document order and
// the last declaration of a property wins. Unterminated blocks and malformed
// declarations are skipped.
func (g Grammar) ExtractOrgBlocks(text string) []model.OrgThemeBlock {
	content := stripComments(text)
	byOrg := make(map[string]*model.TokenSet)

	for _, m := range g.Block.FindAllStringSubmatchIndex(content, -1) {
		if len(m) < 4 || m[2] < 0 {
			continue
		}
		orgID := content[m[2]:m[3]]

		open := skipSpace(content, m[1])
		if open >= len(content) || content[open] != '{' {
			continue
		}
		end, ok := findBlockEnd(content, open)
		if !ok {
			continue
		}

		tokens, exists := byOrg[orgID]
		if !exists {
			tokens = model.NewTokenSet()
			byOrg[orgID] = tokens
		}
		for _, decl := range splitDeclarations(content[open+1 : end-1]) {
			name, value, ok := g.parseDeclaration(decl)
			if !ok {
				continue
			}
			tokens.Set(name, value)
		}
	}

	ids := make([]string, 0, len(byOrg))
	for id := range byOrg {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	blocks := make([]model.OrgThemeBlock, 0, len(ids))
	for _, id := range ids {
		blocks = append(blocks, model.OrgThemeBlock{OrgID: id, Tokens: byOrg[id]})
	}
	return blocks
}

func (g Grammar) parseDeclaration(decl string) (string, string, bool) {
	colon := strings.Index(decl, ":")
	if colon == -1 {
		return "", "", false
	}
	name := strings.TrimSpace(decl[:colon])
	value := strings.TrimSpace(decl[colon+1:])
	if len(name) <= len(g.PropertyPrefix) || !strings.HasPrefix(name, g.PropertyPrefix) {
		return "", "", false
	}
	if value == "" {
		return "", "", false
	}
	return name, value, true
}

// findBlockEnd returns the position just past the brace that closes the block
// opened at content[open]. ok is false when the block is never closed.
func findBlockEnd(content string, open int) (int, bool) {
	depth := 1
	pos := open + 1
	for pos < len(content) && depth > 0 {
		switch content[pos] {
		case '{':
			depth++
		case '}':
			depth--
		}
		pos++
	}
	return pos, depth == 0
}

// splitDeclarations splits a block body on top-level semicolons. Nested rule
// blocks are dropped; semicolons inside parentheses or quotes do not split.
func splitDeclarations(body string) []string {
	var (
		decls  []string
		cur    strings.Builder
		parens int
		braces int
		quote  byte
	)
	for i := 0; i < len(body); i++ {
		c := body[i]
		if quote != 0 {
			if braces == 0 {
				cur.WriteByte(c)
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
		case c == '{':
			braces++
			cur.Reset()
			continue
		case c == '}':
			if braces > 0 {
				braces--
			}
			continue
		case braces > 0:
			continue
		case c == '(':
			parens++
		case c == ')' && parens > 0:
			parens--
		case c == ';' && parens == 0:
			decls = append(decls, cur.String())
			cur.Reset()
			continue
		}
		if braces == 0 {
			cur.WriteByte(c)
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		decls = append(decls, rest)
	}
	return decls
}

// stripComments blanks /* */ comments. Comment markers inside quoted values
// are kept; a string ends at its closing quote or at the end of the line.
func stripComments(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	var quote byte
	for i := 0; i < len(content); i++ {
		c := content[i]
		switch {
		case quote != 0:
			if c == '\\' && i+1 < len(content) {
				b.WriteByte(c)
				i++
				b.WriteByte(content[i])
				continue
			}
			if c == quote || c == '\n' {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '/' && i+1 < len(content) && content[i+1] == '*':
			end := strings.Index(content[i+2:], "*/")
			if end == -1 {
				return b.String()
			}
			b.WriteByte(' ')
			i += end + 3
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func skipSpace(content string, pos int) int {
	for pos < len(content) && (content[pos] == ' ' || content[pos] == '\n' || content[pos] == '\r' || content[pos] == '\t') {
		pos++
	}
	return pos
}
