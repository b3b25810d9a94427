package nolint

import (
	"fmt"
	"strings"

	"github.com/gnoverse/pplint/internal/syntax"
)

const nolintPrefix = "nolint"

// Manager manages nolint scopes and checks if a line is nolinted.
type Manager struct {
	scopes []nolintScope
}

// nolintScope represents a range of lines where nolint applies.
type nolintScope struct {
	rules map[string]struct{}
	start int
	end   int
}

// comment is one `#` comment of the source.
type comment struct {
	line   int
	text   string
	inline bool
}

// lineRange is the extent of a statement.
type lineRange struct {
	start, end int
}

// ParseComments parses the `# nolint` comments of the source t was built
// from and returns a Manager.
func ParseComments(t *syntax.Tree) *Manager {
	manager := Manager{}
	stmtMap := indexStatementsByLine(t)
	firstLine := firstStatementLine(t)

	for _, c := range scanComments(t.Src) {
		ns, err := parseComment(c, stmtMap, firstLine)
		if err != nil {
			// ignore invalid nolint comments
			continue
		}
		manager.scopes = append(manager.scopes, ns)
	}
	return &manager
}

// parseComment parses a single nolint comment and determines its scope.
func parseComment(c comment, stmtMap map[int]lineRange, firstLine int) (nolintScope, error) {
	var ns nolintScope
	text := strings.TrimSpace(c.text)

	if !strings.HasPrefix(text, nolintPrefix) {
		return ns, fmt.Errorf("invalid nolint comment")
	}
	rest := text[len(nolintPrefix):]

	// A nolint comment can either have a list of rules after a colon (:)
	// or if no rules are specified, it applies to all rules
	if len(rest) > 0 && rest[0] != ':' {
		return ns, fmt.Errorf("invalid nolint comment format")
	}
	if len(rest) > 0 {
		rest = strings.TrimSpace(rest[1:])
		if rest == "" {
			return ns, fmt.Errorf("invalid nolint comment: no rules specified after colon")
		}
	}
	ns.rules = parseIgnoreRuleNames(rest)

	// A comment above the first statement covers the whole file.
	if !c.inline && (firstLine == 0 || c.line < firstLine) {
		ns.start, ns.end = 1, int(^uint(0)>>1)
		return ns, nil
	}

	if c.inline {
		if stmt, ok := stmtMap[c.line]; ok {
			ns.start, ns.end = stmt.start, stmt.end
			return ns, nil
		}
	}

	// A standalone comment covers the statement on the next line.
	if stmt, ok := stmtMap[c.line+1]; ok && !c.inline {
		ns.start, ns.end = c.line, stmt.end
		return ns, nil
	}

	ns.start, ns.end = c.line, c.line
	return ns, nil
}

// parseIgnoreRuleNames parses the rule list from the nolint comment.
func parseIgnoreRuleNames(text string) map[string]struct{} {
	rulesMap := make(map[string]struct{})
	if text == "" {
		return rulesMap
	}
	for _, rule := range strings.Split(text, ",") {
		rule = strings.TrimSpace(rule)
		if rule != "" {
			rulesMap[rule] = struct{}{}
		}
	}
	return rulesMap
}

// indexStatementsByLine maps each line to the outermost statement starting
// on it.
func indexStatementsByLine(t *syntax.Tree) map[int]lineRange {
	stmtMap := make(map[int]lineRange)
	if !t.Root.Valid() {
		return stmtMap
	}
	t.Walk(t.Root, func(id syntax.NodeID) bool {
		n := t.Node(id)
		if n.Synthetic || !n.Kind.IsStatement() || n.Kind == syntax.KindBlock || n.Kind == syntax.KindModule {
			return true
		}
		line := n.Span.Start.Line
		if _, exists := stmtMap[line]; !exists && line > 0 {
			stmtMap[line] = lineRange{start: line, end: n.Span.End.Line}
		}
		return true
	})
	return stmtMap
}

func firstStatementLine(t *syntax.Tree) int {
	first := 0
	for line := range indexStatementsByLine(t) {
		if first == 0 || line < first {
			first = line
		}
	}
	return first
}

// scanComments finds the `#` comments of Python source, skipping string
// literals, including triple-quoted ones spanning lines.
func scanComments(src []byte) []comment {
	var (
		out    []comment
		line   = 1
		quote  string
		code   bool
		length = len(src)
	)
	for i := 0; i < length; i++ {
		ch := src[i]
		if quote != "" {
			switch {
			case ch == '\\':
				if i+1 < length && src[i+1] == '\n' {
					line++
				}
				i++
			case ch == '\n':
				line++
				if len(quote) == 1 {
					// unterminated single-quoted string
					quote, code = "", false
				}
			case strings.HasPrefix(string(src[i:min(i+len(quote), length)]), quote):
				i += len(quote) - 1
				quote = ""
			}
			continue
		}
		switch ch {
		case '\n':
			line++
			code = false
		case '\'', '"':
			q := string(ch)
			if i+2 < length && src[i+1] == ch && src[i+2] == ch {
				q = strings.Repeat(q, 3)
				i += 2
			}
			quote, code = q, true
		case '#':
			end := i
			for end < length && src[end] != '\n' {
				end++
			}
			out = append(out, comment{line: line, text: string(src[i+1 : end]), inline: code})
			i = end - 1
		case ' ', '\t', '\r':
		default:
			code = true
		}
	}
	return out
}

// IsNolint checks if a given line and rule are nolinted.
func (m *Manager) IsNolint(line int, ruleName string) bool {
	for _, ns := range m.scopes {
		if line < ns.start || line > ns.end {
			continue
		}
		// If the rules list is empty, nolint applies to all rules
		if len(ns.rules) == 0 {
			return true
		}
		if _, exists := ns.rules[ruleName]; exists {
			return true
		}
	}
	return false
}
