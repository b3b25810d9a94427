package formatter

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"unicode"

	"github.com/fatih/color"

	tt "github.com/gnoverse/pplint/internal/types"
)

const tabWidth = 8

var (
	errorStyle      = color.New(color.FgRed, color.Bold)
	warningStyle    = color.New(color.FgHiYellow, color.Bold)
	infoStyle       = color.New(color.FgHiCyan, color.Bold)
	ruleStyle       = color.New(color.FgYellow, color.Bold)
	fileStyle       = color.New(color.FgCyan, color.Bold)
	lineStyle       = color.New(color.FgHiBlue, color.Bold)
	messageStyle    = color.New(color.FgRed, color.Bold)
	suggestionStyle = color.New(color.FgGreen, color.Bold)
)

// SourceCode stores the content of a source code file.
type SourceCode struct {
	Lines []string
}

// NewSourceCode splits src into lines.
func NewSourceCode(src []byte) *SourceCode {
	return &SourceCode{Lines: strings.Split(string(src), "\n")}
}

// ReadSourceCode reads the content of a file and returns it as a `SourceCode` struct.
func ReadSourceCode(filename string) (*SourceCode, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewSourceCode(content), nil
}

// issueFormatter is the interface that wraps the issueTemplate method.
// Implementations of this interface are responsible for formatting specific kinds of lint issues.
type issueFormatter interface {
	IssueTemplate() string
}

// getIssueFormatter returns the formatter for the category of an issue.
func getIssueFormatter(category string) issueFormatter {
	switch category {
	case "hmc":
		return &HMCIssueFormatter{}
	default:
		return &GeneralIssueFormatter{}
	}
}

// GenerateFormattedIssue formats a slice of issues into a human-readable string.
func GenerateFormattedIssue(issues []tt.Issue, snippet *SourceCode) string {
	var builder strings.Builder
	for _, issue := range issues {
		formatter := getIssueFormatter(issue.Category)
		builder.WriteString(buildIssue(issue, snippet, formatter))
	}
	return builder.String()
}

/***** Issue Formatter Builder *****/

type IssueData struct {
	Category        string
	Severity        string
	Rule            string
	Filename        string
	Padding         string
	StartLine       int
	StartColumn     int
	EndColumn       int
	MaxLineNumWidth int
	Message         string
	Suggestion      string
	Note            string
	Line            string
	CommonIndent    string
}

// buildIssue renders one issue. Only the first line of a multi-line span is
// shown, underlined up to its end.
func buildIssue(issue tt.Issue, snippet *SourceCode, formatter issueFormatter) string {
	startLine := issue.Start.Line
	maxLineNumWidth := calculateMaxLineNumWidth(startLine)

	var line string
	if startLine > 0 && startLine <= len(snippet.Lines) {
		line = strings.TrimRight(snippet.Lines[startLine-1], "\r")
	}
	endColumn := issue.End.Column
	if issue.End.Line != startLine {
		endColumn = len(line) + 1
	}

	data := IssueData{
		Severity:        issue.Severity.String(),
		Category:        issue.Category,
		Rule:            issue.Rule,
		Filename:        issue.Filename,
		StartLine:       startLine,
		StartColumn:     issue.Start.Column,
		EndColumn:       endColumn,
		Message:         issue.Message,
		Suggestion:      issue.Suggestion,
		Note:            issue.Note,
		MaxLineNumWidth: maxLineNumWidth,
		Padding:         strings.Repeat(" ", maxLineNumWidth+1),
		Line:            line,
		CommonIndent:    findCommonIndent([]string{line}),
	}

	funcMap := template.FuncMap{
		"header":              header,
		"snippet":             codeSnippet,
		"underlineAndMessage": underlineAndMessage,
		"suggestion":          suggestion,
		"note":                note,
		"hmcInfo":             hmcInfo,
	}

	tmpl := template.Must(template.New("issue").Funcs(funcMap).Parse(formatter.IssueTemplate()))

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting issue: %v", err)
	}
	return buf.String()
}

// utils functions used in the text templates

func header(rule string, severity string, maxLineNumWidth int, filename string, startLine int, startColumn int) string {
	var endString string
	switch severity {
	case "ERROR":
		endString = errorStyle.Sprint("error: ")
	case "WARNING":
		endString = warningStyle.Sprint("warning: ")
	case "INFO":
		endString = infoStyle.Sprint("info: ")
	}

	endString += ruleStyle.Sprintf("%s\n", rule)

	padding := strings.Repeat(" ", maxLineNumWidth)
	endString += lineStyle.Sprintf("%s--> ", padding)
	if startLine > 0 {
		endString += fileStyle.Sprintf("%s:%d:%d\n", filename, startLine, startColumn)
	} else {
		endString += fileStyle.Sprintf("%s\n", filename)
	}
	return endString
}

func codeSnippet(line string, startLine int, maxLineNumWidth int, commonIndent string, padding string) string {
	endString := lineStyle.Sprintf("%s|\n", padding)
	if startLine <= 0 {
		return endString
	}
	lineNum := fmt.Sprintf("%*d", maxLineNumWidth, startLine)
	endString += lineStyle.Sprintf("%s | ", lineNum)
	endString += strings.TrimPrefix(line, commonIndent) + "\n"
	return endString
}

func underlineAndMessage(message string, padding string, startLine int, startColumn int, endColumn int, line string, commonIndent string) string {
	endString := lineStyle.Sprintf("%s| ", padding)

	if startLine > 0 && startColumn > 0 {
		commonIndentWidth := calculateVisualColumn(commonIndent, len(commonIndent)+1)
		underlineStart := calculateVisualColumn(line, startColumn) - commonIndentWidth
		if underlineStart < 0 {
			underlineStart = 0
		}
		underlineEnd := calculateVisualColumn(line, endColumn) - commonIndentWidth
		underlineLength := underlineEnd - underlineStart
		if underlineLength < 1 {
			underlineLength = 1
		}
		endString += strings.Repeat(" ", underlineStart)
		endString += messageStyle.Sprint(strings.Repeat("~", underlineLength))
	}
	endString += "\n"

	endString += lineStyle.Sprintf("%s= ", padding)
	endString += messageStyle.Sprintf("%s\n", message)
	return endString
}

func suggestion(suggestion string, padding string) string {
	if suggestion == "" {
		return ""
	}
	return lineStyle.Sprintf("%s= ", padding) + suggestionStyle.Sprint("help: ") + suggestion + "\n"
}

func note(note string, padding string) string {
	if note == "" {
		return ""
	}
	return lineStyle.Sprintf("%s= ", padding) + suggestionStyle.Sprint("note: ") + note + "\n"
}

func calculateMaxLineNumWidth(line int) int {
	return len(fmt.Sprintf("%d", line))
}

// calculateVisualColumn calculates the visual column position
// in a string, taking into account tab characters.
func calculateVisualColumn(line string, column int) int {
	if column < 0 {
		return 0
	}
	visualColumn := 0
	for i, ch := range line {
		if i+1 == column {
			break
		}
		if ch == '\t' {
			visualColumn += tabWidth - (visualColumn % tabWidth)
		} else {
			visualColumn++
		}
	}
	return visualColumn
}

// findCommonIndent finds the common indent in the code snippet.
func findCommonIndent(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	// find first non-empty line's indent
	var firstIndent []rune
	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed != "" {
			firstIndent = []rune(line[:len(line)-len(trimmed)])
			break
		}
	}

	if len(firstIndent) == 0 {
		return ""
	}

	// search common indent for all non-empty lines
	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed == "" {
			continue
		}

		currentIndent := []rune(line[:len(line)-len(trimmed)])
		firstIndent = commonPrefix(firstIndent, currentIndent)

		if len(firstIndent) == 0 {
			break
		}
	}

	return string(firstIndent)
}

// commonPrefix finds the common prefix of two strings.
func commonPrefix(a, b []rune) []rune {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:minLen]
}
