package formatter

// HMCIssueFormatter adds which inference algorithm the issue concerns.
type HMCIssueFormatter struct{}

func (f *HMCIssueFormatter) IssueTemplate() string {
	return `{{header .Rule .Severity .MaxLineNumWidth .Filename .StartLine .StartColumn -}}
{{snippet .Line .StartLine .MaxLineNumWidth .CommonIndent .Padding -}}
{{underlineAndMessage .Message .Padding .StartLine .StartColumn .EndColumn .Line .CommonIndent -}}
{{hmcInfo .Padding -}}
{{suggestion .Suggestion .Padding -}}
{{note .Note .Padding}}
`
}

func hmcInfo(padding string) string {
	return lineStyle.Sprintf("%s= ", padding) + suggestionStyle.Sprint("applies to: ") + "HMC/NUTS\n"
}
