package formatter

type GeneralIssueFormatter struct{}

func (f *GeneralIssueFormatter) IssueTemplate() string {
	return `{{header .Rule .Severity .MaxLineNumWidth .Filename .StartLine .StartColumn -}}
{{snippet .Line .StartLine .MaxLineNumWidth .CommonIndent .Padding -}}
{{underlineAndMessage .Message .Padding .StartLine .StartColumn .EndColumn .Line .CommonIndent -}}
{{suggestion .Suggestion .Padding -}}
{{note .Note .Padding}}
`
}
