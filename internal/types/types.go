package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Severity is how seriously an issue is reported.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityOff
)

var severityNames = map[Severity]string{
	SeverityError:   "ERROR",
	SeverityWarning: "WARNING",
	SeverityInfo:    "INFO",
	SeverityOff:     "OFF",
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// ParseSeverity reads a severity name, ignoring case.
func ParseSeverity(name string) (Severity, error) {
	for s, n := range severityNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return SeverityOff, fmt.Errorf("unknown severity %q", name)
}

func (s Severity) MarshalYAML() (any, error) { return s.String(), nil }

func (s *Severity) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseSeverity(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*s = v
	return nil
}

func (s Severity) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	v, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ConfigRule is the configuration of one rule.
type ConfigRule struct {
	Severity Severity `yaml:"severity"`
	Data     any      `yaml:"data,omitempty"`
}

// Position is a location in a source file. Line and Column start at 1;
// Offset is the byte offset.
type Position struct {
	Filename string `json:"filename,omitempty"`
	Offset   int    `json:"offset"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

func (p Position) IsValid() bool { return p.Line > 0 }

func (p Position) String() string {
	s := p.Filename
	if p.IsValid() {
		if s != "" {
			s += ":"
		}
		s += fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	if s == "" {
		s = "-"
	}
	return s
}

// Issue represents a lint issue found in a program.
type Issue struct {
	Rule       string   `json:"rule"`
	Category   string   `json:"category"`
	Filename   string   `json:"filename"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Note       string   `json:"note,omitempty"`
	Start      Position `json:"start"`
	End        Position `json:"end"`
	Severity   Severity `json:"severity"`
}
