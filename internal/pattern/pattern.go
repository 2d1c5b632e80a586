package pattern

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scamwatch-ai/scamwatch/internal/analysis"
)

// ScamPattern is a named, plain-language description of a scam archetype.
// Patterns are written naturally so the model can understand and match them
// against post content. A pattern is immutable once constructed; updates
// replace it wholesale.
type ScamPattern struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Indicators  []string           `json:"indicators,omitempty"`
	Severity    analysis.RiskLevel `json:"severity"`
	Examples    []string           `json:"examples,omitempty"`
}

// New validates a pattern at construction time. The name must be non-empty
// and the severity one of the five risk levels; an empty severity defaults
// to medium.
func New(name, description string, indicators []string, severity analysis.RiskLevel, examples []string) (ScamPattern, error) {
	if strings.TrimSpace(name) == "" {
		return ScamPattern{}, errors.New("pattern name must be set")
	}
	if severity == "" {
		severity = analysis.RiskMedium
	}
	if !severity.Valid() {
		return ScamPattern{}, fmt.Errorf("invalid severity %q", severity)
	}
	return ScamPattern{
		Name:        name,
		Description: description,
		Indicators:  indicators,
		Severity:    severity,
		Examples:    examples,
	}, nil
}

// PromptSection renders the pattern the way the prompt builder embeds it:
// name, description, bulleted indicators, quoted examples, severity.
func (p ScamPattern) PromptSection() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Pattern: %s\n", p.Name)
	fmt.Fprintf(&b, "Description: %s", p.Description)

	if len(p.Indicators) > 0 {
		b.WriteString("\nIndicators:")
		for _, ind := range p.Indicators {
			fmt.Fprintf(&b, "\n  - %s", ind)
		}
	}

	if len(p.Examples) > 0 {
		b.WriteString("\nExamples:")
		for _, ex := range p.Examples {
			fmt.Fprintf(&b, "\n  - %q", ex)
		}
	}

	fmt.Fprintf(&b, "\nSeverity: %s", p.Severity)

	return b.String()
}
