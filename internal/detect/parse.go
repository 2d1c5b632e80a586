package detect

import (
	"errors"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/scamwatch-ai/scamwatch/internal/analysis"
)

// Model output is frequently wrapped in prose or markdown fences. The
// recovery ladder tries, in order: the trimmed text as-is, a ```json fence,
// any fence, and finally the first {...} or [...] span in the text.
var (
	jsonFenceRE = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	anyFenceRE  = regexp.MustCompile("(?s)```\\s*(.*?)```")
)

var errNoJSON = errors.New("no JSON found in model response")

// DegradedSummaryPrefix starts the summary of every degraded result, so
// callers can tell "the model found nothing" from "the output was unusable".
const DegradedSummaryPrefix = "analysis failed: "

// rawVerdict is the explicit schema for the model's verdict JSON. Pointer
// fields distinguish absent keys from present-but-empty values so that the
// documented per-field defaults apply only to genuinely absent keys.
type rawVerdict struct {
	RiskLevel       *string    `json:"risk_level"`
	MatchedPatterns []rawMatch `json:"matched_patterns"`
	Summary         string     `json:"summary"`
}

type rawMatch struct {
	PatternName *string  `json:"pattern_name"`
	Confidence  *float64 `json:"confidence"`
	Evidence    []string `json:"evidence"`
	Explanation string   `json:"explanation"`
}

// extractJSON recovers a parseable JSON document from the raw model text.
func extractJSON(content string) (string, error) {
	content = strings.TrimSpace(content)

	if json.Valid([]byte(content)) {
		return content, nil
	}

	if strings.Contains(content, "```") {
		for _, re := range []*regexp.Regexp{jsonFenceRE, anyFenceRE} {
			m := re.FindStringSubmatch(content)
			if m == nil {
				continue
			}
			candidate := strings.TrimSpace(m[1])
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
	}

	// Last resort: first opening brace/bracket to the last closing one.
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(content, pair[0])
		end := strings.LastIndex(content, pair[1])
		if start == -1 || end <= start {
			continue
		}
		candidate := content[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	return "", errNoJSON
}

// ParseResponse maps raw model text into a DetectionResult. It never fails
// past this boundary: unparseable or structurally invalid output degrades to
// a result with risk none, no matches, and a diagnostic summary, so batch
// processing is never halted by one bad completion. The raw text is always
// preserved on the result for diagnostics.
func ParseResponse(post analysis.Post, raw string) analysis.DetectionResult {
	candidate, err := extractJSON(raw)
	if err != nil {
		return degraded(post, raw, err)
	}

	var v rawVerdict
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return degraded(post, raw, err)
	}

	matches := make([]analysis.PatternMatch, 0, len(v.MatchedPatterns))
	for _, m := range v.MatchedPatterns {
		name := "unknown"
		if m.PatternName != nil {
			name = *m.PatternName
		}
		confidence := 0.5
		if m.Confidence != nil {
			confidence = *m.Confidence
		}
		evidence := m.Evidence
		if evidence == nil {
			evidence = []string{}
		}

		// An out-of-range confidence voids the whole verdict rather than
		// silently dropping the one entry.
		match, err := analysis.NewPatternMatch(name, confidence, evidence, m.Explanation)
		if err != nil {
			return degraded(post, raw, err)
		}
		matches = append(matches, match)
	}

	riskStr := "none"
	if v.RiskLevel != nil {
		riskStr = strings.ToLower(*v.RiskLevel)
	}
	risk, ok := analysis.ParseRiskLevel(riskStr)
	if !ok {
		// An invalid tier from the model does not void its matches.
		if len(matches) > 0 {
			risk = analysis.RiskMedium
		} else {
			risk = analysis.RiskNone
		}
	}

	return analysis.DetectionResult{
		Post:            post,
		RiskLevel:       risk,
		MatchedPatterns: matches,
		Summary:         v.Summary,
		RawResponse:     raw,
	}
}

func degraded(post analysis.Post, raw string, err error) analysis.DetectionResult {
	return analysis.DetectionResult{
		Post:            post,
		RiskLevel:       analysis.RiskNone,
		MatchedPatterns: []analysis.PatternMatch{},
		Summary:         DegradedSummaryPrefix + err.Error(),
		RawResponse:     raw,
	}
}
