package analysis

import "fmt"

// RiskLevel is the five-tier severity classification of a detection result.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskOrder backs Ordinal. The ordering is used for display and severity
// defaults only; the parser matches level strings exactly.
var riskOrder = map[RiskLevel]int{
	RiskNone:     0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// ParseRiskLevel maps a lower-case string onto one of the five levels.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	lvl := RiskLevel(s)
	_, ok := riskOrder[lvl]
	if !ok {
		return RiskNone, false
	}
	return lvl, true
}

// Valid reports whether the level is one of the five legal values.
func (r RiskLevel) Valid() bool {
	_, ok := riskOrder[r]
	return ok
}

// Ordinal returns the level's position on the risk scale (none=0 .. critical=4).
func (r RiskLevel) Ordinal() int {
	return riskOrder[r]
}

func (r RiskLevel) String() string {
	return string(r)
}

// Post is the unit of content submitted for analysis. It is a value object:
// two posts with equal fields are the same post.
type Post struct {
	Content  string            `json:"content"`
	Author   string            `json:"author,omitempty"`
	Title    string            `json:"title,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PatternMatch is one model-asserted correspondence between a post and a
// pattern. The pattern name need not reference a registered pattern; the
// model may invent names.
type PatternMatch struct {
	PatternName string   `json:"pattern_name"`
	Confidence  float64  `json:"confidence"`
	Evidence    []string `json:"evidence"`
	Explanation string   `json:"explanation"`
}

// NewPatternMatch validates the confidence range at construction time.
func NewPatternMatch(name string, confidence float64, evidence []string, explanation string) (PatternMatch, error) {
	if confidence < 0 || confidence > 1 {
		return PatternMatch{}, fmt.Errorf("confidence %v outside [0, 1]", confidence)
	}
	return PatternMatch{
		PatternName: name,
		Confidence:  confidence,
		Evidence:    evidence,
		Explanation: explanation,
	}, nil
}

// DetectionResult is the complete outcome of analyzing one post.
// MatchedPatterns keeps the model's emission order.
type DetectionResult struct {
	Post            Post           `json:"post"`
	RiskLevel       RiskLevel      `json:"risk_level"`
	MatchedPatterns []PatternMatch `json:"matched_patterns"`
	Summary         string         `json:"summary"`
	RawResponse     string         `json:"raw_response,omitempty"`
}

// IsScam reports whether any pattern matched, independent of the risk level.
func (r *DetectionResult) IsScam() bool {
	return len(r.MatchedPatterns) > 0
}

// HighestConfidenceMatch returns the match with the maximum confidence, or
// nil when nothing matched. Ties go to the first occurrence.
func (r *DetectionResult) HighestConfidenceMatch() *PatternMatch {
	if len(r.MatchedPatterns) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(r.MatchedPatterns); i++ {
		if r.MatchedPatterns[i].Confidence > r.MatchedPatterns[best].Confidence {
			best = i
		}
	}
	return &r.MatchedPatterns[best]
}
