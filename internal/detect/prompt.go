package detect

import (
	"fmt"
	"strings"

	"github.com/scamwatch-ai/scamwatch/internal/analysis"
	"github.com/scamwatch-ai/scamwatch/internal/pattern"
)

// SystemPrompt is the fixed instruction establishing the assistant's role
// and the exact JSON output contract. It never varies per call; bump it
// deliberately when the contract changes, since the parser depends on it.
const SystemPrompt = `You are a scam detection expert analyzing forum posts for potential scam patterns.

Your task is to carefully analyze the given post and determine if it matches any of the provided scam patterns.

Be thorough but avoid false positives. Only flag content that genuinely matches the scam patterns.
Consider context and nuance - legitimate posts may superficially resemble scams.

You must respond with a valid JSON object in the following format:
{
    "risk_level": "none" | "low" | "medium" | "high" | "critical",
    "matched_patterns": [
        {
            "pattern_name": "name of the matched pattern",
            "confidence": 0.0 to 1.0,
            "evidence": ["specific text or elements that triggered this match"],
            "explanation": "why this pattern was matched"
        }
    ],
    "summary": "brief human-readable summary of the analysis"
}

Guidelines for risk levels:
- none: No scam indicators detected
- low: Minor red flags, possibly legitimate
- medium: Several concerning indicators, warrants caution
- high: Strong scam indicators, likely fraudulent
- critical: Clear and obvious scam attempt

Guidelines for confidence scores:
- 0.0-0.3: Weak match, possibly coincidental
- 0.4-0.6: Moderate match, some indicators present
- 0.7-0.8: Strong match, multiple clear indicators
- 0.9-1.0: Very strong match, unmistakable pattern`

// patternsPrompt renders the registered patterns, or a general-heuristics
// fallback when none are registered.
func patternsPrompt(patterns []pattern.ScamPattern) string {
	if len(patterns) == 0 {
		return "No specific patterns defined. Use general scam detection heuristics."
	}

	var b strings.Builder
	b.WriteString("SCAM PATTERNS TO DETECT:\n")
	for i, p := range patterns {
		fmt.Fprintf(&b, "\n--- Pattern %d ---\n", i+1)
		b.WriteString(p.PromptSection())
		b.WriteString("\n")
	}
	return b.String()
}

// postPrompt renders the post as optional Title/Author lines and a
// mandatory Content line. Absent optional fields are omitted entirely.
func postPrompt(post analysis.Post) string {
	var parts []string
	if post.Title != "" {
		parts = append(parts, "Title: "+post.Title)
	}
	if post.Author != "" {
		parts = append(parts, "Author: "+post.Author)
	}
	parts = append(parts, "Content: "+post.Content)
	return strings.Join(parts, "\n")
}

// UserPrompt builds the per-call instruction: every registered pattern,
// the post, and a closing demand for JSON-only output. It is pure: the same
// pattern snapshot and post always produce a byte-identical prompt.
func UserPrompt(patterns []pattern.ScamPattern, post analysis.Post) string {
	return fmt.Sprintf(`%s

POST TO ANALYZE:
%s

Analyze this post against the patterns above. Respond with JSON only.`,
		patternsPrompt(patterns), postPrompt(post))
}
