// Package eventlog records one event per analysis for audit and follow-up.
// Events are delivered off the request path through a buffered emitter to
// whatever sinks (file, webhook) the deployment configures.
package eventlog

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scamwatch-ai/scamwatch/internal/analysis"
	"github.com/scamwatch-ai/scamwatch/internal/detect"
	"github.com/scamwatch-ai/scamwatch/internal/redact"
)

// Outcome is how an analysis ended from the service's perspective.
type Outcome string

const (
	OutcomeCompleted     Outcome = "completed"
	OutcomeProviderError Outcome = "provider_error"
	OutcomeParseDegraded Outcome = "parse_degraded"
)

// Event is the audit record for one analyzed post. It carries the verdict
// shape, never the post content itself.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Outcome      Outcome   `json:"outcome"`
	RiskLevel    string    `json:"risk_level,omitempty"`
	IsScam       bool      `json:"is_scam"`
	MatchCount   int       `json:"match_count"`
	TopPattern   string    `json:"top_pattern,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	DurationMs   float64   `json:"duration_ms"`
	ProviderNote string    `json:"provider_note,omitempty"`
}

// NewEvent builds an event from an analysis outcome. result may be nil when
// the provider call failed.
func NewEvent(result *analysis.DetectionResult, callErr error, duration time.Duration) *Event {
	ev := &Event{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		DurationMs: float64(duration) / float64(time.Millisecond),
	}

	if callErr != nil {
		ev.Outcome = OutcomeProviderError
		ev.ProviderNote = redact.String(callErr.Error())
		return ev
	}
	if result == nil {
		ev.Outcome = OutcomeProviderError
		return ev
	}

	ev.Outcome = OutcomeCompleted
	if strings.HasPrefix(result.Summary, detect.DegradedSummaryPrefix) {
		ev.Outcome = OutcomeParseDegraded
	}
	ev.RiskLevel = string(result.RiskLevel)
	ev.IsScam = result.IsScam()
	ev.MatchCount = len(result.MatchedPatterns)
	// Summaries quote the post; scrub contact channels before they hit a sink.
	ev.Summary = redact.String(result.Summary)
	if best := result.HighestConfidenceMatch(); best != nil {
		ev.TopPattern = best.PatternName
	}
	return ev
}
