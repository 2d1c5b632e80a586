package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/scamwatch-ai/scamwatch/internal/analysis"
	"github.com/scamwatch-ai/scamwatch/internal/eventlog"
)

type analyzeRequest struct {
	Content string `json:"content"`
	Title   string `json:"title,omitempty"`
	Author  string `json:"author,omitempty"`
}

func (a analyzeRequest) post() analysis.Post {
	return analysis.Post{Content: a.Content, Title: a.Title, Author: a.Author}
}

type matchView struct {
	PatternName string   `json:"pattern_name"`
	Confidence  float64  `json:"confidence"`
	Evidence    []string `json:"evidence"`
	Explanation string   `json:"explanation"`
}

type verdictView struct {
	RiskLevel       string      `json:"risk_level"`
	IsScam          bool        `json:"is_scam"`
	MatchedPatterns []matchView `json:"matched_patterns"`
	Summary         string      `json:"summary"`
}

func buildVerdictView(result *analysis.DetectionResult) verdictView {
	matches := make([]matchView, 0, len(result.MatchedPatterns))
	for _, m := range result.MatchedPatterns {
		evidence := m.Evidence
		if evidence == nil {
			evidence = []string{}
		}
		matches = append(matches, matchView{
			PatternName: m.PatternName,
			Confidence:  m.Confidence,
			Evidence:    evidence,
			Explanation: m.Explanation,
		})
	}
	return verdictView{
		RiskLevel:       string(result.RiskLevel),
		IsScam:          result.IsScam(),
		MatchedPatterns: matches,
		Summary:         result.Summary,
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content must be set")
		return
	}

	// Read lock held across the model call so pattern mutations cannot
	// interleave with the registry snapshot.
	s.mu.RLock()
	start := time.Now()
	result, err := s.detector.Analyze(r.Context(), req.post())
	elapsed := time.Since(start)
	s.mu.RUnlock()

	s.record(result, err, elapsed)

	if err != nil {
		writeError(w, http.StatusBadGateway, "analysis failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, buildVerdictView(result))
}

type batchRequest struct {
	Posts       []analyzeRequest `json:"posts"`
	MaxInFlight int              `json:"max_in_flight,omitempty"`
}

type batchItemView struct {
	Error  string       `json:"error,omitempty"`
	Result *verdictView `json:"result,omitempty"`
}

const defaultBatchInFlight = 4

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Posts) == 0 {
		writeError(w, http.StatusBadRequest, "posts must not be empty")
		return
	}

	maxInFlight := req.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = defaultBatchInFlight
	}

	posts := make([]analysis.Post, len(req.Posts))
	for i, p := range req.Posts {
		posts[i] = p.post()
	}

	s.mu.RLock()
	start := time.Now()
	results := s.detector.AnalyzeBatchConcurrent(r.Context(), posts, maxInFlight)
	elapsed := time.Since(start)
	s.mu.RUnlock()

	// One batch duration split evenly across items keeps the per-analysis
	// duration roughly honest without per-item timers inside the pool.
	perItem := elapsed / time.Duration(len(results))

	items := make([]batchItemView, len(results))
	for i, br := range results {
		s.record(br.Result, br.Err, perItem)
		if br.Err != nil {
			items[i] = batchItemView{Error: br.Err.Error()}
			continue
		}
		view := buildVerdictView(br.Result)
		items[i] = batchItemView{Result: &view}
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}

// record emits the audit event and telemetry for one finished analysis.
func (s *Server) record(result *analysis.DetectionResult, callErr error, elapsed time.Duration) {
	ev := eventlog.NewEvent(result, callErr, elapsed)
	if s.events != nil {
		s.events.Emit(ev)
	}
	if s.telemetry != nil {
		s.telemetry.RecordAnalysis(string(ev.Outcome), ev.RiskLevel, ev.DurationMs, ev.DurationMs, ev.MatchCount)
	}
}
