package eventlog

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/scamwatch-ai/scamwatch/internal/analysis"
	"github.com/scamwatch-ai/scamwatch/internal/detect"
)

func TestNewEventCompleted(t *testing.T) {
	res := &analysis.DetectionResult{
		RiskLevel: analysis.RiskHigh,
		MatchedPatterns: []analysis.PatternMatch{
			{PatternName: "phishing", Confidence: 0.6},
			{PatternName: "advance_fee", Confidence: 0.9},
		},
		Summary: "clear scam",
	}

	ev := NewEvent(res, nil, 120*time.Millisecond)

	if ev.Outcome != OutcomeCompleted {
		t.Fatalf("expected completed, got %s", ev.Outcome)
	}
	if !ev.IsScam || ev.MatchCount != 2 || ev.TopPattern != "advance_fee" {
		t.Fatalf("unexpected event fields: %+v", ev)
	}
	if ev.RiskLevel != "high" || ev.DurationMs != 120 {
		t.Fatalf("unexpected event fields: %+v", ev)
	}
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Fatal("event must carry an id and timestamp")
	}
}

func TestNewEventProviderError(t *testing.T) {
	ev := NewEvent(nil, errors.New("connection refused"), time.Millisecond)
	if ev.Outcome != OutcomeProviderError {
		t.Fatalf("expected provider_error, got %s", ev.Outcome)
	}
	if ev.ProviderNote == "" {
		t.Fatal("provider failures should note the cause")
	}
}

func TestNewEventParseDegraded(t *testing.T) {
	res := detect.ParseResponse(analysis.Post{Content: "c"}, "no json here")
	ev := NewEvent(&res, nil, time.Millisecond)
	if ev.Outcome != OutcomeParseDegraded {
		t.Fatalf("expected parse_degraded, got %s", ev.Outcome)
	}
}

func TestFileSinkWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	for i := 0; i < 2; i++ {
		res := &analysis.DetectionResult{RiskLevel: analysis.RiskLow}
		if err := sink.Deliver(context.Background(), NewEvent(res, nil, time.Millisecond)); err != nil {
			t.Fatalf("deliver: %v", err)
		}
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		if ev.RiskLevel != "low" {
			t.Fatalf("unexpected event: %+v", ev)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", lines)
	}
}

func TestWebhookSinkPostsEvent(t *testing.T) {
	var got Event
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer upstream.Close()

	sink, err := NewWebhookSink(upstream.URL, map[string]string{"X-Token": "t"}, time.Second)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	res := &analysis.DetectionResult{RiskLevel: analysis.RiskCritical, MatchedPatterns: []analysis.PatternMatch{{PatternName: "p", Confidence: 1}}}
	if err := sink.Deliver(context.Background(), NewEvent(res, nil, time.Millisecond)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if got.RiskLevel != "critical" || !got.IsScam {
		t.Fatalf("unexpected delivered event: %+v", got)
	}
}

func TestWebhookSinkErrorStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	sink, _ := NewWebhookSink(upstream.URL, nil, time.Second)
	err := sink.Deliver(context.Background(), NewEvent(&analysis.DetectionResult{}, nil, 0))
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestEmitterDeliversAndCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatal(err)
	}

	em := NewEmitter(EmitterConfig{QueueSize: 8}, []Sink{sink})
	for i := 0; i < 3; i++ {
		em.Emit(NewEvent(&analysis.DetectionResult{RiskLevel: analysis.RiskNone}, nil, 0))
	}
	em.Close(context.Background())

	m := em.MetricsSnapshot()
	if m.Enqueued() != 3 {
		t.Fatalf("expected 3 enqueued, got %d", m.Enqueued())
	}
	if m.SinkSuccess(sink.Name()) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", m.SinkSuccess(sink.Name()))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("expected events on disk after close")
	}
}

func TestEmitterDropsAfterClose(t *testing.T) {
	em := NewEmitter(EmitterConfig{QueueSize: 1}, nil)
	em.Close(context.Background())
	em.Emit(NewEvent(&analysis.DetectionResult{}, nil, 0))
	m := em.MetricsSnapshot()
	if m.Dropped() != 1 {
		t.Fatal("emit after close should count as dropped")
	}
}

func TestNewEventScrubsSummary(t *testing.T) {
	res := &analysis.DetectionResult{
		RiskLevel: analysis.RiskHigh,
		MatchedPatterns: []analysis.PatternMatch{
			{PatternName: "advance_fee", Confidence: 0.8},
		},
		Summary: "Victim asked to wire a fee and email prince@lagos-claims.example.net",
	}

	ev := NewEvent(res, nil, time.Millisecond)

	if strings.Contains(ev.Summary, "lagos-claims.example.net") {
		t.Fatalf("contact address survived into the event: %q", ev.Summary)
	}
	if !strings.Contains(ev.Summary, "[EMAIL]") {
		t.Fatalf("expected a redaction marker, got %q", ev.Summary)
	}
}
