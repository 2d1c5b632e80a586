package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/scamwatch-ai/scamwatch/internal/chat"
	"github.com/scamwatch-ai/scamwatch/internal/config"
	"github.com/scamwatch-ai/scamwatch/internal/provider"
	"github.com/scamwatch-ai/scamwatch/internal/store"
)

const cannedVerdict = `{
	"risk_level": "high",
	"matched_patterns": [
		{
			"pattern_name": "crypto_pump_dump",
			"confidence": 0.9,
			"evidence": ["guaranteed 100x"],
			"explanation": "guaranteed returns on a meme coin"
		}
	],
	"summary": "Classic pump and dump."
}`

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Load("testdata/does-not-exist.yaml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, fake *provider.FakeProvider, deps Deps) *Server {
	t.Helper()

	deps.NewProvider = func(config.ProviderConfig, string) provider.Provider {
		return fake
	}
	srv, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)

	decoded := map[string]any{}
	if rr.Body.Len() > 0 && strings.HasPrefix(rr.Body.String(), "{") {
		if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode %s %s response: %v\nbody: %s", method, path, err, rr.Body.String())
		}
	}
	return rr, decoded
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t), provider.NewFake(cannedVerdict), Deps{})

	rr, body := doJSON(t, srv, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["status"] != "ok" || body["version"] != Version {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestAnalyzeReturnsVerdict(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t), provider.NewFake(cannedVerdict), Deps{})

	rr, body := doJSON(t, srv, http.MethodPost, "/api/analyze",
		`{"content":"Send 1 BTC, get 10 back!","title":"FREE MONEY"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if body["risk_level"] != "high" {
		t.Errorf("risk_level = %v", body["risk_level"])
	}
	if body["is_scam"] != true {
		t.Errorf("is_scam = %v", body["is_scam"])
	}
	matches, ok := body["matched_patterns"].([]any)
	if !ok || len(matches) != 1 {
		t.Fatalf("matched_patterns = %v", body["matched_patterns"])
	}
	first := matches[0].(map[string]any)
	if first["pattern_name"] != "crypto_pump_dump" || first["confidence"] != 0.9 {
		t.Errorf("unexpected match: %v", first)
	}
}

func TestAnalyzeRejectsEmptyContent(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t), provider.NewFake(cannedVerdict), Deps{})

	rr, _ := doJSON(t, srv, http.MethodPost, "/api/analyze", `{"content":"   "}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAnalyzeProviderErrorReturns502(t *testing.T) {
	fake := &provider.FakeProvider{Error: errors.New("connection refused")}
	srv := newTestServer(t, newTestConfig(t), fake, Deps{})

	rr, body := doJSON(t, srv, http.MethodPost, "/api/analyze", `{"content":"hello"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	detail, _ := body["detail"].(string)
	if !strings.Contains(detail, "connection refused") {
		t.Fatalf("detail = %q", detail)
	}
}

func TestAnalyzeBatchKeepsOrderAndCapturesFailures(t *testing.T) {
	fake := &provider.FakeProvider{
		Respond: func(_ context.Context, req *chat.Request) (string, error) {
			user := req.Messages[len(req.Messages)-1].Content
			if strings.Contains(user, "boom") {
				return "", errors.New("upstream gone")
			}
			return cannedVerdict, nil
		},
	}
	srv := newTestServer(t, newTestConfig(t), fake, Deps{})

	rr, body := doJSON(t, srv, http.MethodPost, "/api/analyze/batch",
		`{"posts":[{"content":"first post"},{"content":"boom"},{"content":"third post"}],"max_in_flight":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	results, ok := body["results"].([]any)
	if !ok || len(results) != 3 {
		t.Fatalf("results = %v", body["results"])
	}

	second := results[1].(map[string]any)
	if errMsg, _ := second["error"].(string); !strings.Contains(errMsg, "upstream gone") {
		t.Errorf("second item should carry the failure, got %v", second)
	}
	for _, i := range []int{0, 2} {
		item := results[i].(map[string]any)
		res, ok := item["result"].(map[string]any)
		if !ok {
			t.Fatalf("item %d missing result: %v", i, item)
		}
		if res["risk_level"] != "high" {
			t.Errorf("item %d risk_level = %v", i, res["risk_level"])
		}
	}
}

func TestAnalyzeBatchRejectsEmpty(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t), provider.NewFake(cannedVerdict), Deps{})

	rr, _ := doJSON(t, srv, http.MethodPost, "/api/analyze/batch", `{"posts":[]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	var lastProviderCfg config.ProviderConfig
	fake := provider.NewFake(cannedVerdict)
	cfg := newTestConfig(t)

	srv, err := New(cfg, Deps{
		NewProvider: func(pc config.ProviderConfig, _ string) provider.Provider {
			lastProviderCfg = pc
			return fake
		},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	rr, body := doJSON(t, srv, http.MethodGet, "/api/config", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["base_url"] != "http://localhost:1234/v1" || body["model"] != "local-model" {
		t.Fatalf("unexpected defaults: %v", body)
	}
	if body["api_key"] != "" {
		t.Fatalf("api_key should be empty when unset, got %v", body["api_key"])
	}

	rr, body = doJSON(t, srv, http.MethodPut, "/api/config",
		`{"model":"gpt-4o-mini","api_key":"sk-secret","temperature":0.3}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	view, ok := body["config"].(map[string]any)
	if !ok {
		t.Fatalf("missing config in response: %v", body)
	}
	if view["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", view["model"])
	}
	if view["api_key"] != "***configured***" {
		t.Errorf("api_key should be masked, got %v", view["api_key"])
	}
	if lastProviderCfg.Model != "gpt-4o-mini" {
		t.Errorf("provider was not rebuilt with the new model, got %q", lastProviderCfg.Model)
	}
}

func TestPatternsListDefaults(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t), provider.NewFake(cannedVerdict), Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/patterns", nil)
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var views []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 10 {
		t.Fatalf("expected 10 built-in patterns, got %d", len(views))
	}
	if views[0]["name"] != "advance_fee" {
		t.Errorf("first pattern = %v", views[0]["name"])
	}
}

func TestPatternCreateRejectsDuplicate(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t), provider.NewFake(cannedVerdict), Deps{})

	body := `{"name":"gift_card_demand","description":"Payment demanded in gift cards","severity":"high"}`

	rr, resp := doJSON(t, srv, http.MethodPost, "/api/patterns", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if msg, _ := resp["message"].(string); !strings.Contains(msg, "gift_card_demand") {
		t.Errorf("message = %v", resp["message"])
	}

	rr, _ = doJSON(t, srv, http.MethodPost, "/api/patterns", body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", rr.Code)
	}
}

func TestPatternCreateRejectsBadSeverity(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t), provider.NewFake(cannedVerdict), Deps{})

	rr, _ := doJSON(t, srv, http.MethodPost, "/api/patterns",
		`{"name":"x","description":"y","severity":"catastrophic"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestPatternUpdateAndDelete(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t), provider.NewFake(cannedVerdict), Deps{})

	rr, body := doJSON(t, srv, http.MethodPut, "/api/patterns/phishing",
		`{"severity":"critical","description":"Credential theft via fake login pages"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	view := body["pattern"].(map[string]any)
	if view["severity"] != "critical" {
		t.Errorf("severity = %v", view["severity"])
	}
	if view["description"] != "Credential theft via fake login pages" {
		t.Errorf("description = %v", view["description"])
	}

	rr, _ = doJSON(t, srv, http.MethodPut, "/api/patterns/no_such_pattern", `{"severity":"low"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("update missing: expected 404, got %d", rr.Code)
	}

	rr, _ = doJSON(t, srv, http.MethodDelete, "/api/patterns/phishing", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rr.Code)
	}
	rr, _ = doJSON(t, srv, http.MethodDelete, "/api/patterns/phishing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rr.Code)
	}
}

func TestPatternsExport(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t), provider.NewFake(cannedVerdict), Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/patterns/export", nil)
	rr := httptest.NewRecorder()
	srv.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "scam_patterns.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	var exported []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &exported); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(exported) != 10 {
		t.Fatalf("expected 10 patterns, got %d", len(exported))
	}
}

func TestPatternsImport(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t), provider.NewFake(cannedVerdict), Deps{})

	payload := `[
		{"name":"qr_code_swap","description":"Malicious QR stickers over real ones","severity":"medium"},
		{"name":"phishing","description":"dupe of a built-in"},
		{"not_a_name":true},
		{"name":"wrong_sev","description":"falls back to medium","severity":"banana"}
	]`

	rr, body := doJSON(t, srv, http.MethodPost, "/api/patterns/import", payload)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	imported := body["imported"].([]any)
	skipped := body["skipped"].([]any)
	importErrors := body["errors"].([]any)

	if len(imported) != 2 {
		t.Errorf("imported = %v", imported)
	}
	if len(skipped) != 1 || skipped[0] != "phishing" {
		t.Errorf("skipped = %v", skipped)
	}
	if len(importErrors) != 1 {
		t.Errorf("errors = %v", importErrors)
	}
}

func TestPatternsImportReplace(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t), provider.NewFake(cannedVerdict), Deps{})

	payload := `[{"name":"only_one","description":"sole pattern","severity":"low"}]`
	rr, _ := doJSON(t, srv, http.MethodPost, "/api/patterns/import?replace=true", payload)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	srv.mu.RLock()
	n := srv.registry.Len()
	srv.mu.RUnlock()
	if n != 1 {
		t.Fatalf("expected registry to hold only the import, got %d patterns", n)
	}
}

func TestPatternsReset(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t), provider.NewFake(cannedVerdict), Deps{})

	doJSON(t, srv, http.MethodDelete, "/api/patterns/phishing", "")
	doJSON(t, srv, http.MethodDelete, "/api/patterns/romance_scam", "")

	rr, body := doJSON(t, srv, http.MethodPost, "/api/patterns/reset", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if count, _ := body["count"].(float64); count != 10 {
		t.Fatalf("count = %v", body["count"])
	}
}

func TestPatternsPersistAcrossServers(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "patterns.db")

	st, err := store.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	srv := newTestServer(t, newTestConfig(t), provider.NewFake(cannedVerdict), Deps{Store: st})

	rr, _ := doJSON(t, srv, http.MethodPost, "/api/patterns",
		`{"name":"deepfake_call","description":"Cloned voice asking for urgent money","severity":"critical"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d", rr.Code)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	st2, err := store.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st2.Close()

	srv2 := newTestServer(t, newTestConfig(t), provider.NewFake(cannedVerdict), Deps{Store: st2})

	srv2.mu.RLock()
	_, found := srv2.registry.Find("deepfake_call")
	n := srv2.registry.Len()
	srv2.mu.RUnlock()

	if !found {
		t.Fatal("pattern created before restart should survive it")
	}
	if n != 11 {
		t.Fatalf("expected 11 patterns after reload, got %d", n)
	}
}

func TestAPIKeyGuard(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Server.APIKeys = []string{"mgmt-key"}
	srv := newTestServer(t, cfg, provider.NewFake(cannedVerdict), Deps{})

	// Health stays open for probes.
	rr, _ := doJSON(t, srv, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rr.Code)
	}

	rr, _ = doJSON(t, srv, http.MethodGet, "/api/patterns", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no key: expected 401, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/patterns", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/patterns", nil)
	req.Header.Set("Authorization", "Bearer mgmt-key")
	rec = httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("good key: expected 200, got %d", rec.Code)
	}
}
