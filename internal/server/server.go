// Package server exposes the detection core over a management HTTP API:
// analysis endpoints, pattern CRUD with optional SQLite persistence, and
// runtime model configuration.
package server

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/scamwatch-ai/scamwatch/internal/auth"
	"github.com/scamwatch-ai/scamwatch/internal/config"
	"github.com/scamwatch-ai/scamwatch/internal/detect"
	"github.com/scamwatch-ai/scamwatch/internal/eventlog"
	"github.com/scamwatch-ai/scamwatch/internal/pattern"
	"github.com/scamwatch-ai/scamwatch/internal/provider"
	"github.com/scamwatch-ai/scamwatch/internal/store"
	"github.com/scamwatch-ai/scamwatch/internal/telemetry"
)

// Version is reported by /api/health.
const Version = "0.1.0"

// ProviderFactory builds the model provider from the current runtime
// provider settings. Tests swap this for a fake.
type ProviderFactory func(pc config.ProviderConfig, apiKey string) provider.Provider

// Deps are the optional collaborators the server wires in. Any of them may
// be nil; the server then runs without persistence, events, or telemetry.
type Deps struct {
	Store       *store.Store
	Events      *eventlog.Emitter
	Telemetry   *telemetry.Provider
	NewProvider ProviderFactory
}

// Server holds the HTTP surface and the mutable runtime state behind it.
// The RWMutex serializes pattern and config mutation against in-flight
// analyze calls: analysis holds the read lock for the duration of the model
// call, mutations take the write lock.
type Server struct {
	mux *http.ServeMux
	cfg *config.Config

	mu       sync.RWMutex
	provCfg  config.ProviderConfig
	apiKey   string
	registry *pattern.Registry
	detector *detect.Detector

	authz       *auth.Auth
	store       *store.Store
	events      *eventlog.Emitter
	telemetry   *telemetry.Provider
	newProvider ProviderFactory
}

// New creates a server with all routes registered. When a store is supplied
// the pattern set is loaded from it; an empty store is seeded with the
// built-in patterns.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	factory := deps.NewProvider
	if factory == nil {
		factory = defaultProviderFactory
	}

	s := &Server{
		mux:         http.NewServeMux(),
		cfg:         cfg,
		provCfg:     cfg.Provider,
		apiKey:      cfg.Provider.APIKey(),
		registry:    pattern.NewRegistry(pattern.Common()...),
		authz:       auth.New(cfg.Server.APIKeys),
		store:       deps.Store,
		events:      deps.Events,
		telemetry:   deps.Telemetry,
		newProvider: factory,
	}

	if s.store != nil {
		ctx := context.Background()
		stored, err := s.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		if len(stored) > 0 {
			s.registry = pattern.NewRegistry(stored...)
		} else if err := s.store.Replace(ctx, s.registry.Patterns()); err != nil {
			return nil, err
		}
	}

	s.rebuildDetectorLocked()

	// Health stays open for probes; everything else sits behind the
	// (optional) bearer key check.
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/config", s.guard(s.handleConfig))
	s.mux.HandleFunc("/api/analyze", s.guard(s.handleAnalyze))
	s.mux.HandleFunc("/api/analyze/batch", s.guard(s.handleAnalyzeBatch))
	s.mux.HandleFunc("/api/patterns", s.guard(s.handlePatterns))
	s.mux.HandleFunc("/api/patterns/export", s.guard(s.handlePatternsExport))
	s.mux.HandleFunc("/api/patterns/import", s.guard(s.handlePatternsImport))
	s.mux.HandleFunc("/api/patterns/reset", s.guard(s.handlePatternsReset))
	s.mux.HandleFunc("/api/patterns/", s.guard(s.handlePatternByName))

	return s, nil
}

func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authz.Enabled() {
			next(w, r)
			return
		}
		token, ok := auth.ParseBearer(r.Header.Get("Authorization"))
		if !ok || !s.authz.Allow(token) {
			writeError(w, http.StatusUnauthorized, "Invalid or missing API key")
			return
		}
		next(w, r)
	}
}

func defaultProviderFactory(pc config.ProviderConfig, apiKey string) provider.Provider {
	return provider.NewOpenAI(provider.OpenAIOptions{
		BaseURL: pc.BaseURL,
		APIKey:  apiKey,
		Model:   pc.Model,
		Timeout: time.Duration(pc.TimeoutSeconds) * time.Second,
	})
}

// rebuildDetectorLocked swaps in a fresh provider and detector for the
// current provider settings. Caller must hold the write lock (or be the
// constructor).
func (s *Server) rebuildDetectorLocked() {
	prov := s.newProvider(s.provCfg, s.apiKey)
	s.detector = detect.New(prov, s.registry, detect.Options{
		Model:       s.provCfg.Model,
		MaxTokens:   s.provCfg.MaxTokens,
		Temperature: s.provCfg.Temperature,
	})
}

// Handler returns the server's HTTP handler for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	log.Printf("scamwatch management API running on %s", addr)
	return http.ListenAndServe(addr, s.mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

// configView is /api/config's wire shape. The key itself never leaves the
// server, only whether one is set.
type configView struct {
	BaseURL     string   `json:"base_url"`
	APIKey      string   `json:"api_key"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
}

type configUpdate struct {
	BaseURL     *string  `json:"base_url"`
	APIKey      *string  `json:"api_key"`
	Model       *string  `json:"model"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
}

func (s *Server) configViewLocked() configView {
	v := configView{
		BaseURL:     s.provCfg.BaseURL,
		Model:       s.provCfg.Model,
		Temperature: s.provCfg.Temperature,
		MaxTokens:   s.provCfg.MaxTokens,
	}
	if s.apiKey != "" {
		v.APIKey = "***configured***"
	}
	return v
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		view := s.configViewLocked()
		s.mu.RUnlock()
		writeJSON(w, http.StatusOK, view)

	case http.MethodPut:
		var update configUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		s.mu.Lock()
		if update.BaseURL != nil {
			s.provCfg.BaseURL = *update.BaseURL
		}
		if update.APIKey != nil {
			s.apiKey = *update.APIKey
		}
		if update.Model != nil {
			s.provCfg.Model = *update.Model
		}
		if update.Temperature != nil {
			t := *update.Temperature
			s.provCfg.Temperature = &t
		}
		if update.MaxTokens != nil {
			s.provCfg.MaxTokens = *update.MaxTokens
		}
		s.rebuildDetectorLocked()
		view := s.configViewLocked()
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Configuration updated",
			"config":  view,
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// persistLocked writes the current pattern set through to the store, if one
// is configured. Persistence failures are logged, not surfaced: the
// in-memory registry already changed and stays authoritative for this run.
func (s *Server) persistLocked(r *http.Request) {
	if s.store == nil {
		return
	}
	if err := s.store.Replace(r.Context(), s.registry.Patterns()); err != nil {
		log.Printf("server: persist patterns: %v", err)
	}
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: write response: %v", err)
	}
}
