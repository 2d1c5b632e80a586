package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/scamwatch-ai/scamwatch/internal/analysis"
	"github.com/scamwatch-ai/scamwatch/internal/pattern"
)

type patternView struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Indicators  []string `json:"indicators"`
	Severity    string   `json:"severity"`
	Examples    []string `json:"examples"`
}

func buildPatternView(p pattern.ScamPattern) patternView {
	indicators := p.Indicators
	if indicators == nil {
		indicators = []string{}
	}
	examples := p.Examples
	if examples == nil {
		examples = []string{}
	}
	return patternView{
		Name:        p.Name,
		Description: p.Description,
		Indicators:  indicators,
		Severity:    string(p.Severity),
		Examples:    examples,
	}
}

func buildPatternViews(patterns []pattern.ScamPattern) []patternView {
	views := make([]patternView, 0, len(patterns))
	for _, p := range patterns {
		views = append(views, buildPatternView(p))
	}
	return views
}

type patternPayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Indicators  []string `json:"indicators"`
	Severity    string   `json:"severity"`
	Examples    []string `json:"examples"`
}

// parseSeverity maps the wire severity to a risk level. An empty value
// defaults to medium, matching pattern.New.
func parseSeverity(s string) (analysis.RiskLevel, bool) {
	if strings.TrimSpace(s) == "" {
		return analysis.RiskMedium, true
	}
	return analysis.ParseRiskLevel(strings.ToLower(s))
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		views := buildPatternViews(s.registry.Patterns())
		s.mu.RUnlock()
		writeJSON(w, http.StatusOK, views)

	case http.MethodPost:
		var payload patternPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(payload.Name) == "" {
			writeError(w, http.StatusBadRequest, "pattern name must be set")
			return
		}
		severity, ok := parseSeverity(payload.Severity)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid severity: %s", payload.Severity))
			return
		}
		p, err := pattern.New(payload.Name, payload.Description, payload.Indicators, severity, payload.Examples)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		s.mu.Lock()
		if _, exists := s.registry.Find(p.Name); exists {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, fmt.Sprintf("Pattern '%s' already exists", p.Name))
			return
		}
		s.registry.Add(p)
		s.persistLocked(r)
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]any{
			"message": fmt.Sprintf("Pattern '%s' created", p.Name),
			"pattern": buildPatternView(p),
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type patternUpdate struct {
	Description *string   `json:"description"`
	Indicators  *[]string `json:"indicators"`
	Severity    *string   `json:"severity"`
	Examples    *[]string `json:"examples"`
}

func (s *Server) handlePatternByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/patterns/")
	if name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var update patternUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		s.mu.Lock()
		existing, ok := s.registry.Find(name)
		if !ok {
			s.mu.Unlock()
			writeError(w, http.StatusNotFound, fmt.Sprintf("Pattern '%s' not found", name))
			return
		}

		updated := existing
		if update.Description != nil {
			updated.Description = *update.Description
		}
		if update.Indicators != nil {
			updated.Indicators = *update.Indicators
		}
		if update.Examples != nil {
			updated.Examples = *update.Examples
		}
		if update.Severity != nil {
			severity, valid := parseSeverity(*update.Severity)
			if !valid {
				s.mu.Unlock()
				writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid severity: %s", *update.Severity))
				return
			}
			updated.Severity = severity
		}

		s.registry.Remove(name)
		s.registry.Add(updated)
		s.persistLocked(r)
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]any{
			"message": fmt.Sprintf("Pattern '%s' updated", name),
			"pattern": buildPatternView(updated),
		})

	case http.MethodDelete:
		s.mu.Lock()
		removed := s.registry.Remove(name)
		if removed {
			s.persistLocked(r)
		}
		s.mu.Unlock()

		if !removed {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Pattern '%s' not found", name))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("Pattern '%s' deleted", name),
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePatternsExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	views := buildPatternViews(s.registry.Patterns())
	s.mu.RUnlock()

	body, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=scam_patterns.json")
	w.Write(body)
}

func (s *Server) handlePatternsImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	replace := false
	if v := r.URL.Query().Get("replace"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "replace must be a boolean")
			return
		}
		replace = parsed
	}

	var items []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: body must be an array of patterns")
		return
	}

	imported := []string{}
	skipped := []string{}
	importErrors := []string{}

	s.mu.Lock()
	if replace {
		s.registry.Clear()
	}

	existing := make(map[string]bool, s.registry.Len())
	for _, p := range s.registry.Patterns() {
		existing[p.Name] = true
	}

	for i, raw := range items {
		var payload patternPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			importErrors = append(importErrors, fmt.Sprintf("Item %d: not an object", i))
			continue
		}
		if strings.TrimSpace(payload.Name) == "" {
			importErrors = append(importErrors, fmt.Sprintf("Item %d: missing 'name'", i))
			continue
		}
		if existing[payload.Name] {
			skipped = append(skipped, payload.Name)
			continue
		}

		// An unknown severity falls back to medium instead of failing
		// the item.
		severity, ok := parseSeverity(payload.Severity)
		if !ok {
			severity = analysis.RiskMedium
		}

		p, err := pattern.New(payload.Name, payload.Description, payload.Indicators, severity, payload.Examples)
		if err != nil {
			importErrors = append(importErrors, fmt.Sprintf("Item %d (%s): %v", i, payload.Name, err))
			continue
		}

		s.registry.Add(p)
		existing[p.Name] = true
		imported = append(imported, p.Name)
	}

	if len(imported) > 0 || replace {
		s.persistLocked(r)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Import complete: %d imported, %d skipped, %d errors",
			len(imported), len(skipped), len(importErrors)),
		"imported": imported,
		"skipped":  skipped,
		"errors":   importErrors,
	})
}

func (s *Server) handlePatternsReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	s.registry.Clear()
	s.registry.AddAll(pattern.Common())
	s.persistLocked(r)
	count := s.registry.Len()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Patterns reset to defaults",
		"count":   count,
	})
}
