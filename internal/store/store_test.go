package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/scamwatch-ai/scamwatch/internal/analysis"
	"github.com/scamwatch-ai/scamwatch/internal/pattern"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "patterns.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadEmptyStore(t *testing.T) {
	s := openTestStore(t)
	patterns, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(patterns) != 0 {
		t.Fatalf("expected empty store, got %d patterns", len(patterns))
	}
}

func TestReplaceAndLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := []pattern.ScamPattern{
		{
			Name:        "b_pattern",
			Description: "second alphabetically, first by position",
			Indicators:  []string{"flag one", "flag two"},
			Severity:    analysis.RiskCritical,
			Examples:    []string{"example text"},
		},
		{
			Name:     "a_pattern",
			Severity: analysis.RiskLow,
		},
	}

	if err := s.Replace(ctx, want); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(got))
	}
	// Insertion order wins, not name order.
	if got[0].Name != "b_pattern" || got[1].Name != "a_pattern" {
		t.Fatalf("unexpected order: %q, %q", got[0].Name, got[1].Name)
	}
	if got[0].Severity != analysis.RiskCritical || len(got[0].Indicators) != 2 {
		t.Fatalf("pattern fields lost: %+v", got[0])
	}
	if got[1].Description != "" || len(got[1].Indicators) != 0 {
		t.Fatalf("empty fields should stay empty: %+v", got[1])
	}
}

func TestReplaceIsWholesale(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Replace(ctx, pattern.Common()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.Replace(ctx, []pattern.ScamPattern{{Name: "only", Severity: analysis.RiskMedium}}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].Name != "only" {
		t.Fatalf("replace must discard the previous set, got %+v", got)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
