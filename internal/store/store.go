// Package store persists the pattern set outside the detection core. The
// core itself guarantees nothing about persistence; the server layer loads
// the set at boot and replaces it wholesale after each mutation.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/scamwatch-ai/scamwatch/internal/analysis"
	"github.com/scamwatch-ai/scamwatch/internal/pattern"
)

// Store manages pattern persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS patterns (
	position    INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	indicators  TEXT NOT NULL DEFAULT '[]',
	severity    TEXT NOT NULL DEFAULT 'medium',
	examples    TEXT NOT NULL DEFAULT '[]'
);
`

// Open creates or opens the pattern database at path, creating parent
// directories as needed.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path must be set")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open pattern db %s: %w", path, err)
	}

	s := &Store{db: db, path: path}
	if err := s.execWithRetry(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize pattern db %s: %w", path, err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns all stored patterns in insertion order. A severity that no
// longer parses falls back to medium rather than failing the whole load.
func (s *Store) Load(ctx context.Context) ([]pattern.ScamPattern, error) {
	ctx = ensureContext(ctx)

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, indicators, severity, examples FROM patterns ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	var patterns []pattern.ScamPattern
	for rows.Next() {
		var name, description, indicatorsJSON, severity, examplesJSON string
		if err := rows.Scan(&name, &description, &indicatorsJSON, &severity, &examplesJSON); err != nil {
			return nil, fmt.Errorf("scan pattern row: %w", err)
		}

		var indicators, examples []string
		if err := json.Unmarshal([]byte(indicatorsJSON), &indicators); err != nil {
			return nil, fmt.Errorf("decode indicators for %q: %w", name, err)
		}
		if err := json.Unmarshal([]byte(examplesJSON), &examples); err != nil {
			return nil, fmt.Errorf("decode examples for %q: %w", name, err)
		}

		sev, ok := analysis.ParseRiskLevel(severity)
		if !ok {
			sev = analysis.RiskMedium
		}

		patterns = append(patterns, pattern.ScamPattern{
			Name:        name,
			Description: description,
			Indicators:  indicators,
			Severity:    sev,
			Examples:    examples,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}
	return patterns, nil
}

// Replace swaps the stored set for the given one in a single transaction.
// The wholesale replacement mirrors the registry's remove+insert update
// semantics.
func (s *Store) Replace(ctx context.Context, patterns []pattern.ScamPattern) error {
	ctx = ensureContext(ctx)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin replace: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `DELETE FROM patterns`); err != nil {
			return fmt.Errorf("clear patterns: %w", err)
		}

		for _, p := range patterns {
			indicators, err := json.Marshal(sliceOrEmpty(p.Indicators))
			if err != nil {
				return fmt.Errorf("encode indicators for %q: %w", p.Name, err)
			}
			examples, err := json.Marshal(sliceOrEmpty(p.Examples))
			if err != nil {
				return fmt.Errorf("encode examples for %q: %w", p.Name, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO patterns (name, description, indicators, severity, examples) VALUES (?, ?, ?, ?, ?)`,
				p.Name, p.Description, string(indicators), string(p.Severity), string(examples),
			); err != nil {
				return fmt.Errorf("insert pattern %q: %w", p.Name, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit replace: %w", err)
		}
		return nil
	})
}

func sliceOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}
