// Package archive provides the optional SQLite-backed thought archive.
//
// The in-memory session log is always the source of truth; the archive is a
// host-layered copy enabled by pointing THINK_ARCHIVE_DB at a database path.
// Archive failures never fail a tool call or touch the session.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/modelkit/mcp-think-tool/common/retry"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/session"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// writeRetry covers transient SQLITE_BUSY-style failures on concurrent
// writers sharing one archive file.
var writeRetry = retry.Config{
	MaxAttempts:  3,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     500 * time.Millisecond,
	ShouldRetry:  isBusy,
}

// Archive wraps the SQLite connection holding archived thoughts.
type Archive struct {
	db *sql.DB
}

// Open opens (or creates) the archive database at dbPath and runs all pending
// migrations.
func Open(dbPath string) (*Archive, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	a := &Archive{db: db}
	if err := a.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return a, nil
}

// Close closes the underlying database connection.
func (a *Archive) Close() error { return a.db.Close() }

// Record writes one thought entry for the given session. Writes are retried
// on transient lock contention.
func (a *Archive) Record(ctx context.Context, sessionID string, e session.ThoughtEntry) error {
	var alternatives interface{}
	if len(e.Alternatives) > 0 {
		raw, err := json.Marshal(e.Alternatives)
		if err != nil {
			return fmt.Errorf("marshal alternatives: %w", err)
		}
		alternatives = string(raw)
	}
	var confidence interface{}
	if e.Confidence != nil {
		confidence = *e.Confidence
	}
	var pattern, justification interface{}
	if e.Pattern != "" {
		pattern = e.Pattern
	}
	if e.Justification != "" {
		justification = e.Justification
	}

	err := retry.Do(ctx, writeRetry, func() error {
		_, err := a.db.ExecContext(ctx, `
			INSERT INTO thoughts (session_id, seq, thought, pattern, confidence, alternatives, justification, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, e.Seq, e.Thought, pattern, confidence, alternatives, justification,
			e.RecordedAt.Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("record thought %d for session %s: %w", e.Seq, sessionID, err)
	}
	return nil
}

// Thoughts returns all archived entries for a session in sequence order.
func (a *Archive) Thoughts(ctx context.Context, sessionID string) ([]session.ThoughtEntry, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT seq, thought, pattern, confidence, alternatives, justification, recorded_at
		FROM thoughts WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query thoughts: %w", err)
	}
	defer rows.Close()

	var out []session.ThoughtEntry
	for rows.Next() {
		var e session.ThoughtEntry
		var pattern, alternatives, justification sql.NullString
		var confidence sql.NullFloat64
		var recordedAt string
		if err := rows.Scan(&e.Seq, &e.Thought, &pattern, &confidence, &alternatives, &justification, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan thought: %w", err)
		}
		e.Pattern = pattern.String
		e.Justification = justification.String
		if confidence.Valid {
			v := confidence.Float64
			e.Confidence = &v
		}
		if alternatives.Valid && alternatives.String != "" {
			if err := json.Unmarshal([]byte(alternatives.String), &e.Alternatives); err != nil {
				return nil, fmt.Errorf("decode alternatives: %w", err)
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			e.RecordedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// runMigrations applies any SQL files not yet recorded in schema_migrations.
func (a *Archive) runMigrations() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			description TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	_ = a.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current)

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		parts := strings.SplitN(e.Name(), "_", 2)
		if len(parts) < 2 {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(parts[0], "%d", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		description := strings.TrimSuffix(parts[1], ".sql")

		content, err := migrationsFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}

		tx, err := a.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration tx: %w", err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", e.Name(), err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			version, description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", e.Name(), err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", e.Name(), err)
		}
	}
	return nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
