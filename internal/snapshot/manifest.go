package snapshot

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Claxl/Parallel-Computing2023/internal/config"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Manifest records which artifacts exist, which run produced them, and
// their checksums. Uses SQLite with WAL mode; only rank 0 ever writes to
// it, after the group barrier that seals each artifact.
type Manifest struct {
	db *sql.DB
}

// OpenManifest creates or opens the manifest database at the given path.
// Applies required pragmas and the schema; idempotent.
func OpenManifest(path string) (*Manifest, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect manifest: %w", err)
	}

	// Single writer keeps SQLITE_BUSY out of the picture.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply manifest schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		db.Close()
		return nil, fmt.Errorf("set user_version: %w", err)
	}
	return &Manifest{db: db}, nil
}

// Close closes the manifest database.
func (m *Manifest) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// BeginRun records a new run and returns its id.
func (m *Manifest) BeginRun(ctx context.Context, p config.Params, ranks int) (string, error) {
	id := uuid.NewString()
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, rows, cols, ranks, max_iteration, snapshot_frequency, dt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339), p.Rows, p.Cols, ranks,
		p.MaxIteration, p.SnapshotFrequency, p.Dt,
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return id, nil
}

// RecordSnapshot registers a sealed artifact for a run.
func (m *Manifest) RecordSnapshot(ctx context.Context, runID string, index, iteration int, file, sha string, size int64) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO snapshots (run_id, idx, iteration, file, sha256, bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, index, iteration, file, sha, size,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record snapshot %05d: %w", index, err)
	}
	return nil
}

// Entry is one manifest row, as listed by Snapshots.
type Entry struct {
	RunID     string `json:"run_id"`
	Index     int    `json:"index"`
	Iteration int    `json:"iteration"`
	File      string `json:"file"`
	SHA256    string `json:"sha256"`
	Bytes     int64  `json:"bytes"`
	CreatedAt string `json:"created_at"`
}

// Snapshots lists all recorded artifacts in (run, iteration) order.
func (m *Manifest) Snapshots(ctx context.Context) ([]Entry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT run_id, idx, iteration, file, sha256, bytes, created_at
		FROM snapshots ORDER BY run_id, iteration`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RunID, &e.Index, &e.Iteration, &e.File, &e.SHA256, &e.Bytes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
