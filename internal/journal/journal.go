// Package journal records pick-and-place outcomes. tasks.jsonl in the data
// directory is the source of truth; an SQLite database rebuilt from it on
// attach answers queries.
package journal

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// File names inside the data directory.
const (
	TasksFile    = "tasks.jsonl"
	DatabaseFile = "journal.db"
)

var columns = []string{
	"task_id", "utterance", "item", "location", "outcome", "step", "error",
	"commands", "grasp_toggles", "started_at", "finished_at",
}

// Backend implements types.Journal on SQLite and JSONL.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	dataDir  string
	db       *sql.DB
	now      func() time.Time
}

var _ types.Journal = (*Backend)(nil)

// NewBackend creates a detached backend.
func NewBackend() *Backend {
	return &Backend{now: time.Now}
}

// Attach opens the journal in dataDir, creating the directory and an empty
// tasks.jsonl if needed, and loads existing records.
func (b *Backend) Attach(dataDir string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if dataDir == "" {
		return types.ErrDataDirEmpty
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// The database is only an index; start from a fresh one.
	dbPath := filepath.Join(dataDir, DatabaseFile)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("creating schema: %w", err)
	}

	tasksPath := filepath.Join(dataDir, TasksFile)
	if err := ensureFile(tasksPath); err != nil {
		db.Close()
		return fmt.Errorf("creating %s: %w", TasksFile, err)
	}
	if err := load(db, tasksPath); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	b.db = db
	b.dataDir = dataDir
	b.attached = true
	return nil
}

// Detach closes the database. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	err := b.db.Close()
	b.db = nil
	return err
}

// Record inserts rec and rewrites tasks.jsonl.
func (b *Backend) Record(rec types.TaskRecord) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return "", types.ErrJournalDetached
	}
	if !rec.Outcome.Valid() {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidOutcome, rec.Outcome)
	}
	if rec.TaskID == "" {
		rec.TaskID = generateUUID()
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = b.now()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = rec.FinishedAt
	}

	if _, err := b.db.Exec(insertSQL("INSERT"), rowValues(rec)...); err != nil {
		return "", fmt.Errorf("inserting task %s: %w", rec.TaskID, err)
	}
	if err := b.persistLocked(); err != nil {
		return "", err
	}
	return rec.TaskID, nil
}

// List returns records matching filter, most recent first.
func (b *Backend) List(filter types.JournalFilter) ([]types.TaskRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrJournalDetached
	}
	if filter.Outcome != "" && !filter.Outcome.Valid() {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidOutcome, filter.Outcome)
	}

	query := "SELECT " + strings.Join(columns, ", ") + " FROM tasks"
	var args []any
	if filter.Outcome != "" {
		query += " WHERE outcome = ?"
		args = append(args, string(filter.Outcome))
	}
	query += " ORDER BY started_at DESC, task_id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return b.query(query, args...)
}

func (b *Backend) query(query string, args ...any) ([]types.TaskRecord, error) {
	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var out []types.TaskRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// persistLocked writes every record to tasks.jsonl in insertion order. The
// caller must hold b.mu.
func (b *Backend) persistLocked() error {
	recs, err := b.query("SELECT " + strings.Join(columns, ", ") + " FROM tasks ORDER BY rowid")
	if err != nil {
		return err
	}
	lines := make([]json.RawMessage, 0, len(recs))
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding task %s: %w", rec.TaskID, err)
		}
		lines = append(lines, data)
	}
	if err := writeJSONL(filepath.Join(b.dataDir, TasksFile), lines); err != nil {
		return fmt.Errorf("persisting %s: %w", TasksFile, err)
	}
	return nil
}

// load inserts every record of the JSONL file in one transaction. Records
// that do not decode are skipped like malformed lines.
func load(db *sql.DB, path string) error {
	lines, err := readJSONL(path)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertSQL("INSERT OR REPLACE"))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, line := range lines {
		var rec types.TaskRecord
		if err := json.Unmarshal(line, &rec); err != nil || rec.TaskID == "" {
			continue
		}
		if _, err := stmt.Exec(rowValues(rec)...); err != nil {
			return fmt.Errorf("loading task %s: %w", rec.TaskID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

func insertSQL(verb string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("%s INTO tasks (%s) VALUES (%s)", verb, strings.Join(columns, ", "), placeholders)
}

func rowValues(rec types.TaskRecord) []any {
	return []any{
		rec.TaskID, rec.Utterance, string(rec.Item), string(rec.Location), string(rec.Outcome),
		rec.Step, rec.Error, rec.Commands, rec.GraspToggles,
		formatTime(rec.StartedAt), formatTime(rec.FinishedAt),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (types.TaskRecord, error) {
	var (
		rec                types.TaskRecord
		item, loc, outcome string
		started, finished  string
	)
	if err := s.Scan(&rec.TaskID, &rec.Utterance, &item, &loc, &outcome, &rec.Step, &rec.Error,
		&rec.Commands, &rec.GraspToggles, &started, &finished); err != nil {
		return types.TaskRecord{}, fmt.Errorf("scanning task: %w", err)
	}
	rec.Item = types.ItemID(item)
	rec.Location = types.LocationID(loc)
	rec.Outcome = types.Outcome(outcome)
	rec.StartedAt = parseTime(started)
	rec.FinishedAt = parseTime(finished)
	return rec, nil
}

// Timestamps are stored as fixed-width UTC strings so they sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

// generateUUID returns a UUID v7, time-ordered, falling back to v4.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
