// Package journal records vault operations in a local SQLite database.
// The journal is an audit trail, not a dependency: callers treat every
// journal failure as a warning and carry on with the vault operation.
package journal

import (
	"database/sql"
	"fmt"

	"myz-go/internal/journal/migrations"
	"myz-go/internal/vault"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Entry statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCorrupt   = "completed_corrupt"
	StatusFailed    = "failed"
)

// Entry is one recorded vault operation.
type Entry struct {
	ID         int64
	OpID       string
	Operation  string
	InputPath  string
	OutputPath string
	MasterSeed string // hex, empty until the operation finishes
	Bytes      int64
	Status     string
	StartedAt  sql.NullTime
	FinishedAt sql.NullTime
}

// Journal is the operation log. It owns its database connection; Close
// releases it.
type Journal struct {
	db    *sql.DB
	clock vault.Clock
	idgen vault.IDGenerator
}

// Open opens (or creates) the journal database at path and brings its
// schema up to date. path may be ":memory:" in tests.
func Open(path string, clock vault.Clock, idgen vault.IDGenerator) (*Journal, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating journal schema: %w", err)
	}

	return &Journal{db: db, clock: clock, idgen: idgen}, nil
}

// OpenConnection opens and configures a SQLite connection without
// touching the schema. Most callers want Open instead.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	// SQLite ships with foreign keys off for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Begin records the start of an operation and returns its entry.
func (j *Journal) Begin(operation, inputPath string) (*Entry, error) {
	e := &Entry{
		OpID:      j.idgen.New(),
		Operation: operation,
		InputPath: inputPath,
		Status:    StatusRunning,
		StartedAt: sql.NullTime{Time: j.clock.Now(), Valid: true},
	}

	res, err := j.db.Exec(
		`INSERT INTO vault_operations (op_id, operation, input_path, status, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.OpID, e.Operation, e.InputPath, e.Status, e.StartedAt.Time,
	)
	if err != nil {
		return nil, fmt.Errorf("recording operation start: %w", err)
	}

	e.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return e, nil
}

// Finish closes out an entry with its final status and counters.
func (j *Journal) Finish(e *Entry, status, outputPath, masterSeed string, bytes int64) error {
	finished := j.clock.Now()
	_, err := j.db.Exec(
		`UPDATE vault_operations
		 SET status = ?, output_path = ?, master_seed = ?, bytes_processed = ?, finished_at = ?
		 WHERE id = ?`,
		status, outputPath, masterSeed, bytes, finished, e.ID,
	)
	if err != nil {
		return fmt.Errorf("recording operation finish: %w", err)
	}

	e.Status = status
	e.OutputPath = outputPath
	e.MasterSeed = masterSeed
	e.Bytes = bytes
	e.FinishedAt = sql.NullTime{Time: finished, Valid: true}
	return nil
}

// List returns the most recent entries, newest first.
func (j *Journal) List(limit int) ([]*Entry, error) {
	rows, err := j.db.Query(
		`SELECT id, op_id, operation, input_path, output_path, master_seed,
		        bytes_processed, status, started_at, finished_at
		 FROM vault_operations
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(
			&e.ID, &e.OpID, &e.Operation, &e.InputPath, &e.OutputPath,
			&e.MasterSeed, &e.Bytes, &e.Status, &e.StartedAt, &e.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning operation row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading operation rows: %w", err)
	}
	return entries, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}
