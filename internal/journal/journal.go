// Package journal keeps the latest known state of every generation in
// SQLite so reconnecting clients can resync.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/manozcodes/mgpt/internal/events"
	"github.com/manozcodes/mgpt/internal/models"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("generation not found")

// Simulations do not outlive the process; rows still in flight when a
// journal is reopened are failed with these values.
const (
	InterruptedError   = "Network Failed"
	InterruptedMessage = "Server restarted before the generation finished."
)

// Journal is an events.Sink that folds lifecycle events into one row per
// generation.
type Journal struct {
	db *sqlx.DB
}

// Open opens (or creates) the journal at path and runs migrations. An empty
// path opens a private in-memory database.
func Open(path string) (*Journal, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// One writer, and an in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	n, err := j.failInterrupted()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("fail interrupted generations: %w", err)
	}
	if n > 0 {
		log.Printf("Journal: marked %d interrupted generations failed", n)
	}
	return j, nil
}

// failInterrupted fails every generation left pending or generating by a
// previous process.
func (j *Journal) failInterrupted() (int64, error) {
	res, err := j.db.Exec(
		`UPDATE generations SET status = ?, error = ?, message = ?
		 WHERE status IN ('pending', 'generating')`,
		models.StatusFailed, InterruptedError, InterruptedMessage)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Ping checks the database connection is alive.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		progress INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		audio_url TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations(created_at);
	CREATE INDEX IF NOT EXISTS idx_generations_status ON generations(status);
	`

	_, err := j.db.Exec(schema)
	return err
}

// Emit records ev, logging failures. It lets the journal sit on the bus.
func (j *Journal) Emit(ev events.Event) {
	if err := j.Record(context.Background(), ev); err != nil {
		log.Printf("Journal: %s %s: %v", ev.EventName(), ev.GenerationID(), err)
	}
}

// Record applies one event. Events for unknown ids are ignored, and
// nothing changes a generation once it is completed or failed.
func (j *Journal) Record(ctx context.Context, ev events.Event) error {
	var err error
	switch e := ev.(type) {
	case events.Started:
		_, err = j.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO generations (id, prompt, status, progress, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			e.ID, e.Prompt, e.Status, e.Progress, e.CreatedAt)
	case events.Progress:
		_, err = j.db.ExecContext(ctx,
			`UPDATE generations SET status = ?, progress = MAX(progress, ?)
			 WHERE id = ? AND status IN ('pending', 'generating')`,
			e.Status, min(e.Progress, 100), e.ID)
	case events.Completed:
		_, err = j.db.ExecContext(ctx,
			`UPDATE generations
			 SET status = ?, progress = 100, title = ?, description = ?, image = ?, audio_url = ?
			 WHERE id = ? AND status IN ('pending', 'generating')`,
			e.Status, e.Title, e.Description, e.Image, e.AudioURL, e.ID)
	case events.Failed:
		_, err = j.db.ExecContext(ctx,
			`UPDATE generations SET status = ?, error = ?, message = ?
			 WHERE id = ? AND status IN ('pending', 'generating')`,
			e.Status, e.Error, e.Message, e.ID)
	default:
		return fmt.Errorf("%w: %T", events.ErrUnknownEvent, ev)
	}
	if err != nil {
		return fmt.Errorf("record %s: %w", ev.EventName(), err)
	}
	return nil
}

// Get returns the journaled state of one generation.
func (j *Journal) Get(ctx context.Context, id string) (*models.Generation, error) {
	var g models.Generation
	err := j.db.GetContext(ctx, &g, `SELECT * FROM generations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get generation: %w", err)
	}
	return &g, nil
}

// List returns up to limit generations, newest first. limit <= 0 means all.
func (j *Journal) List(ctx context.Context, limit int) ([]models.Generation, error) {
	if limit <= 0 {
		limit = -1
	}
	gens := []models.Generation{}
	err := j.db.SelectContext(ctx, &gens,
		`SELECT * FROM generations ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	return gens, nil
}
