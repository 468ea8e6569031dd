// Package journal keeps a SQLite record of training runs and the losses of
// every step.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"
)

// currentSchemaVersion is bumped with every schema change that needs a
// migration.
const currentSchemaVersion = 2

// ErrUnknownRun is returned for a run id that was never started.
var ErrUnknownRun = errors.New("unknown run")

// Journal wraps the SQLite connection. SQLite serializes writers itself and
// WAL mode keeps readers from blocking them.
type Journal struct {
	conn *sql.DB
}

// Run is one invocation of the trainer.
type Run struct {
	ID        string
	StartedAt time.Time
	// Epoch and Batch are the resume position, or zero for a fresh start.
	Epoch  int
	Batch  int
	Config string
	Steps  int
}

// Step holds the losses of one optimizer step.
type Step struct {
	Epoch int
	Batch int

	GenMSE    float32
	GenKLD    float32
	GenWasser float32
	GenTotal  float32

	DiscReal  float32
	DiscPred  float32
	DiscGP    float32
	DiscTotal float32

	Duration time.Duration
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}

	j := &Journal{conn: conn}
	if err := j.init(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize journal: %w", err)
	}
	return j, nil
}

// Close checkpoints the WAL and closes the connection.
func (j *Journal) Close() error {
	_, _ = j.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	return j.conn.Close()
}

func (j *Journal) init() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		schema_version INTEGER NOT NULL DEFAULT %d
	);

	INSERT OR IGNORE INTO meta (id) VALUES (1);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		resume_epoch INTEGER NOT NULL DEFAULT 0,
		resume_batch INTEGER NOT NULL DEFAULT 0,
		config TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		epoch INTEGER NOT NULL,
		batch INTEGER NOT NULL,
		gen_mse REAL NOT NULL,
		gen_kld REAL NOT NULL,
		gen_wasser REAL NOT NULL,
		gen_total REAL NOT NULL,
		disc_real REAL NOT NULL,
		disc_pred REAL NOT NULL,
		disc_gp REAL NOT NULL,
		disc_total REAL NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_steps_run_id ON steps(run_id);
	`, currentSchemaVersion)

	if _, err := j.conn.Exec(schema); err != nil {
		return err
	}
	if err := j.migrate(); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// StartRun registers a new run and stores cfg as JSON.
func (j *Journal) StartRun(ctx context.Context, cfg any, epoch, batch int) (Run, error) {
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(cfg)
	if err != nil {
		return Run{}, fmt.Errorf("encode config: %w", err)
	}
	run := Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Epoch:     epoch,
		Batch:     batch,
		Config:    string(data),
	}
	_, err = j.conn.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, resume_epoch, resume_batch, config) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.Epoch, run.Batch, run.Config)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Record appends a step to a run.
func (j *Journal) Record(ctx context.Context, runID string, s Step) error {
	_, err := j.conn.ExecContext(ctx, `
		INSERT INTO steps (run_id, epoch, batch, gen_mse, gen_kld, gen_wasser, gen_total,
			disc_real, disc_pred, disc_gp, disc_total, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, s.Epoch, s.Batch, s.GenMSE, s.GenKLD, s.GenWasser, s.GenTotal,
		s.DiscReal, s.DiscPred, s.DiscGP, s.DiscTotal, s.Duration.Milliseconds())
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
		}
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// Runs lists all runs, newest first.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.conn.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.resume_epoch, r.resume_batch, r.config, COUNT(s.id)
		FROM runs r LEFT JOIN steps s ON s.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Epoch, &r.Batch, &r.Config, &r.Steps); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Steps returns the steps of a run in the order they were recorded.
func (j *Journal) Steps(ctx context.Context, runID string) ([]Step, error) {
	var exists bool
	if err := j.conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM runs WHERE id = ?)`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}

	rows, err := j.conn.QueryContext(ctx, `
		SELECT epoch, batch, gen_mse, gen_kld, gen_wasser, gen_total,
			disc_real, disc_pred, disc_gp, disc_total, duration_ms
		FROM steps WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var s Step
		var ms int64
		if err := rows.Scan(&s.Epoch, &s.Batch, &s.GenMSE, &s.GenKLD, &s.GenWasser, &s.GenTotal,
			&s.DiscReal, &s.DiscPred, &s.DiscGP, &s.DiscTotal, &ms); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		s.Duration = time.Duration(ms) * time.Millisecond
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
