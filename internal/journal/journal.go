// Package journal persists task outcomes to a SQL database.
//
// The journal is wired into a batch through the executor's outcome callback,
// so every attempt is recorded as soon as it is classified. SQLite is the
// default backend; PostgreSQL and MySQL are supported through the same schema.
// MySQL DSNs need no special options.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Yuplx-HU/task-executor/internal/executor"
	"github.com/Yuplx-HU/task-executor/internal/util"
)

// Supported driver names
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// DefaultDriver is used when no driver is given
const DefaultDriver = DriverSQLite

// Journal records outcomes in the outcomes table
type Journal struct {
	db     *sqlx.DB
	driver string
	logger *slog.Logger

	// seq orders the rows written through this Journal; millisecond
	// timestamps tie for outcomes of one concurrent round
	seq atomic.Int64
}

// record is the row shape of the outcomes table
type record struct {
	ID         string `db:"id"`
	BatchID    string `db:"batch_id"`
	TaskID     string `db:"task_id"`
	Kind       string `db:"kind"`
	Attempt    int    `db:"attempt"`
	Params     string `db:"params"`
	Payload    string `db:"payload"`
	Message    string `db:"message"`
	DurationMS int64  `db:"duration_ms"`
	RecordedAt int64  `db:"recorded_at"`
	Seq        int64  `db:"seq"`
}

// Batch summarises the outcomes recorded for one batch
type Batch struct {
	BatchID    string    `json:"batch_id" yaml:"batch_id"`
	Tasks      int       `json:"tasks" yaml:"tasks"`
	Attempts   int       `json:"attempts" yaml:"attempts"`
	Succeeded  int       `json:"succeeded" yaml:"succeeded"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// Failed is the number of tasks without a successful attempt
func (b Batch) Failed() int {
	return b.Tasks - b.Succeeded
}

type batchRow struct {
	BatchID    string `db:"batch_id"`
	Tasks      int    `db:"tasks"`
	Attempts   int    `db:"attempts"`
	Succeeded  int    `db:"succeeded"`
	StartedAt  int64  `db:"started_at"`
	FinishedAt int64  `db:"finished_at"`
}

// NormalizeDriver maps accepted aliases to a registered driver name
func NormalizeDriver(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", DriverSQLite:
		return DriverSQLite, nil
	case DriverPostgres, "postgresql", "pg":
		return DriverPostgres, nil
	case DriverMySQL:
		return DriverMySQL, nil
	default:
		return "", util.NewValidationError("journal_driver", driver, "must be one of sqlite3, postgres, mysql")
	}
}

// Open connects to the database and creates the schema if needed
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, util.NewValidationError("journal", dsn, "data source name is required")
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	j := &Journal{db: db, driver: driver, logger: logger}
	if err := j.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise journal schema: %w", err)
	}

	logger.Debug("opened journal", "driver", driver)
	return j, nil
}

func (j *Journal) initSchema(ctx context.Context) error {
	for _, stmt := range schema(j.driver) {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// schema returns one statement per element; MySQL rejects multi-statement Exec
// and has no CREATE INDEX IF NOT EXISTS, so its index is declared inline
func schema(driver string) []string {
	columns := `
		id VARCHAR(36) PRIMARY KEY,
		batch_id VARCHAR(36) NOT NULL,
		task_id VARCHAR(255) NOT NULL,
		kind VARCHAR(16) NOT NULL,
		attempt INTEGER NOT NULL,
		params TEXT NOT NULL,
		payload TEXT NOT NULL,
		message TEXT NOT NULL,
		duration_ms BIGINT NOT NULL,
		recorded_at BIGINT NOT NULL,
		seq BIGINT NOT NULL`

	if driver == DriverMySQL {
		return []string{
			`CREATE TABLE IF NOT EXISTS outcomes (` + columns + `,
		INDEX idx_outcomes_batch_id (batch_id)
	)`,
		}
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS outcomes (` + columns + `
	)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_batch_id ON outcomes(batch_id)`,
	}
}

// Record stores one outcome under batchID
func (j *Journal) Record(ctx context.Context, batchID uuid.UUID, o executor.Outcome) error {
	params, err := json.Marshal(o.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params of task %q: %w", o.TaskID, err)
	}

	payload, err := json.Marshal(o.Payload)
	if err != nil {
		// Keep a readable form of payloads JSON cannot represent
		payload, _ = json.Marshal(fmt.Sprintf("%v", o.Payload))
	}

	id := o.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := record{
		ID:         id.String(),
		BatchID:    batchID.String(),
		TaskID:     o.TaskID,
		Kind:       o.Kind.String(),
		Attempt:    o.Attempt,
		Params:     string(params),
		Payload:    string(payload),
		Message:    o.Message,
		DurationMS: o.Duration.Milliseconds(),
		RecordedAt: time.Now().UnixMilli(),
		Seq:        j.seq.Add(1),
	}

	query := `INSERT INTO outcomes
		(id, batch_id, task_id, kind, attempt, params, payload, message, duration_ms, recorded_at, seq)
		VALUES (:id, :batch_id, :task_id, :kind, :attempt, :params, :payload, :message, :duration_ms, :recorded_at, :seq)`

	if _, err := j.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to record outcome of task %q: %w", o.TaskID, err)
	}
	return nil
}

// OutcomeFunc returns an executor callback that records every outcome under its own batch id.
// Recording outlives cancellation of ctx so an interrupted batch is still journaled in full.
func (j *Journal) OutcomeFunc(ctx context.Context) executor.OutcomeFunc {
	ctx = context.WithoutCancel(ctx)
	return func(o executor.Outcome) error {
		return j.Record(ctx, o.BatchID, o)
	}
}

// List returns every recorded attempt of a batch in the order it was recorded
func (j *Journal) List(ctx context.Context, batchID uuid.UUID) ([]executor.Outcome, error) {
	query := j.db.Rebind(`SELECT id, batch_id, task_id, kind, attempt, params, payload, message, duration_ms, recorded_at, seq
		FROM outcomes WHERE batch_id = ? ORDER BY seq`)

	var rows []record
	if err := j.db.SelectContext(ctx, &rows, query, batchID.String()); err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}

	outcomes := make([]executor.Outcome, 0, len(rows))
	for _, row := range rows {
		o, err := row.outcome()
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// Batches summarises every recorded batch, most recent first
func (j *Journal) Batches(ctx context.Context) ([]Batch, error) {
	query := `SELECT batch_id,
			COUNT(DISTINCT task_id) AS tasks,
			COUNT(*) AS attempts,
			SUM(CASE WHEN kind = 'success' THEN 1 ELSE 0 END) AS succeeded,
			MIN(recorded_at) AS started_at,
			MAX(recorded_at) AS finished_at
		FROM outcomes
		GROUP BY batch_id
		ORDER BY started_at DESC`

	var rows []batchRow
	if err := j.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	batches := make([]Batch, len(rows))
	for i, row := range rows {
		batches[i] = Batch{
			BatchID:    row.BatchID,
			Tasks:      row.Tasks,
			Attempts:   row.Attempts,
			Succeeded:  row.Succeeded,
			StartedAt:  time.UnixMilli(row.StartedAt),
			FinishedAt: time.UnixMilli(row.FinishedAt),
		}
	}
	return batches, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

func (r record) outcome() (executor.Outcome, error) {
	kind, err := executor.ParseKind(r.Kind)
	if err != nil {
		return executor.Outcome{}, fmt.Errorf("outcome %s: %w", r.ID, err)
	}

	o := executor.Outcome{
		Kind:     kind,
		TaskID:   r.TaskID,
		Message:  r.Message,
		Attempt:  r.Attempt,
		Duration: time.Duration(r.DurationMS) * time.Millisecond,
	}

	if o.ID, err = uuid.Parse(r.ID); err != nil {
		return executor.Outcome{}, fmt.Errorf("outcome %s: %w", r.ID, err)
	}
	if o.BatchID, err = uuid.Parse(r.BatchID); err != nil {
		return executor.Outcome{}, fmt.Errorf("outcome %s: %w", r.ID, err)
	}

	if r.Params != "" {
		if err := json.Unmarshal([]byte(r.Params), &o.Params); err != nil {
			return executor.Outcome{}, fmt.Errorf("outcome %s: failed to decode params: %w", r.ID, err)
		}
	}
	if r.Payload != "" {
		if err := json.Unmarshal([]byte(r.Payload), &o.Payload); err != nil {
			return executor.Outcome{}, fmt.Errorf("outcome %s: failed to decode payload: %w", r.ID, err)
		}
	}

	return o, nil
}
