// Package journal keeps a sqlite history of pipeline runs.
//
// The journal is write-only from the pipeline's point of view: earlier runs are
// listed for inspection but never reused to answer a new keyword.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
	"github.com/shpitdev/prospect-pipeline/internal/pipeline"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = eris.New("journal: run not found")

// Run is one journal row.
type Run struct {
	ID          string     `json:"id"`
	Keyword     string     `json:"keyword"`
	Status      string     `json:"status"`
	LeadCount   int        `json:"leadCount"`
	SourceCount int        `json:"sourceCount"`
	Malformed   bool       `json:"malformed"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`

	// Leads and Sources are only populated by Get.
	Leads   []lead.Lead   `json:"leads,omitempty"`
	Sources []lead.Source `json:"sources,omitempty"`
}

// Journal implements pipeline.Recorder on top of modernc.org/sqlite.
type Journal struct {
	db *sql.DB
}

var _ pipeline.Recorder = (*Journal)(nil)

// Open opens the database at dsn, configures WAL mode and applies the schema.
func Open(ctx context.Context, dsn string) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "journal: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "journal: exec %s", pragma)
		}
	}
	j := &Journal{db: db}
	if err := j.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	keyword      TEXT NOT NULL,
	status       TEXT NOT NULL,
	lead_count   INTEGER NOT NULL DEFAULT 0,
	source_count INTEGER NOT NULL DEFAULT 0,
	malformed    INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	result       TEXT,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (j *Journal) migrate(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "journal: migrate")
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) RunStarted(ctx context.Context, snap pipeline.Snapshot) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, keyword, status, started_at) VALUES (?, ?, ?, ?)`,
		snap.RunID, snap.Keyword, snap.Status.String(), snap.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "journal: insert run %s", snap.RunID)
}

type result struct {
	Leads   []lead.Lead   `json:"leads"`
	Sources []lead.Source `json:"sources"`
}

func (j *Journal) RunFinished(ctx context.Context, snap pipeline.Snapshot) error {
	resultJSON, err := json.Marshal(result{Leads: snap.Leads, Sources: snap.Sources})
	if err != nil {
		return eris.Wrap(err, "journal: marshal result")
	}

	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, lead_count = ?, source_count = ?, malformed = ?, error = ?, result = ?, finished_at = ?
		 WHERE id = ?`,
		snap.Status.String(), len(snap.Leads), len(snap.Sources), snap.Malformed, snap.Error,
		string(resultJSON), snap.FinishedAt.UTC(), snap.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "journal: update run %s", snap.RunID)
	}
	return checkRowsAffected(res, snap.RunID)
}

// List returns the most recent runs first. limit <= 0 means 20.
func (j *Journal) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, keyword, status, lead_count, source_count, malformed, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "journal: list runs")
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "journal: list runs iterate")
}

// Get returns a run including its stored leads and sources.
func (j *Journal) Get(ctx context.Context, id string) (*Run, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT id, keyword, status, lead_count, source_count, malformed, error, started_at, finished_at, result
		 FROM runs WHERE id = ?`,
		id,
	)

	var r Run
	var finished sql.NullTime
	var resultJSON sql.NullString
	err := row.Scan(&r.ID, &r.Keyword, &r.Status, &r.LeadCount, &r.SourceCount, &r.Malformed, &r.Error,
		&r.StartedAt, &finished, &resultJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "journal: get run %s", id)
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	if resultJSON.Valid {
		var res result
		if err := json.Unmarshal([]byte(resultJSON.String), &res); err != nil {
			return nil, eris.Wrap(err, "journal: unmarshal result")
		}
		r.Leads = res.Leads
		r.Sources = res.Sources
	}
	return &r, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var finished sql.NullTime
	err := row.Scan(&r.ID, &r.Keyword, &r.Status, &r.LeadCount, &r.SourceCount, &r.Malformed, &r.Error,
		&r.StartedAt, &finished)
	if err != nil {
		return nil, eris.Wrap(err, "journal: scan run")
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", id)
	}
	return nil
}
