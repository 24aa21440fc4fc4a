package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Runs records pipeline executions in load_runs.
type Runs struct {
	db *sqlx.DB
}

// Start records a new running execution and returns its ID.
func (r *Runs) Start() (string, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(r.db.Rebind(`INSERT INTO load_runs (id, started_at, status) VALUES (?, ?, ?)`),
		id, time.Now().UnixNano(), RunRunning)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

// Finish closes run id. report is stored as JSON; a non-nil runErr marks the
// run failed.
func (r *Runs) Finish(id string, report any, runErr error) error {
	status := RunSuccess
	var errMsg *string
	if runErr != nil {
		status = RunFailed
		msg := runErr.Error()
		errMsg = &msg
	}

	var body *string
	if report != nil {
		b, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("encode run report: %w", err)
		}
		s := string(b)
		body = &s
	}

	res, err := r.db.Exec(r.db.Rebind(`UPDATE load_runs SET finished_at = ?, status = ?, report = ?, error = ? WHERE id = ?`),
		time.Now().UnixNano(), status, body, errMsg, id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: no such run", id)
	}
	return nil
}

// Latest returns the most recently started run, or nil.
func (r *Runs) Latest() (*Run, error) {
	var run Run
	err := r.db.Get(&run, `SELECT * FROM load_runs ORDER BY started_at DESC, id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return &run, nil
}

// List returns up to limit runs, newest first.
func (r *Runs) List(limit int) ([]Run, error) {
	var runs []Run
	if err := r.db.Select(&runs, r.db.Rebind(`SELECT * FROM load_runs ORDER BY started_at DESC, id DESC LIMIT ?`), limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
