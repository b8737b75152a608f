package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"remnantsync/internal/model"
)

// RunRepository keeps the history of sync runs in sync_runs.
type RunRepository struct {
	DB *sql.DB
}

func (r *RunRepository) SaveRun(ctx context.Context, rep model.Report) error {
	summary, err := json.Marshal(rep.Summary)
	if err != nil {
		return err
	}
	issues, err := json.Marshal(rep.Issues)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO sync_runs
		(id, started_at, finished_at, completed, reconciled, fatal_error, total_errors, issue_count, summary, issues)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			completed = EXCLUDED.completed,
			reconciled = EXCLUDED.reconciled,
			fatal_error = EXCLUDED.fatal_error,
			total_errors = EXCLUDED.total_errors,
			issue_count = EXCLUDED.issue_count,
			summary = EXCLUDED.summary,
			issues = EXCLUDED.issues
	`, rep.RunID, rep.RunStartedAt, rep.FinishedAt, rep.CrawlCompletedSuccessfully, rep.Reconciled,
		rep.FatalError, rep.TotalErrors, rep.IssueCount, string(summary), string(issues))
	return err
}

// Latest returns the most recent run, or nil when none was recorded.
func (r *RunRepository) Latest(ctx context.Context) (*model.Report, error) {
	var (
		rep     model.Report
		summary []byte
		issues  []byte
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, completed, reconciled, fatal_error, total_errors, issue_count, summary, issues
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT 1
	`).Scan(&rep.RunID, &rep.RunStartedAt, &rep.FinishedAt, &rep.CrawlCompletedSuccessfully, &rep.Reconciled,
		&rep.FatalError, &rep.TotalErrors, &rep.IssueCount, &summary, &issues)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(summary, &rep.Summary); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(issues, &rep.Issues); err != nil {
		return nil, err
	}
	return &rep, nil
}
