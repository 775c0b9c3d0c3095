package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/fyp-grading-api/internal/models"
)

const (
	reportJobColumns = `id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message`

	insertReportJobQuery = `INSERT INTO report_jobs (` + reportJobColumns + `)
VALUES (:id, :type, :params, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`
)

// ReportRepository stores report_jobs rows. Params live in a JSONB column.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create fills in ID, status and creation time when unset, then inserts job.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, insertReportJobQuery, job); err != nil {
		return fmt.Errorf("insert report job %s: %w", job.ID, err)
	}
	return nil
}

// GetByID returns sql.ErrNoRows unwrapped when the job does not exist.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	var job models.ReportJob
	err := r.db.GetContext(ctx, &job, `SELECT `+reportJobColumns+` FROM report_jobs WHERE id = $1`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("get report job %s: %w", id, err)
	}
	return &job, nil
}

// ListByCreator returns a user's newest jobs first. limit is clamped to 1..100
// with 20 as the default.
func (r *ReportRepository) ListByCreator(ctx context.Context, userID string, limit int) ([]models.ReportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return r.selectJobs(ctx, "list report jobs by creator",
		`WHERE created_by = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
}

// ListUnsettled returns QUEUED and PROCESSING jobs, oldest first. After a
// restart both kinds need to go back on the queue.
func (r *ReportRepository) ListUnsettled(ctx context.Context, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	statuses := pq.Array([]string{string(models.ReportStatusQueued), string(models.ReportStatusProcessing)})
	return r.selectJobs(ctx, "list unsettled report jobs",
		`WHERE status = ANY($1) ORDER BY created_at ASC LIMIT $2`, statuses, limit)
}

// ListFinishedBefore returns FINISHED jobs whose files are due for cleanup.
func (r *ReportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.selectJobs(ctx, "list finished report jobs",
		`WHERE status = $1 AND finished_at IS NOT NULL AND finished_at < $2 ORDER BY finished_at ASC LIMIT $3`,
		models.ReportStatusFinished, cutoff, limit)
}

func (r *ReportRepository) selectJobs(ctx context.Context, op, clause string, args ...interface{}) ([]models.ReportJob, error) {
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs, `SELECT `+reportJobColumns+` FROM report_jobs `+clause, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return jobs, nil
}

// UpdateReportJobParams lists the columns a worker may change; nil fields are
// left untouched.
type UpdateReportJobParams struct {
	Status       *models.ReportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Progress checkpoints written by the job transitions below.
const (
	progressStarted = 10
	progressDone    = 100
)

// JobProcessing marks a job as picked up by a worker.
func JobProcessing() UpdateReportJobParams {
	status, progress := models.ReportStatusProcessing, progressStarted
	return UpdateReportJobParams{Status: &status, Progress: &progress}
}

// JobRequeued returns a job to the queue with its progress reset. A non-empty
// reason is kept as the last error.
func JobRequeued(reason string) UpdateReportJobParams {
	status, progress := models.ReportStatusQueued, 0
	p := UpdateReportJobParams{Status: &status, Progress: &progress}
	if reason != "" {
		p.ErrorMessage = &reason
	}
	return p
}

// JobFailed settles a job as FAILED.
func JobFailed(reason string, at time.Time) UpdateReportJobParams {
	status, progress := models.ReportStatusFailed, progressDone
	at = at.UTC()
	return UpdateReportJobParams{Status: &status, Progress: &progress, ErrorMessage: &reason, FinishedAt: &at}
}

// JobFinished settles a job as FINISHED and clears any earlier error.
func JobFinished(resultURL string, at time.Time) UpdateReportJobParams {
	status, progress, cleared := models.ReportStatusFinished, progressDone, ""
	at = at.UTC()
	return UpdateReportJobParams{Status: &status, Progress: &progress, ResultURL: &resultURL, ErrorMessage: &cleared, FinishedAt: &at}
}

func (p UpdateReportJobParams) assignments() ([]string, []interface{}) {
	var (
		cols []string
		args []interface{}
	)
	set := func(col string, v interface{}) {
		args = append(args, v)
		cols = append(cols, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Status != nil {
		set("status", *p.Status)
	}
	if p.Progress != nil {
		set("progress", *p.Progress)
	}
	if p.ResultURL != nil {
		set("result_url", *p.ResultURL)
	}
	if p.ErrorMessage != nil {
		set("error_message", *p.ErrorMessage)
	}
	if p.FinishedAt != nil {
		set("finished_at", *p.FinishedAt)
	}
	return cols, args
}

// Update applies params to the job. It is a no-op when params is empty and
// returns sql.ErrNoRows when the job does not exist.
func (r *ReportRepository) Update(ctx context.Context, id string, params UpdateReportJobParams) error {
	cols, args := params.assignments()
	if len(cols) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE report_jobs SET %s WHERE id = $%d", strings.Join(cols, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update report job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
