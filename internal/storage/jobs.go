package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"inboxguard/internal/domain"
	"inboxguard/pkg/apperr"
)

// JobDAO persists domain.Job rows for one user's database. System jobs
// (UserID == "") are stored in the legacy/system user's database so the
// worker pool has one place to scan for pending work across users; see
// internal/jobqueue for how callers fan a system job's UserID out.
type JobDAO struct {
	db     *sqlx.DB
	userID string
}

type jobRow struct {
	JobID             int64      `db:"job_id"`
	UserID            string     `db:"user_id"`
	JobType           string     `db:"job_type"`
	Status            string     `db:"status"`
	RequestParams     []byte     `db:"request_params"`
	ProgressProcessed int        `db:"progress_processed"`
	ProgressTotal     int        `db:"progress_total"`
	Results           []byte     `db:"results"`
	ErrorDetails      string     `db:"error_details"`
	CreatedAt         time.Time  `db:"created_at"`
	StartedAt         *time.Time `db:"started_at"`
	CompletedAt       *time.Time `db:"completed_at"`
}

func jobToRow(j *domain.Job) jobRow {
	return jobRow{
		JobID:             j.JobID,
		UserID:            j.UserID,
		JobType:           string(j.Type),
		Status:            string(j.Status),
		RequestParams:     j.RequestParams,
		ProgressProcessed: j.Progress.Processed,
		ProgressTotal:     j.Progress.Total,
		Results:           j.Results,
		ErrorDetails:      j.ErrorDetails,
		CreatedAt:         j.CreatedAt,
		StartedAt:         j.StartedAt,
		CompletedAt:       j.CompletedAt,
	}
}

func jobFromRow(r *jobRow) *domain.Job {
	j := &domain.Job{
		JobID:         r.JobID,
		UserID:        r.UserID,
		Type:          domain.JobType(r.JobType),
		Status:        domain.JobStatus(r.Status),
		RequestParams: r.RequestParams,
		Results:       r.Results,
		ErrorDetails:  r.ErrorDetails,
		CreatedAt:     r.CreatedAt,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
	}
	j.Progress = domain.JobProgress{Processed: r.ProgressProcessed, Total: r.ProgressTotal}
	if r.ProgressTotal > 0 {
		j.Progress.Percent = (r.ProgressProcessed * 100) / r.ProgressTotal
	}
	return j
}

const jobColumns = `job_id, user_id, job_type, status, request_params, progress_processed, progress_total,
	results, error_details, created_at, started_at, completed_at`

// Create inserts a new job. j.JobID must already be set (the job queue
// assigns it from the snowflake generator before persisting).
func (d *JobDAO) Create(ctx context.Context, j *domain.Job) error {
	r := jobToRow(j)
	_, err := d.db.NamedExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (:job_id, :user_id, :job_type, :status, :request_params, :progress_processed, :progress_total,
			:results, :error_details, :created_at, :started_at, :completed_at)`, r)
	return mapErr("create job", err)
}

func (d *JobDAO) Get(ctx context.Context, jobID int64) (*domain.Job, error) {
	var r jobRow
	err := d.db.GetContext(ctx, &r, `SELECT `+jobColumns+` FROM jobs WHERE job_id=?`, jobID)
	if err != nil {
		return nil, mapErr("job", err)
	}
	return jobFromRow(&r), nil
}

// UpdateProgress writes a batch-boundary progress report (every >= 10
// messages or every 2 seconds, whichever comes first).
func (d *JobDAO) UpdateProgress(ctx context.Context, jobID int64, progress domain.JobProgress) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE jobs SET progress_processed=?, progress_total=? WHERE job_id=?`,
		progress.Processed, progress.Total, jobID)
	return mapErr("update job progress", err)
}

// Start marks a job in_progress and stamps started_at.
func (d *JobDAO) Start(ctx context.Context, jobID int64, at time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE jobs SET status=?, started_at=? WHERE job_id=?`, string(domain.JobInProgress), at, jobID)
	return mapErr("start job", err)
}

// Finish stamps a terminal status, results payload, and completed_at in one
// update.
func (d *JobDAO) Finish(ctx context.Context, jobID int64, status domain.JobStatus, results []byte, errDetails string, at time.Time) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE jobs SET status=?, results=?, error_details=?, completed_at=? WHERE job_id=?`,
		string(status), results, errDetails, at, jobID)
	return mapErr("finish job", err)
}

// Cancel moves a job to cancelled if it is not already terminal. The
// caller checks Job.CanCancel() first; this is a best-effort guard against
// a race with a worker finishing the job first.
func (d *JobDAO) Cancel(ctx context.Context, jobID int64, at time.Time) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE jobs SET status=?, completed_at=? WHERE job_id=? AND status IN (?, ?)`,
		string(domain.JobCancelled), at, jobID, string(domain.JobPending), string(domain.JobInProgress))
	if err != nil {
		return mapErr("cancel job", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("job")
	}
	return nil
}

// ListPending returns jobs in pending status of jobType, oldest first, used
// by a worker loop polling for the next unit of work.
func (d *JobDAO) ListPending(ctx context.Context, jobType domain.JobType, limit int) ([]*domain.Job, error) {
	var rows []jobRow
	err := d.db.SelectContext(ctx, &rows, `
		SELECT `+jobColumns+` FROM jobs WHERE job_type=? AND status=? ORDER BY created_at ASC LIMIT ?`,
		string(jobType), string(domain.JobPending), limit)
	if err != nil {
		return nil, mapErr("list pending jobs", err)
	}
	out := make([]*domain.Job, len(rows))
	for i := range rows {
		out[i] = jobFromRow(&rows[i])
	}
	return out, nil
}

// ListByUser returns every job visible to userID: its own jobs plus system
// jobs, newest first.
func (d *JobDAO) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Job, error) {
	var rows []jobRow
	err := d.db.SelectContext(ctx, &rows, `
		SELECT `+jobColumns+` FROM jobs WHERE user_id=? OR user_id='' ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, mapErr("list jobs", err)
	}
	out := make([]*domain.Job, len(rows))
	for i := range rows {
		out[i] = jobFromRow(&rows[i])
	}
	return out, nil
}
