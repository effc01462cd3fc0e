package domain

import "time"

// JobType names the kind of work a Job performs.
type JobType string

const (
	JobTypeCategorization JobType = "categorization"
	JobTypeCleanup        JobType = "cleanup"
)

// JobStatus is a Job's lifecycle state. Transitions are monotonic except
// cancellation, which may move pending|in_progress -> cancelled. Completed,
// failed, and cancelled are terminal.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether status can no longer transition.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// JobProgress is a structured progress report a worker writes back at
// batch boundaries (every >= 10 messages or every 2 seconds, whichever
// comes first).
type JobProgress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

// Job is one unit of asynchronous work, persisted by the job queue.
// UserID is empty for system jobs, which are visible to any authenticated
// user; jobs owned by a user are invisible (NotFound, never Forbidden) to
// any other user.
type Job struct {
	JobID  int64   `json:"job_id" db:"job_id"`
	UserID string  `json:"user_id,omitempty" db:"user_id"`
	Type   JobType `json:"job_type" db:"job_type"`
	Status JobStatus `json:"status" db:"status"`

	RequestParams []byte `json:"request_params,omitempty" db:"request_params"` // opaque JSON payload
	Progress      JobProgress `json:"progress" db:"-"`
	Results       []byte `json:"results,omitempty" db:"results"`
	ErrorDetails  string `json:"error_details,omitempty" db:"error_details"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// VisibleTo reports whether requestingUserID may see this job: system jobs
// (no owner) are visible to anyone; owned jobs only to their owner.
func (j *Job) VisibleTo(requestingUserID string) bool {
	if j.UserID == "" {
		return true
	}
	return j.UserID == requestingUserID
}

// CanCancel reports whether the job is still in a cancellable state.
func (j *Job) CanCancel() bool {
	return !j.Status.IsTerminal()
}
