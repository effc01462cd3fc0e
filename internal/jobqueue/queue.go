// Package jobqueue implements a persistent job queue and its workers: a
// persistent queue backed by per-user storage.JobDAO handles, with
// visibility/ownership rules enforced at lookup time rather than by a
// central table, matching the storage layer's no-global-handle design.
package jobqueue

import (
	"context"
	"sort"
	"time"

	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
	"inboxguard/pkg/apperr"
	"inboxguard/pkg/snowflake"
)

// systemUserID is the synthetic user whose per-user database holds jobs
// with no owner (domain.Job.UserID == ""), per DESIGN.md's Open Question
// resolution #2 on legacy/system rows.
const systemUserID = "legacy"

// Queue enqueues and looks up jobs. It never polls; Worker does that.
type Queue struct {
	factory *storage.Factory
	ids     *snowflake.Generator
}

func NewQueue(factory *storage.Factory, ids *snowflake.Generator) *Queue {
	return &Queue{factory: factory, ids: ids}
}

// Enqueue assigns a job_id and persists job in pending status, into the
// owning user's database (or the system database, for jobs with no
// owner). It returns the assigned job_id.
func (q *Queue) Enqueue(ctx context.Context, job *domain.Job) (int64, error) {
	id, err := q.ids.Generate()
	if err != nil {
		return 0, err
	}
	job.JobID = id
	job.Status = domain.JobPending
	job.CreatedAt = time.Now()

	store, err := q.storeFor(ctx, job.UserID)
	if err != nil {
		return 0, err
	}
	if err := store.Jobs().Create(ctx, job); err != nil {
		return 0, err
	}
	return id, nil
}

// Get looks up a job by id, honoring the ownership rule: a job
// owned by a different user than requestingUserID is reported NotFound,
// never Forbidden, so its existence never leaks across users. An empty
// requestingUserID means "system caller" — only system jobs are visible.
func (q *Queue) Get(ctx context.Context, jobID int64, requestingUserID string) (*domain.Job, error) {
	if requestingUserID != "" {
		if store, err := q.factory.Get(ctx, requestingUserID); err == nil {
			if job, err := store.Jobs().Get(ctx, jobID); err == nil {
				return job, nil
			}
		}
	}

	sysStore, err := q.factory.Get(ctx, systemUserID)
	if err != nil {
		return nil, err
	}
	job, err := sysStore.Jobs().Get(ctx, jobID)
	if err != nil {
		return nil, apperr.NotFound("job")
	}
	if !job.VisibleTo(requestingUserID) {
		return nil, apperr.NotFound("job")
	}
	return job, nil
}

// Cancel transitions a job to cancelled if it is not terminal, honoring the
// same ownership rule as Get.
func (q *Queue) Cancel(ctx context.Context, jobID int64, requestingUserID string) error {
	job, err := q.Get(ctx, jobID, requestingUserID)
	if err != nil {
		return err
	}
	if !job.CanCancel() {
		return apperr.InvalidInput("job_id", "job is already terminal")
	}

	store, err := q.storeFor(ctx, job.UserID)
	if err != nil {
		return err
	}
	return store.Jobs().Cancel(ctx, jobID, time.Now())
}

// List returns every job visible to userID: their own plus system jobs,
// newest first.
func (q *Queue) List(ctx context.Context, userID string, limit int) ([]*domain.Job, error) {
	store, err := q.factory.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	own, err := store.Jobs().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	sysStore, err := q.factory.Get(ctx, systemUserID)
	if err != nil {
		return nil, err
	}
	sysJobs, err := sysStore.Jobs().ListByUser(ctx, "", limit)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(own))
	out := make([]*domain.Job, 0, len(own)+len(sysJobs))
	for _, j := range own {
		if !seen[j.JobID] {
			seen[j.JobID] = true
			out = append(out, j)
		}
	}
	for _, j := range sysJobs {
		if j.UserID == "" && !seen[j.JobID] {
			seen[j.JobID] = true
			out = append(out, j)
		}
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out, nil
}

func (q *Queue) storeFor(ctx context.Context, userID string) (*storage.UserStore, error) {
	if userID == "" {
		return q.factory.Get(ctx, systemUserID)
	}
	return q.factory.Get(ctx, userID)
}
