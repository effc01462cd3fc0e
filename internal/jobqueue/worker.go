package jobqueue

import (
	"context"
	"time"

	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
	"inboxguard/pkg/logger"
)

// Handler runs one job's work. report should be called at batch boundaries
// so Worker can persist a progress snapshot without writing to storage on
// every single message.
type Handler func(ctx context.Context, job *domain.Job, report func(processed, total int)) (results []byte, err error)

// Worker drains pending jobs of one JobType, one user's database at a
// time, across every registered user plus the system/legacy database.
// Polling one job per user per tick is this single-process deployment's
// single-flight guarantee: Start() moves a job out of "pending" the
// instant a worker claims it, so a second tick never double-claims it.
type Worker struct {
	factory      *storage.Factory
	systemStore  *storage.SystemStore
	jobType      domain.JobType
	handler      Handler
	pollInterval time.Duration

	// progressMinInterval/progressMinCount: report at most every >= 10
	// messages or every 2 seconds, whichever comes first.
	progressMinCount    int
	progressMinInterval time.Duration
}

func NewWorker(factory *storage.Factory, systemStore *storage.SystemStore, jobType domain.JobType, handler Handler) *Worker {
	return &Worker{
		factory:             factory,
		systemStore:         systemStore,
		jobType:             jobType,
		handler:             handler,
		pollInterval:        2 * time.Second,
		progressMinCount:    10,
		progressMinInterval: 2 * time.Second,
	}
}

// Run blocks, polling until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *Worker) pollOnce(ctx context.Context) {
	for _, userID := range w.candidateUserIDs(ctx) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		store, err := w.factory.Get(ctx, userID)
		if err != nil {
			continue
		}
		jobs, err := store.Jobs().ListPending(ctx, w.jobType, 1)
		if err != nil || len(jobs) == 0 {
			continue
		}
		w.runOne(ctx, store, jobs[0])
	}
}

func (w *Worker) candidateUserIDs(ctx context.Context) []string {
	ids := []string{systemUserID}
	users, err := w.systemStore.ListUsers(ctx)
	if err != nil {
		return ids
	}
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func (w *Worker) runOne(ctx context.Context, store *storage.UserStore, job *domain.Job) {
	ctx = logger.ContextWithJobID(ctx, job.JobID)
	ctx = logger.ContextWithUserID(ctx, job.UserID)
	log := logger.WithContext(ctx)

	now := time.Now()
	if err := store.Jobs().Start(ctx, job.JobID, now); err != nil {
		return
	}
	log.Info("job started: %s", job.Type)

	lastReportedAt := now
	lastReportedCount := 0
	report := func(processed, total int) {
		if processed-lastReportedCount < w.progressMinCount && time.Since(lastReportedAt) < w.progressMinInterval {
			return
		}
		_ = store.Jobs().UpdateProgress(ctx, job.JobID, domain.JobProgress{Processed: processed, Total: total})
		lastReportedCount = processed
		lastReportedAt = time.Now()
	}

	results, err := w.handler(ctx, job, report)

	// A concurrent Cancel may have already moved the job to cancelled while
	// the handler ran; don't clobber that terminal state.
	current, getErr := store.Jobs().Get(ctx, job.JobID)
	if getErr == nil && current.Status == domain.JobCancelled {
		return
	}

	status := domain.JobCompleted
	errDetails := ""
	if err != nil {
		status = domain.JobFailed
		errDetails = err.Error()
		log.WithError(err).Error("job failed: %s", job.Type)
	} else {
		log.Info("job completed: %s", job.Type)
	}
	_ = store.Jobs().Finish(ctx, job.JobID, status, results, errDetails, time.Now())
}
