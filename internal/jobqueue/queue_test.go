package jobqueue

import (
	"context"
	"testing"

	"inboxguard/config"
	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
	"inboxguard/pkg/snowflake"
)

func newTestQueue(t *testing.T) (*Queue, *storage.Factory) {
	t.Helper()
	cfg := &config.Config{DataRoot: t.TempDir()}
	factory, err := storage.NewFactory(cfg)
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	t.Cleanup(func() { factory.Close() })

	gen, err := snowflake.NewGenerator(1)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return NewQueue(factory, gen), factory
}

func TestEnqueueAndGetOwnJob(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, &domain.Job{UserID: "alice", Type: domain.JobTypeCategorization})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := q.Get(ctx, id, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.JobPending {
		t.Errorf("Status = %v, want pending", got.Status)
	}
}

func TestGetHidesOtherUsersJobs(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, &domain.Job{UserID: "alice", Type: domain.JobTypeCategorization})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := q.Get(ctx, id, "bob"); err == nil {
		t.Fatalf("expected not-found for a different user's job")
	}
}

func TestSystemJobsVisibleToAnyUser(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, &domain.Job{Type: domain.JobTypeCleanup})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := q.Get(ctx, id, "anyone")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.JobID != id {
		t.Errorf("JobID = %d, want %d", got.JobID, id)
	}
}

func TestCancelPendingJob(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, &domain.Job{UserID: "alice", Type: domain.JobTypeCleanup})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Cancel(ctx, id, "alice"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	got, err := q.Get(ctx, id, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.JobCancelled {
		t.Errorf("Status = %v, want cancelled", got.Status)
	}
}

func TestListMergesOwnAndSystemJobs(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, &domain.Job{UserID: "alice", Type: domain.JobTypeCategorization}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, &domain.Job{Type: domain.JobTypeCleanup}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	jobs, err := q.List(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("List returned %d jobs, want 2", len(jobs))
	}
}
