package automation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"inboxguard/config"
	"inboxguard/internal/domain"
	"inboxguard/internal/jobqueue"
	"inboxguard/internal/storage"
	"inboxguard/pkg/ratelimit"
	"inboxguard/pkg/snowflake"
)

func newTestEngine(t *testing.T, cfg *config.Config) (*Engine, *storage.Factory, *jobqueue.Queue) {
	t.Helper()
	if cfg.DataRoot == "" {
		cfg.DataRoot = t.TempDir()
	}
	factory, err := storage.NewFactory(cfg)
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	t.Cleanup(func() { factory.Close() })

	gen, err := snowflake.NewGenerator(1)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	queue := jobqueue.NewQueue(factory, gen)
	limiter := ratelimit.NewAPIProtector(nil, ratelimit.DefaultConfig())

	return NewEngine(factory, queue, cfg, nil, limiter), factory, queue
}

func registerUser(t *testing.T, factory *storage.Factory, id string) {
	t.Helper()
	now := time.Now()
	if err := factory.System().CreateUser(context.Background(), &domain.User{
		ID: id, Email: id + "@example.com", Role: domain.RoleUser, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
}

func TestContinuousTickEnqueuesPerUser(t *testing.T) {
	cfg := &config.Config{
		AutomationEnabled:     true,
		TargetEmailsPerMinute: 20,
		PauseDuringPeakHours:  false,
	}
	e, factory, queue := newTestEngine(t, cfg)
	registerUser(t, factory, "alice")

	e.continuousTick(context.Background())

	jobs, err := queue.List(context.Background(), "alice", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}

	var req CleanupRequest
	if err := json.Unmarshal(jobs[0].RequestParams, &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if req.Trigger != TriggerContinuous {
		t.Errorf("Trigger = %q, want %q", req.Trigger, TriggerContinuous)
	}
}

func TestContinuousTickSkipsDuringPeakHours(t *testing.T) {
	cfg := &config.Config{
		AutomationEnabled:    true,
		PauseDuringPeakHours: true,
		PeakHoursStart:       0,
		PeakHoursEnd:         24,
	}
	e, factory, queue := newTestEngine(t, cfg)
	registerUser(t, factory, "alice")

	e.continuousTick(context.Background())

	jobs, err := queue.List(context.Background(), "alice", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("got %d jobs, want 0 (inside peak hours)", len(jobs))
	}
}

func TestSchedulerTickFiresDuePolicyOnce(t *testing.T) {
	cfg := &config.Config{AutomationEnabled: true}
	e, factory, queue := newTestEngine(t, cfg)
	registerUser(t, factory, "alice")

	store, err := factory.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	now := time.Now()
	policy := &domain.CleanupPolicy{
		ID: "p1", Name: "daily", Enabled: true, Priority: 10,
		Action: domain.ActionArchive, Method: domain.MethodProvider,
		Schedule: domain.Schedule{Frequency: domain.ScheduleDaily, Time: now.Add(-time.Minute).Format("15:04")},
	}
	if err := store.Policies().Create(context.Background(), policy); err != nil {
		t.Fatalf("Create policy: %v", err)
	}

	e.schedulerTick(context.Background())
	e.schedulerTick(context.Background()) // second tick must not re-fire

	jobs, err := queue.List(context.Background(), "alice", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want exactly 1 (schedule fires at most once)", len(jobs))
	}
}

func TestEventTickFiresEmergencyOnCriticalStorage(t *testing.T) {
	cfg := &config.Config{
		AutomationEnabled:        true,
		StorageWarningThreshold:  0.80,
		StorageCriticalThreshold: 0.95,
		EmergencyPolicyIDs:       []string{"emergency-1"},
	}
	e, factory, queue := newTestEngine(t, cfg)
	registerUser(t, factory, "alice")
	e.metrics = fakeMetrics{usage: 0.97}

	e.eventTick(context.Background())

	jobs, err := queue.List(context.Background(), "alice", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	var req CleanupRequest
	if err := json.Unmarshal(jobs[0].RequestParams, &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if req.Priority != PriorityEmergency || req.PolicyID != "emergency-1" {
		t.Errorf("unexpected request: %+v", req)
	}
}

type fakeMetrics struct {
	usage float64
}

func (f fakeMetrics) Snapshot(ctx context.Context, userID string) (MetricsSnapshot, error) {
	return MetricsSnapshot{StorageUsagePercent: f.usage}, nil
}
