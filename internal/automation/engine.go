// Package automation runs three concurrent responsibilities — a continuous
// cleanup loop throttled by a
// token bucket, a schedule evaluator with restart-safe last-fired
// persistence, and event triggers reacting to storage/performance/volume
// thresholds — all of which materialize work as a CleanupJob submitted to
// internal/jobqueue.
package automation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"inboxguard/config"
	"inboxguard/internal/domain"
	"inboxguard/internal/jobqueue"
	"inboxguard/internal/storage"
	"inboxguard/pkg/logger"
	"inboxguard/pkg/ratelimit"
)

const (
	PriorityNormal    = "normal"
	PriorityEmergency = "emergency"

	TriggerContinuous  = "continuous"
	TriggerScheduled   = "scheduled"
	TriggerStorage     = "storage"
	TriggerPerformance = "performance"
	TriggerVolume      = "volume"
)

// CleanupRequest is the JSON payload a CleanupJob's RequestParams carries;
// the cleanup worker handler (internal/jobqueue's JobTypeCleanup Handler)
// decodes it to decide which policy (or "all enabled") to run, at what
// priority, and why it fired.
type CleanupRequest struct {
	PolicyID  string `json:"policy_id,omitempty"`
	DryRun    bool   `json:"dry_run"`
	MaxEmails int    `json:"max_emails,omitempty"`
	Priority  string `json:"priority"`
	Trigger   string `json:"trigger"`
}

// MetricsSnapshot is one user's system-health readings, checked against the
// configured event-trigger thresholds on every eventTick call.
type MetricsSnapshot struct {
	StorageUsagePercent float64
	AvgQueryMS          float64
	CacheHitRate        float64
	DailyEmailCount     int
}

// MetricsProvider supplies a MetricsSnapshot per user. The engine has no
// opinion on where these numbers come from (provider storage quota API,
// local sqlite file size, a query-latency histogram, a daily counter row);
// that's the caller's to wire at app-construction time.
type MetricsProvider interface {
	Snapshot(ctx context.Context, userID string) (MetricsSnapshot, error)
}

// Engine drives AutomationEngine. Construct one per process and call Run.
type Engine struct {
	factory     *storage.Factory
	systemStore *storage.SystemStore
	queue       *jobqueue.Queue
	cfg         *config.Config
	metrics     MetricsProvider
	limiter     *ratelimit.APIProtector

	continuousInterval time.Duration
	schedulerInterval  time.Duration
	eventInterval      time.Duration

	now func() time.Time
}

func NewEngine(factory *storage.Factory, queue *jobqueue.Queue, cfg *config.Config, metrics MetricsProvider, limiter *ratelimit.APIProtector) *Engine {
	return &Engine{
		factory:            factory,
		systemStore:        factory.System(),
		queue:              queue,
		cfg:                cfg,
		metrics:            metrics,
		limiter:            limiter,
		continuousInterval: time.Minute,
		schedulerInterval:  30 * time.Second,
		eventInterval:      time.Minute,
		now:                time.Now,
	}
}

// Run blocks, driving all three responsibilities on their own tickers until
// ctx is cancelled. A no-op if automation is disabled in config.
func (e *Engine) Run(ctx context.Context) {
	if !e.cfg.AutomationEnabled {
		return
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); e.loop(ctx, e.continuousInterval, e.continuousTick) }()
	go func() { defer wg.Done(); e.loop(ctx, e.schedulerInterval, e.schedulerTick) }()
	go func() { defer wg.Done(); e.loop(ctx, e.eventInterval, e.eventTick) }()
	wg.Wait()
}

func (e *Engine) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// continuousTick enqueues at most one continuous-cleanup job per registered
// user, gated by isPeakHour and the shared rate limiter. The limiter's
// semaphore (sized to MaxConcurrentOperations) bounds how many enqueue
// attempts proceed together in one tick; actual in-flight execution
// concurrency is bounded separately by single-flight-per-(user,job_type) in
// internal/jobqueue.
func (e *Engine) continuousTick(ctx context.Context) {
	if e.cfg.PauseDuringPeakHours && isPeakHour(e.now(), e.cfg.PeakHoursStart, e.cfg.PeakHoursEnd) {
		return
	}

	for _, userID := range e.registeredUserIDs(ctx) {
		e.tryEnqueueCleanup(ctx, userID, TriggerContinuous+":"+userID, CleanupRequest{
			DryRun:    false,
			MaxEmails: e.cfg.TargetEmailsPerMinute,
			Priority:  PriorityNormal,
			Trigger:   TriggerContinuous,
		})
	}
}

// schedulerTick fires any policy whose Schedule is due, across every
// registered user, and persists LastFiredAt so the same instant is never
// re-fired after a restart or clock skew.
func (e *Engine) schedulerTick(ctx context.Context) {
	now := e.now()
	for _, userID := range e.registeredUserIDs(ctx) {
		store, err := e.factory.Get(ctx, userID)
		if err != nil {
			continue
		}
		policies, err := store.Policies().ListEnabled(ctx)
		if err != nil {
			continue
		}

		for _, p := range policies {
			if !isDue(p.Schedule, now) {
				continue
			}
			e.tryEnqueueCleanup(ctx, userID, TriggerScheduled+":"+userID+":"+p.ID, CleanupRequest{
				PolicyID: p.ID,
				DryRun:   false,
				Priority: PriorityNormal,
				Trigger:  TriggerScheduled,
			})
			if err := store.Policies().TouchSchedule(ctx, p.ID, now); err != nil {
				logger.Warn("touch schedule for policy %s: %v", p.ID, err)
			}
		}
	}
}

// eventTick checks each registered user's MetricsSnapshot against the
// configured storage/performance/volume thresholds and materializes a job
// for whichever trip.
func (e *Engine) eventTick(ctx context.Context) {
	if e.metrics == nil {
		return
	}

	for _, userID := range e.registeredUserIDs(ctx) {
		snap, err := e.metrics.Snapshot(ctx, userID)
		if err != nil {
			continue
		}

		switch {
		case snap.StorageUsagePercent >= e.cfg.StorageCriticalThreshold:
			// Emergency storage pressure enqueues directly: a user already
			// over the critical threshold must not have its cleanup job
			// debounced away by an earlier, lower-priority storage trigger.
			for _, policyID := range e.cfg.EmergencyPolicyIDs {
				e.enqueueCleanup(ctx, userID, CleanupRequest{
					PolicyID: policyID,
					DryRun:   false,
					Priority: PriorityEmergency,
					Trigger:  TriggerStorage,
				})
			}
		case snap.StorageUsagePercent >= e.cfg.StorageWarningThreshold:
			e.tryEnqueueCleanup(ctx, userID, TriggerStorage+":"+userID, CleanupRequest{
				DryRun:   false,
				Priority: PriorityNormal,
				Trigger:  TriggerStorage,
			})
		}

		if snap.AvgQueryMS > e.cfg.PerformanceQueryMsThreshold || snap.CacheHitRate < e.cfg.PerformanceCacheHitThreshold {
			e.tryEnqueueCleanup(ctx, userID, TriggerPerformance+":"+userID, CleanupRequest{
				DryRun:   false,
				Priority: PriorityNormal,
				Trigger:  TriggerPerformance,
			})
		}

		if snap.DailyEmailCount > e.cfg.VolumeDailyEmailThreshold {
			for _, policyID := range e.cfg.VolumeImmediatePolicyIDs {
				e.tryEnqueueCleanup(ctx, userID, TriggerVolume+":"+userID+":"+policyID, CleanupRequest{
					PolicyID: policyID,
					DryRun:   false,
					Priority: PriorityNormal,
					Trigger:  TriggerVolume,
				})
			}
		}
	}
}

// tryEnqueueCleanup acquires the shared limiter for key before enqueueing,
// so repeated triggers for the same (user, trigger) pair within one
// debounce window or burst don't each materialize their own job. Emergency
// triggers bypass this and call enqueueCleanup directly.
func (e *Engine) tryEnqueueCleanup(ctx context.Context, userID, key string, req CleanupRequest) {
	result, release := e.limiter.Acquire(ctx, "automation:"+key)
	if release != nil {
		release()
	}
	if !result.Allowed {
		return
	}
	e.enqueueCleanup(ctx, userID, req)
}

func (e *Engine) enqueueCleanup(ctx context.Context, userID string, req CleanupRequest) {
	params, err := json.Marshal(req)
	if err != nil {
		logger.Warn("marshal cleanup request for user %s: %v", userID, err)
		return
	}
	if _, err := e.queue.Enqueue(ctx, &domain.Job{
		UserID:        userID,
		Type:          domain.JobTypeCleanup,
		RequestParams: params,
	}); err != nil {
		logger.Warn("enqueue %s cleanup job for user %s: %v", req.Trigger, userID, err)
	}
}

func (e *Engine) registeredUserIDs(ctx context.Context) []string {
	users, err := e.systemStore.ListUsers(ctx)
	if err != nil {
		return nil
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

// isPeakHour reports whether now's local hour falls in [start, end).
// start==end is treated as "never peak" (a misconfiguration, not an
// all-day pause).
func isPeakHour(now time.Time, start, end int) bool {
	if start == end {
		return false
	}
	h := now.Hour()
	if start < end {
		return h >= start && h < end
	}
	// Wraps past midnight, e.g. 22-6.
	return h >= start || h < end
}
