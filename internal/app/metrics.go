package app

import (
	"context"
	"os"

	"inboxguard/internal/automation"
	"inboxguard/internal/storage"
)

// StoreMetricsProvider answers automation.MetricsProvider from signals this
// service can actually observe without a remote quota API: the size of a
// user's sqlite file on disk (storage pressure), the total stored message
// count (volume), and the fraction of messages already analyzed (a proxy
// for cache/analysis hit rate — there is no query-latency histogram
// anywhere in this service to measure directly).
type StoreMetricsProvider struct {
	factory *storage.Factory
}

func NewStoreMetricsProvider(factory *storage.Factory) *StoreMetricsProvider {
	return &StoreMetricsProvider{factory: factory}
}

func (p *StoreMetricsProvider) Snapshot(ctx context.Context, userID string) (automation.MetricsSnapshot, error) {
	store, err := p.factory.Get(ctx, userID)
	if err != nil {
		return automation.MetricsSnapshot{}, err
	}

	total, err := store.Messages().Count(ctx, storage.ListFilter{})
	if err != nil {
		return automation.MetricsSnapshot{}, err
	}
	analyzed, err := store.Messages().Count(ctx, storage.ListFilter{RequireAnalyzed: true})
	if err != nil {
		return automation.MetricsSnapshot{}, err
	}

	cacheHitRate := 1.0
	if total > 0 {
		cacheHitRate = float64(analyzed) / float64(total)
	}

	storagePercent := 0.0
	if fi, err := os.Stat(p.factory.DBPath(userID)); err == nil {
		const warnAtBytes = 512 * 1024 * 1024 // sqlite files beyond this are considered "full" for storage-pressure purposes
		storagePercent = float64(fi.Size()) / warnAtBytes
		if storagePercent > 1 {
			storagePercent = 1
		}
	}

	// The message index has no received-in-window column to filter on, so
	// daily volume is approximated by the total stored count rather than a
	// true trailing-24h count.
	return automation.MetricsSnapshot{
		StorageUsagePercent: storagePercent,
		AvgQueryMS:          0,
		CacheHitRate:        cacheHitRate,
		DailyEmailCount:     total,
	}, nil
}
