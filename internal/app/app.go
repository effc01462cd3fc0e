// Package app constructs the one explicit App context every long-lived
// component is built from and threaded through, in place of the package-
// level singletons a less disciplined port would reach for.
package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"inboxguard/config"
	"inboxguard/internal/analyzer"
	"inboxguard/internal/automation"
	"inboxguard/internal/categorize"
	"inboxguard/internal/cleanup"
	"inboxguard/internal/cleanup/executor"
	"inboxguard/internal/domain"
	"inboxguard/internal/export"
	"inboxguard/internal/jobqueue"
	"inboxguard/internal/mailprovider"
	"inboxguard/internal/storage"
	"inboxguard/internal/userplane"
	"inboxguard/pkg/crypto"
	"inboxguard/pkg/ratelimit"
	"inboxguard/pkg/snowflake"
)

// App holds every component the MCP tool handlers and background workers
// need, each constructed once at startup and passed by reference.
type App struct {
	Config  *config.Config
	Factory *storage.Factory

	Redis *redis.Client

	Registry *userplane.Registry
	Sessions *userplane.SessionManager
	Access   *userplane.AccessValidator
	Files    *userplane.FileManager
	OAuth    *userplane.OAuthManager

	Provider mailprovider.Provider

	Categorizer *categorize.Engine

	Queue      *jobqueue.Queue
	Automation *automation.Engine

	SafetyMetrics *domain.SafetyMetrics
	Metrics       *StoreMetricsProvider
	Limiter       *ratelimit.APIProtector

	Exporter *export.Writer
}

func nextFileID() string { return uuid.NewString() }

// New builds every component from cfg. redisClient may be nil — every
// component that takes one degrades gracefully, matching pkg/ratelimit's
// own nil-redis behavior.
func New(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (*App, error) {
	factory, err := storage.NewFactory(cfg)
	if err != nil {
		return nil, err
	}

	encKey := cfg.TokenEncKey
	if encKey == "" {
		encKey = cfg.JWTSecret
	}
	encryptor, err := crypto.NewEncryptor([]byte(encKey))
	if err != nil {
		factory.Close()
		return nil, err
	}

	oauthCfg := mailprovider.GmailOAuthConfig(cfg, cfg.GoogleRedirectURL)
	provider := mailprovider.NewGmailProvider(cfg, oauthCfg)

	gen, err := snowflake.NewGenerator(cfg.WorkerID)
	if err != nil {
		factory.Close()
		return nil, err
	}

	importance := analyzer.NewImportance(analyzer.DefaultImportanceConfig(), 10_000)
	dateSize := analyzer.NewDateSize(analyzer.DefaultDateSizeConfig())
	labels := analyzer.NewLabelClassifier(analyzer.DefaultLabelClassifierConfig(), 10_000)

	a := &App{
		Config:      cfg,
		Factory:     factory,
		Redis:       redisClient,
		Registry:    userplane.NewRegistry(factory.System()),
		Sessions:    userplane.NewSessionManager(factory.System(), redisClient, cfg.JWTSecret, cfg.SessionTTL),
		Access:      userplane.NewAccessValidator(factory.System()),
		Files:       userplane.NewFileManager(cfg.ArchivePath, factory),
		OAuth:       userplane.NewOAuthManager(cfg, cfg.GoogleRedirectURL, userplane.NewTokenStore(cfg, encryptor)),
		Provider:    provider,
		Categorizer: categorize.NewEngine(importance, dateSize, labels),
		Queue:         jobqueue.NewQueue(factory, gen),
		Exporter:      export.NewWriter(cfg.ArchivePath),
		SafetyMetrics: domain.NewSafetyMetrics(),
	}

	limiter := ratelimit.NewAPIProtector(redisClient, &ratelimit.Config{
		MaxConcurrent:     cfg.MaxConcurrentOperations,
		RequestsPerSecond: (cfg.TargetEmailsPerMinute + 59) / 60,
		BurstSize:         cfg.MaxConcurrentOperations,
		DebounceDuration:  time.Minute,
		MaxPayloadSize:    cfg.ProviderBatchMaxSize,
	})
	a.Limiter = limiter
	metrics := NewStoreMetricsProvider(factory)
	a.Metrics = metrics
	a.Automation = automation.NewEngine(factory, a.Queue, cfg, metrics, limiter)

	return a, nil
}

// TokenFor loads userID's OAuth token, refreshing it if necessary.
func (a *App) TokenFor(ctx context.Context, userID string) (*oauth2.Token, error) {
	return a.OAuth.Token(ctx, userID)
}

// NewExecutor builds a fresh cleanup executor scoped to userID's own DAOs —
// executors are cheap and stateless apart from the DAOs they close over, so
// one is built per job rather than held on App.
func (a *App) NewExecutor(ctx context.Context, userID string) (*executor.Executor, error) {
	store, err := a.Factory.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	var guard *ratelimit.MemoryGuard
	if a.Limiter != nil {
		guard = a.Limiter.Guard()
	}
	return executor.NewExecutor(a.Provider, store.Messages(), store.Archive(), store.Files(), a.Exporter, nextFileID, guard), nil
}

// PoliciesFor returns the cleanup-policy DAO scoped to userID.
func (a *App) PoliciesFor(ctx context.Context, userID string) (*cleanup.PolicyEngine, error) {
	store, err := a.Factory.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cleanup.NewPolicyEngine(store.Policies()), nil
}

// Workers builds the categorization and cleanup job workers, ready to Run
// in their own goroutines.
func (a *App) Workers() []*jobqueue.Worker {
	return []*jobqueue.Worker{
		jobqueue.NewWorker(a.Factory, a.Factory.System(), domain.JobTypeCategorization, a.CategorizationJobHandler),
		jobqueue.NewWorker(a.Factory, a.Factory.System(), domain.JobTypeCleanup, a.CleanupJobHandler),
	}
}

// Close releases every held resource.
func (a *App) Close() error {
	if a.Redis != nil {
		a.Redis.Close()
	}
	return a.Factory.Close()
}
