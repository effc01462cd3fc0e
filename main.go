package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"inboxguard/config"
	"inboxguard/internal/app"
	"inboxguard/internal/mcpserver"
	"inboxguard/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "inboxguard",
	})

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := newRedisClient(cfg.RedisURL)

	a, err := app.New(ctx, cfg, redisClient)
	if err != nil {
		logger.Fatal("Failed to initialize app: %v", err)
	}
	defer a.Close()

	for _, w := range a.Workers() {
		go w.Run(ctx)
	}
	go a.Automation.Run(ctx)

	server := mcpserver.New(a)

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down (timeout: %v)...", shutdownTimeout)
	}()

	logger.Info("Starting inboxguard MCP server on stdio")
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("MCP server exited: %v", err)
	}
}

// newRedisClient builds a client from url, or returns nil when url is empty
// — every component taking a *redis.Client degrades gracefully without one.
func newRedisClient(url string) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Fatal("Invalid REDIS_URL: %v", err)
	}
	return redis.NewClient(opts)
}
