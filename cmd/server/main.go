package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/geokazi/chores2026-sub003/internal/config"
	"github.com/geokazi/chores2026-sub003/internal/feed"
	"github.com/geokazi/chores2026-sub003/internal/hub"
	"github.com/geokazi/chores2026-sub003/internal/logging"
	"github.com/geokazi/chores2026-sub003/internal/platform/retry"
	"github.com/geokazi/chores2026-sub003/internal/postgres"
	"github.com/geokazi/chores2026-sub003/internal/redis"
	"github.com/geokazi/chores2026-sub003/internal/server"
)

var connectPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Dependency connect failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

// frameSource adapts the redis pub/sub to the relay's interface.
type frameSource struct {
	ps *redis.PubSub
}

func (f frameSource) SubscribeFamily(ctx context.Context, familyID string) feed.FrameSubscription {
	return f.ps.SubscribeFamily(ctx, familyID)
}

// poolPinger adapts pgxpool.Pool to the readiness Pinger interface.
type poolPinger struct {
	pool *pgxpool.Pool
}

func (p poolPinger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Starting choreboard feed service", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := retry.Do(ctx, connectPolicy, func(ctx context.Context) (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to create redis client", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	if err := retry.DoVoid(ctx, connectPolicy, redisClient.Ping); err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	pubsub := redis.NewPubSub(redisClient)

	chores := postgres.NewChoreRepo(pool)
	members := postgres.NewMemberRepo(pool)
	activities := postgres.NewActivityRepo(pool)
	feedService := feed.NewService(chores, members, activities, pubsub, clock)

	// The hub's first-join/last-leave callbacks start and stop the per-family
	// redis subscription, so the relay only runs for families someone watches.
	var relay *feed.Relay
	h := hub.NewHub(
		func(familyID string) error { return relay.Start(familyID) },
		func(familyID string) { relay.Stop(familyID) },
		clock,
	)
	relay = feed.NewRelay(frameSource{ps: pubsub}, h)

	srv := server.NewServer(cfg, feedService, h, poolPinger{pool: pool}, redisClient)

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
		h.Stop()
		relay.Shutdown()
	}()

	if err := srv.Start(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}
