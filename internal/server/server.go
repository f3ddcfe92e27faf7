// Package server wires the HTTP and WebSocket surface of the feed service.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/geokazi/chores2026-sub003/internal/config"
	"github.com/geokazi/chores2026-sub003/internal/domain"
	"github.com/geokazi/chores2026-sub003/internal/hub"
	"github.com/geokazi/chores2026-sub003/internal/platform/correlation"
)

// FeedService is the application surface the handlers call into.
type FeedService interface {
	CompleteChore(ctx context.Context, familyID string, choreID, memberID uuid.UUID) (*domain.ActivityRecord, error)
	Leaderboard(ctx context.Context, familyID string) ([]domain.LeaderboardEntry, error)
	RecentActivity(ctx context.Context, familyID string, limit int) ([]domain.ActivityRecord, error)
}

// Pinger reports dependency health for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo          *echo.Echo
	config        *config.Config
	feed          FeedService
	hub           *hub.Hub
	globalLimiter *GlobalConnectionLimiter
	ipLimiter     *IPConnectionLimiter
	db            Pinger
	cache         Pinger
}

func NewServer(cfg *config.Config, feed FeedService, h *hub.Hub, db, cache Pinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(correlationMiddleware)
	e.Use(middleware.Logger())

	srv := &Server{
		echo:          e,
		config:        cfg,
		feed:          feed,
		hub:           h,
		globalLimiter: NewGlobalConnectionLimiter(int64(cfg.MaxWebSocketConnections)),
		ipLimiter:     NewIPConnectionLimiter(cfg.MaxConnectionsPerIP),
		db:            db,
		cache:         cache,
	}

	srv.registerRoutes()
	return srv
}

// correlationMiddleware tags every request context with a correlation ID so
// log lines across the request share one.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(fmt.Sprintf(":%s", s.config.Port)); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
