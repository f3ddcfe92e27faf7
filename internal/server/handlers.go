package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/geokazi/chores2026-sub003/internal/domain"
	"github.com/geokazi/chores2026-sub003/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboard clients connect from app-served pages
	},
}

// connectRateLimiter throttles new WebSocket connections per IP.
var connectRateLimiter = NewConnectionRateLimiter(rate.Limit(10), 10)

// --- REST handlers ---

func (s *Server) handleLeaderboard(c echo.Context) error {
	familyID := c.Param("id")
	if familyID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "family id is required")
	}

	entries, err := s.feed.Leaderboard(c.Request().Context(), familyID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load leaderboard")
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return c.JSON(http.StatusOK, map[string]any{"leaderboard": entries})
}

func (s *Server) handleActivity(c echo.Context) error {
	familyID := c.Param("id")
	if familyID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "family id is required")
	}

	records, err := s.feed.RecentActivity(c.Request().Context(), familyID, s.config.ActivityFeedLimit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load activity")
	}
	if records == nil {
		records = []domain.ActivityRecord{}
	}
	return c.JSON(http.StatusOK, map[string]any{"activity": records})
}

type completeChoreRequest struct {
	MemberID string `json:"member_id"`
}

func (s *Server) handleCompleteChore(c echo.Context) error {
	familyID := c.Param("id")
	choreID, err := uuid.Parse(c.Param("choreID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid chore id")
	}

	var req completeChoreRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	memberID, err := uuid.Parse(req.MemberID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid member id")
	}

	rec, err := s.feed.CompleteChore(c.Request().Context(), familyID, choreID, memberID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "chore not found")
	case errors.Is(err, domain.ErrFamilyMismatch):
		return echo.NewHTTPError(http.StatusNotFound, "chore not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to complete chore")
	}

	return c.JSON(http.StatusOK, rec)
}

// --- WebSocket handler ---

func (s *Server) handleWebSocket(c echo.Context) error {
	familyID := c.Param("id")
	if familyID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "family id is required")
	}

	ip := c.RealIP()
	if !connectRateLimiter.Allow(ip) {
		metrics.ConnectionsRejectedTotal.WithLabelValues("rate_limited").Inc()
		return echo.NewHTTPError(http.StatusTooManyRequests, "connection rate limit exceeded")
	}
	if !s.globalLimiter.Acquire() {
		metrics.ConnectionsRejectedTotal.WithLabelValues("global_limit").Inc()
		return echo.NewHTTPError(http.StatusServiceUnavailable, "connection capacity reached")
	}
	defer s.globalLimiter.Release()

	if !s.ipLimiter.Acquire(ip) {
		metrics.ConnectionsRejectedTotal.WithLabelValues("ip_limit").Inc()
		return echo.NewHTTPError(http.StatusTooManyRequests, "per-IP connection limit exceeded")
	}
	defer s.ipLimiter.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil // Upgrade already wrote the error response
	}

	if err := s.hub.Join(familyID, conn); err != nil {
		return nil // Hub closed the connection
	}
	defer s.hub.Leave(familyID, conn)

	// Read loop: clients do not send application frames; this keeps pong
	// handling alive and detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	return nil
}
