package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Static feed data: seeds the fallback view while the channel is degraded
	s.echo.GET("/api/families/:id/leaderboard", s.handleLeaderboard)
	s.echo.GET("/api/families/:id/activity", s.handleActivity)

	// Write path
	s.echo.POST("/api/families/:id/chores/:choreID/complete", s.handleCompleteChore)

	// Live feed
	s.echo.GET("/ws/family/:id", s.handleWebSocket)
}
