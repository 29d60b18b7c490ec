package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Operational introspection for the realtime layer
	s.echo.GET("/api/websocket/stats", s.handleStats)

	// Real-time WebSocket endpoint
	s.echo.GET("/ws/:user_id", s.handleWebSocket)
}
