package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.registry.GetStats()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "stats unavailable"})
	}
	return c.JSON(http.StatusOK, stats)
}
