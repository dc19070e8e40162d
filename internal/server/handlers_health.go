package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rish2jain/Incident-Commander-sub002/internal/platform/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	// The registry actor answers Metrics from its command loop; a reply
	// means the broadcast core is alive.
	m := s.registry.Metrics()
	return c.JSON(http.StatusOK, map[string]any{
		"status":             "ready",
		"active_connections": m.Active,
	})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}
