package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	gorilla "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rish2jain/Incident-Commander-sub002/internal/domain"
	"github.com/rish2jain/Incident-Commander-sub002/internal/metrics"
	"github.com/rish2jain/Incident-Commander-sub002/internal/scenario"
	"github.com/rish2jain/Incident-Commander-sub002/internal/websocket"
	"github.com/rs/xid"
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboards embed freely in the demo setup
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()
	if !s.rateLimiter.Allow(ip) {
		metrics.ServerConnectionRejectionsTotal.WithLabelValues("rate_limit").Inc()
		return c.String(http.StatusTooManyRequests, "Connection rate limit exceeded")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	connectionID := xid.New().String()

	// The initial world state a fresh dashboard needs: the current health
	// snapshot. Opaque to the registry.
	welcome := domain.Message{
		Type:      domain.MessageTypeInitialState,
		Priority:  domain.PriorityNormal,
		Timestamp: s.clock.Now(),
		Payload:   s.orch.GetSystemHealth(),
	}

	if err := s.registry.Connect(connectionID, websocket.NewTransport(conn), welcome); err != nil {
		if errors.Is(err, domain.ErrRegistryFull) {
			metrics.ServerConnectionRejectionsTotal.WithLabelValues("registry_full").Inc()
		}
		slog.Warn("Failed to register connection", "connection_id", connectionID, "error", err)
		return nil
	}

	// Read pump - blocks until the connection closes. Inbound frames
	// (pings, demo-trigger commands) are opaque and dropped here.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.registry.Disconnect(connectionID)

	return nil //nolint:nilerr // ReadMessage err is block-scoped; outer err is nil
}

type triggerRequest struct {
	Scenario   string `json:"scenario"`
	IncidentID string `json:"incident_id"`
}

func (s *Server) handleTriggerIncident(c echo.Context) error {
	var req triggerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid request body"})
	}

	sc := scenario.Default()
	if req.Scenario != "" {
		var ok bool
		sc, ok = scenario.Lookup(req.Scenario)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]any{
				"error":     fmt.Sprintf("unknown scenario %q", req.Scenario),
				"scenarios": scenario.Names(),
			})
		}
	}

	incident := sc.NewIncident(s.clock)
	if req.IncidentID != "" {
		incident.ID = req.IncidentID
	}

	// Processing runs in the background; duplicate triggers for the same
	// incident id collapse into one run and the rest observe its result.
	go func() {
		_, err, shared := s.triggerGroup.Do(incident.ID, func() (any, error) {
			return s.orch.ProcessIncident(context.Background(), incident, sc.Callbacks(s.clock))
		})
		if err != nil && !shared {
			slog.Error("Incident processing failed", "incident_id", incident.ID, "scenario", sc.Name, "error", err)
		}
	}()

	return c.JSON(http.StatusAccepted, map[string]any{
		"incident_id": incident.ID,
		"scenario":    sc.Name,
		"status":      "accepted",
	})
}

func (s *Server) handleSystemHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.GetSystemHealth())
}

func (s *Server) handleScenarios(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"scenarios": scenario.Names()})
}
