package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/rish2jain/Incident-Commander-sub002/internal/broadcast"
	"github.com/rish2jain/Incident-Commander-sub002/internal/config"
	"github.com/rish2jain/Incident-Commander-sub002/internal/orchestrator"
	"github.com/rish2jain/Incident-Commander-sub002/internal/websocket"
	"golang.org/x/sync/singleflight"
)

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	registry    *websocket.Registry
	orch        *orchestrator.Orchestrator
	facade      *broadcast.Facade
	rateLimiter *ConnectionRateLimiter
	clock       clockwork.Clock
	startTime   time.Time

	// triggerGroup collapses concurrent demo triggers for the same
	// incident id into one ProcessIncident run.
	triggerGroup singleflight.Group
}

func NewServer(cfg *config.Config, registry *websocket.Registry, orch *orchestrator.Orchestrator, facade *broadcast.Facade, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:        e,
		config:      cfg,
		registry:    registry,
		orch:        orch,
		facade:      facade,
		rateLimiter: NewConnectionRateLimiter(cfg.ConnectionsPerSecond, cfg.ConnectionBurst),
		clock:       clock,
		startTime:   clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
