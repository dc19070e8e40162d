package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rish2jain/Incident-Commander-sub002/internal/broadcast"
	"github.com/rish2jain/Incident-Commander-sub002/internal/config"
	"github.com/rish2jain/Incident-Commander-sub002/internal/domain"
	"github.com/rish2jain/Incident-Commander-sub002/internal/logging"
	"github.com/rish2jain/Incident-Commander-sub002/internal/metrics"
	"github.com/rish2jain/Incident-Commander-sub002/internal/orchestrator"
	"github.com/rish2jain/Incident-Commander-sub002/internal/platform/version"
	"github.com/rish2jain/Incident-Commander-sub002/internal/relay"
	"github.com/rish2jain/Incident-Commander-sub002/internal/server"
	"github.com/rish2jain/Incident-Commander-sub002/internal/websocket"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRelay(cfg *config.Config, scheduler *broadcast.Scheduler) (*relay.Relay, *goredis.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb, err := relay.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	rly := relay.New(rdb, scheduler)
	rly.Start(context.Background())
	return rly, rdb
}

// runGracefulShutdown tears components down in dependency order: HTTP
// first, then the health ticker, then the scheduler (final flush), then
// the registry, relay last. The scheduler stops strictly before the
// registry so the final flush never writes into closed connections.
func runGracefulShutdown(srv *server.Server, stopTicker context.CancelFunc, scheduler *broadcast.Scheduler, registry *websocket.Registry, rly *relay.Relay, rdb *goredis.Client) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopTicker()
		scheduler.Stop()
		registry.Stop()

		if rly != nil {
			rly.Close()
			_ = rdb.Close()
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "build", version.Get().String())
	metrics.BuildInfo.WithLabelValues(version.Version, version.Commit).Set(1)

	registry := websocket.NewRegistry(cfg.MaxConnections, cfg.QueueCapacity, cfg.WriteTimeout, clock)
	scheduler := broadcast.NewScheduler(registry, cfg.FlushInterval, clock)

	sinks := []broadcast.Enqueuer{scheduler}
	var (
		rly *relay.Relay
		rdb *goredis.Client
	)
	if cfg.RedisURL != "" {
		rly, rdb = setupRelay(cfg, scheduler)
		sinks = append(sinks, rly)
	}

	facade := broadcast.NewFacade(clock, sinks...)

	connStats := func() domain.ConnectionSnapshot {
		m := registry.Metrics()
		return domain.ConnectionSnapshot{
			Active:        m.Active,
			TotalAccepted: m.TotalAccepted,
			MessagesSent:  m.MessagesSent,
			UptimeSeconds: m.Uptime.Seconds(),
		}
	}
	orch := orchestrator.New(facade, clock, cfg.PhaseTimeout, cfg.MaxConcurrentIncidents, cfg.AgentPoolSize, connStats)

	scheduler.Start()

	healthTicker := orchestrator.NewHealthTicker(orch, facade, cfg.HealthInterval, clock)
	tickerCtx, stopTicker := context.WithCancel(context.Background())
	go healthTicker.Run(tickerCtx)

	srv := server.NewServer(cfg, registry, orch, facade, clock)

	done := runGracefulShutdown(srv, stopTicker, scheduler, registry, rly, rdb)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
