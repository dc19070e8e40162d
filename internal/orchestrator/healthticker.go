package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rish2jain/Incident-Commander-sub002/internal/domain"
	"github.com/rish2jain/Incident-Commander-sub002/internal/platform/correlation"
)

// HealthTicker periodically broadcasts a system-health snapshot so
// dashboards show load even when no incident is running.
type HealthTicker struct {
	orch      *Orchestrator
	publisher domain.EventPublisher
	interval  time.Duration
	clock     clockwork.Clock
}

func NewHealthTicker(orch *Orchestrator, publisher domain.EventPublisher, interval time.Duration, clock clockwork.Clock) *HealthTicker {
	return &HealthTicker{
		orch:      orch,
		publisher: publisher,
		interval:  interval,
		clock:     clock,
	}
}

// Run starts the periodic broadcast loop. It blocks until ctx is cancelled.
func (t *HealthTicker) Run(ctx context.Context) {
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			tickCtx := correlation.WithID(ctx, correlation.NewID())
			health := t.orch.GetSystemHealth()
			t.publisher.SystemHealthSnapshot(tickCtx, health)
			slog.DebugContext(tickCtx, "Health snapshot broadcast",
				"active_incidents", health.ActiveIncidents,
				"processing_capacity", health.ProcessingCapacity,
			)
		}
	}
}
