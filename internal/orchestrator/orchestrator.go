package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rish2jain/Incident-Commander-sub002/internal/domain"
	"github.com/rish2jain/Incident-Commander-sub002/internal/metrics"
	"github.com/rish2jain/Incident-Commander-sub002/internal/platform/correlation"
)

const timingWindow = 50

// ConnectionStats supplies registry counters for health snapshots.
// Implemented by the websocket Registry; nil-able for tests.
type ConnectionStats func() domain.ConnectionSnapshot

// Orchestrator processes incidents through the phase sequence. Multiple
// incidents for distinct ids run concurrently and independently; the runs
// map is the only shared state, guarded by one mutex held only for map and
// slice mutation, never across a callback invocation.
type Orchestrator struct {
	publisher     domain.EventPublisher
	clock         clockwork.Clock
	phaseTimeout  time.Duration
	maxConcurrent int
	agentPoolSize int
	connStats     ConnectionStats

	mu      sync.Mutex
	runs    map[string]*domain.IncidentRun
	timings map[domain.Phase][]float64
}

// New creates an orchestrator. phaseTimeout bounds each callback invocation
// (0 disables the bound). connStats may be nil.
func New(publisher domain.EventPublisher, clock clockwork.Clock, phaseTimeout time.Duration, maxConcurrent, agentPoolSize int, connStats ConnectionStats) *Orchestrator {
	return &Orchestrator{
		publisher:     publisher,
		clock:         clock,
		phaseTimeout:  phaseTimeout,
		maxConcurrent: maxConcurrent,
		agentPoolSize: agentPoolSize,
		connStats:     connStats,
		runs:          make(map[string]*domain.IncidentRun),
		timings:       make(map[domain.Phase][]float64),
	}
}

// ProcessIncident drives one incident through all phases in fixed order.
// Verification runs only when its callback is supplied. If any phase
// aborts, the whole run fails; there is no partial-success status. The run
// entry is always removed on exit.
func (o *Orchestrator) ProcessIncident(ctx context.Context, incident domain.Incident, callbacks domain.Callbacks) (domain.RunSummary, error) {
	if _, ok := correlation.ID(ctx); !ok {
		ctx = correlation.WithID(ctx, correlation.NewID())
	}

	plan, err := o.phasePlan(callbacks)
	if err != nil {
		return domain.RunSummary{}, err
	}

	start := o.clock.Now()
	if err := o.registerRun(incident.ID, start); err != nil {
		return domain.RunSummary{}, err
	}
	defer o.removeRun(incident.ID)

	slog.InfoContext(ctx, "Incident processing started", "incident_id", incident.ID, "severity", incident.Severity, "phases", len(plan))

	completed := 0
	for _, phase := range plan {
		if err := o.runPhase(ctx, incident, phase, callbacks[phase], len(plan)); err != nil {
			outcome := "failed"
			if errors.Is(err, domain.ErrPhaseTimeout) {
				outcome = "timeout"
			}
			metrics.OrchestratorIncidentsTotal.WithLabelValues(outcome).Inc()
			slog.ErrorContext(ctx, "Incident processing aborted", "incident_id", incident.ID, "phase", phase, "error", err)

			return domain.RunSummary{
				IncidentID:      incident.ID,
				Status:          outcome,
				Duration:        o.clock.Since(start),
				DurationSeconds: o.clock.Since(start).Seconds(),
				PhasesCompleted: completed,
			}, err
		}
		completed++
	}

	o.publisher.IncidentPhaseChanged(ctx, domain.IncidentFlow{
		IncidentID:      incident.ID,
		Phase:           domain.PhaseComplete,
		CompletedPhases: plan,
		ActiveAgents:    []string{},
		OverallProgress: 1.0,
		PhaseProgress:   1.0,
	})

	duration := o.clock.Since(start)
	metrics.OrchestratorIncidentsTotal.WithLabelValues("completed").Inc()
	slog.InfoContext(ctx, "Incident processing completed", "incident_id", incident.ID, "duration", duration, "phases_completed", completed)

	return domain.RunSummary{
		IncidentID:      incident.ID,
		Status:          "completed",
		Duration:        duration,
		DurationSeconds: duration.Seconds(),
		PhasesCompleted: completed,
	}, nil
}

// phasePlan validates the callback set and returns the execution order.
func (o *Orchestrator) phasePlan(callbacks domain.Callbacks) ([]domain.Phase, error) {
	plan := domain.CorePhases()
	for _, phase := range plan {
		if callbacks[phase] == nil {
			return nil, fmt.Errorf("phase %s: %w", phase, domain.ErrMissingCallback)
		}
	}
	if callbacks[domain.PhaseVerification] != nil {
		plan = append(plan, domain.PhaseVerification)
	}
	return plan, nil
}

func (o *Orchestrator) registerRun(incidentID string, start time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.runs[incidentID]; exists {
		return fmt.Errorf("incident %s: %w", incidentID, domain.ErrIncidentActive)
	}
	o.runs[incidentID] = &domain.IncidentRun{
		IncidentID:   incidentID,
		StartedAt:    start,
		ActiveAgents: make(map[string]struct{}),
	}
	metrics.OrchestratorActiveIncidents.Set(float64(len(o.runs)))
	return nil
}

func (o *Orchestrator) removeRun(incidentID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.runs, incidentID)
	metrics.OrchestratorActiveIncidents.Set(float64(len(o.runs)))
}

// ActiveIncidents returns the ids of incidents currently being processed.
func (o *Orchestrator) ActiveIncidents() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := make([]string, 0, len(o.runs))
	for id := range o.runs {
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) recordTiming(phase domain.Phase, seconds float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	window := append(o.timings[phase], seconds)
	if len(window) > timingWindow {
		window = window[len(window)-timingWindow:]
	}
	o.timings[phase] = window
}
