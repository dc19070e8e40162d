package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rish2jain/Incident-Commander-sub002/internal/domain"
	"github.com/rish2jain/Incident-Commander-sub002/internal/metrics"
)

// agentNames maps each phase to the demo agent executing it.
var agentNames = map[domain.Phase]struct{ name, kind string }{
	domain.PhaseDetection:    {"detection_agent", "monitor"},
	domain.PhaseDiagnosis:    {"diagnosis_agent", "analyst"},
	domain.PhasePrediction:   {"prediction_agent", "forecaster"},
	domain.PhaseResolution:   {"resolution_agent", "remediator"},
	domain.PhaseVerification: {"verification_agent", "auditor"},
}

type phaseOutcome struct {
	result domain.PhaseResult
	err    error
}

// runPhase executes one phase under the agent-execution tracker: every
// state transition is broadcast and the active-agent bookkeeping is updated
// on every exit path, including timeout and error.
func (o *Orchestrator) runPhase(ctx context.Context, incident domain.Incident, phase domain.Phase, cb domain.PhaseCallback, totalPhases int) error {
	agent := agentNames[phase]
	start := o.clock.Now()

	o.markAgent(incident.ID, agent.name, true)
	defer o.markAgent(incident.ID, agent.name, false)

	o.broadcastAgent(ctx, incident.ID, phase, domain.AgentStateInitializing, 0.0, nil, nil)
	o.broadcastAgent(ctx, incident.ID, phase, domain.AgentStateProcessing, 0.5, nil, nil)

	phaseCtx := ctx
	if o.phaseTimeout > 0 {
		var cancel context.CancelFunc
		phaseCtx, cancel = context.WithTimeout(ctx, o.phaseTimeout)
		defer cancel()
	}

	// The orchestrator owns timeout enforcement: the callback runs in its
	// own goroutine and we give up when the phase context expires, even if
	// the callback ignores it. The buffered channel lets a late callback
	// finish without leaking a blocked goroutine.
	outCh := make(chan phaseOutcome, 1)
	go func() {
		result, err := cb(phaseCtx, incident)
		outCh <- phaseOutcome{result: result, err: err}
	}()

	var out phaseOutcome
	select {
	case out = <-outCh:
	case <-phaseCtx.Done():
		out = phaseOutcome{err: phaseCtx.Err()}
	}
	elapsed := o.clock.Since(start)

	if out.err != nil {
		if errors.Is(out.err, context.DeadlineExceeded) {
			o.broadcastAgent(ctx, incident.ID, phase, domain.AgentStateTimeout, 0.5, nil, nil)
			o.publisher.ErrorRaised(ctx, "phase_timeout",
				fmt.Sprintf("phase %s timed out after %v", phase, o.phaseTimeout),
				domain.SeverityHigh,
				map[string]any{"incident_id": incident.ID, "phase": phase, "agent": agent.name},
			)
			metrics.OrchestratorPhaseFailuresTotal.WithLabelValues(string(phase), "timeout").Inc()
			return fmt.Errorf("phase %s: %w", phase, domain.ErrPhaseTimeout)
		}

		o.broadcastAgent(ctx, incident.ID, phase, domain.AgentStateError, 0.5, nil, nil)
		o.publisher.ErrorRaised(ctx, "phase_failure",
			fmt.Sprintf("phase %s failed: %s", phase, out.err),
			domain.SeverityHigh,
			map[string]any{"incident_id": incident.ID, "phase": phase, "agent": agent.name},
		)
		metrics.OrchestratorPhaseFailuresTotal.WithLabelValues(string(phase), "error").Inc()
		return fmt.Errorf("phase %s failed: %w", phase, out.err)
	}

	seconds := elapsed.Seconds()
	o.recordTiming(phase, seconds)
	metrics.OrchestratorPhaseDuration.WithLabelValues(string(phase)).Observe(seconds)

	durationMs := elapsed.Milliseconds()
	o.broadcastAgent(ctx, incident.ID, phase, domain.AgentStateCompleted, 1.0, out.result.Confidence, &durationMs)

	flow := o.completePhase(incident.ID, phase, totalPhases)
	o.publisher.IncidentPhaseChanged(ctx, flow)
	return nil
}

func (o *Orchestrator) broadcastAgent(ctx context.Context, incidentID string, phase domain.Phase, state domain.AgentState, progress float64, confidence *float64, durationMs *int64) {
	agent := agentNames[phase]
	o.publisher.AgentStateChanged(ctx, domain.AgentUpdate{
		IncidentID: incidentID,
		AgentName:  agent.name,
		AgentType:  agent.kind,
		State:      state,
		Phase:      phase,
		Progress:   progress,
		Confidence: confidence,
		DurationMs: durationMs,
	})
}

func (o *Orchestrator) markAgent(incidentID, agentName string, active bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	run, ok := o.runs[incidentID]
	if !ok {
		return
	}
	if active {
		run.ActiveAgents[agentName] = struct{}{}
	} else {
		delete(run.ActiveAgents, agentName)
	}
}

// completePhase appends the phase to the run's completed list, advances
// overall progress and snapshots the flow update to broadcast. Progress is
// monotonically non-decreasing: phases only ever get appended.
func (o *Orchestrator) completePhase(incidentID string, phase domain.Phase, totalPhases int) domain.IncidentFlow {
	o.mu.Lock()
	defer o.mu.Unlock()

	run, ok := o.runs[incidentID]
	if !ok {
		return domain.IncidentFlow{IncidentID: incidentID, Phase: phase, PhaseProgress: 1.0}
	}

	run.CompletedPhases = append(run.CompletedPhases, phase)
	run.Progress = float64(len(run.CompletedPhases)) / float64(totalPhases)

	completed := make([]domain.Phase, len(run.CompletedPhases))
	copy(completed, run.CompletedPhases)

	agents := make([]string, 0, len(run.ActiveAgents))
	for name := range run.ActiveAgents {
		agents = append(agents, name)
	}
	sort.Strings(agents)

	return domain.IncidentFlow{
		IncidentID:      incidentID,
		Phase:           phase,
		CompletedPhases: completed,
		ActiveAgents:    agents,
		OverallProgress: run.Progress,
		PhaseProgress:   1.0,
	}
}
