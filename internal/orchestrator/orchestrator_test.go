package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rish2jain/Incident-Commander-sub002/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type raisedError struct {
	errorType string
	message   string
	severity  domain.Severity
}

// recordingPublisher captures every broadcast the orchestrator emits.
type recordingPublisher struct {
	mu      sync.Mutex
	agents  []domain.AgentUpdate
	flows   []domain.IncidentFlow
	healths []domain.SystemHealth
	errors  []raisedError
}

func (p *recordingPublisher) AgentStateChanged(_ context.Context, update domain.AgentUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.agents = append(p.agents, update)
}

func (p *recordingPublisher) IncidentPhaseChanged(_ context.Context, flow domain.IncidentFlow) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flows = append(p.flows, flow)
}

func (p *recordingPublisher) SystemHealthSnapshot(_ context.Context, health domain.SystemHealth) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healths = append(p.healths, health)
}

func (p *recordingPublisher) ErrorRaised(_ context.Context, errorType, message string, severity domain.Severity, _ map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, raisedError{errorType: errorType, message: message, severity: severity})
}

func (p *recordingPublisher) agentUpdates(incidentID string) []domain.AgentUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.AgentUpdate
	for _, u := range p.agents {
		if u.IncidentID == incidentID {
			out = append(out, u)
		}
	}
	return out
}

func (p *recordingPublisher) incidentFlows(incidentID string) []domain.IncidentFlow {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.IncidentFlow
	for _, f := range p.flows {
		if f.IncidentID == incidentID {
			out = append(out, f)
		}
	}
	return out
}

func okCallback(conf float64) domain.PhaseCallback {
	return func(context.Context, domain.Incident) (domain.PhaseResult, error) {
		return domain.PhaseResult{Confidence: &conf}, nil
	}
}

func coreCallbacks() domain.Callbacks {
	return domain.Callbacks{
		domain.PhaseDetection:  okCallback(0.9),
		domain.PhaseDiagnosis:  okCallback(0.8),
		domain.PhasePrediction: okCallback(0.7),
		domain.PhaseResolution: okCallback(0.95),
	}
}

func testIncident(id string) domain.Incident {
	return domain.Incident{ID: id, Title: "test incident", Severity: domain.SeverityHigh}
}

func testOrchestrator(publisher domain.EventPublisher, timeout time.Duration) *Orchestrator {
	return New(publisher, clockwork.NewRealClock(), timeout, 10, 5, nil)
}

func TestProcessIncident_AllPhasesSucceed(t *testing.T) {
	pub := &recordingPublisher{}
	o := testOrchestrator(pub, time.Second)

	summary, err := o.ProcessIncident(context.Background(), testIncident("inc-1"), coreCallbacks())
	require.NoError(t, err)
	assert.Equal(t, "completed", summary.Status)
	assert.Equal(t, 4, summary.PhasesCompleted)
	assert.Empty(t, o.ActiveIncidents())

	// Each phase walked initializing -> processing -> completed.
	updates := pub.agentUpdates("inc-1")
	require.Len(t, updates, 12)
	for i, phase := range domain.CorePhases() {
		assert.Equal(t, phase, updates[i*3].Phase)
		assert.Equal(t, domain.AgentStateInitializing, updates[i*3].State)
		assert.Equal(t, 0.0, updates[i*3].Progress)
		assert.Equal(t, domain.AgentStateProcessing, updates[i*3+1].State)
		assert.Equal(t, 0.5, updates[i*3+1].Progress)
		assert.Equal(t, domain.AgentStateCompleted, updates[i*3+2].State)
		assert.Equal(t, 1.0, updates[i*3+2].Progress)
		assert.NotNil(t, updates[i*3+2].Confidence)
		assert.NotNil(t, updates[i*3+2].DurationMs)
	}

	// Flow updates: one per phase plus the terminal Complete.
	flows := pub.incidentFlows("inc-1")
	require.Len(t, flows, 5)
	assert.Equal(t, domain.CorePhases(), flows[3].CompletedPhases)
	assert.Equal(t, 1.0, flows[3].OverallProgress)
	terminal := flows[4]
	assert.Equal(t, domain.PhaseComplete, terminal.Phase)
	assert.Equal(t, 1.0, terminal.OverallProgress)

	// Progress is monotonically non-decreasing.
	prev := 0.0
	for _, f := range flows {
		assert.GreaterOrEqual(t, f.OverallProgress, prev)
		prev = f.OverallProgress
	}
}

func TestProcessIncident_PhaseFailureAborts(t *testing.T) {
	pub := &recordingPublisher{}
	o := testOrchestrator(pub, time.Second)

	boom := errors.New("diagnosis blew up")
	callbacks := coreCallbacks()
	callbacks[domain.PhaseDiagnosis] = func(context.Context, domain.Incident) (domain.PhaseResult, error) {
		return domain.PhaseResult{}, boom
	}

	summary, err := o.ProcessIncident(context.Background(), testIncident("inc-2"), callbacks)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "failed", summary.Status)
	assert.Equal(t, 1, summary.PhasesCompleted)

	// No later phase ran.
	for _, u := range pub.agentUpdates("inc-2") {
		assert.NotEqual(t, domain.PhasePrediction, u.Phase)
		assert.NotEqual(t, domain.PhaseResolution, u.Phase)
	}

	// Error state broadcast plus a high-severity notification.
	updates := pub.agentUpdates("inc-2")
	assert.Equal(t, domain.AgentStateError, updates[len(updates)-1].State)
	require.Len(t, pub.errors, 1)
	assert.Equal(t, "phase_failure", pub.errors[0].errorType)
	assert.Equal(t, domain.SeverityHigh, pub.errors[0].severity)

	// Bookkeeping cleaned up despite the abort.
	assert.Empty(t, o.ActiveIncidents())
}

func TestProcessIncident_TimeoutAborts(t *testing.T) {
	pub := &recordingPublisher{}
	o := testOrchestrator(pub, 20*time.Millisecond)

	callbacks := coreCallbacks()
	callbacks[domain.PhasePrediction] = func(ctx context.Context, _ domain.Incident) (domain.PhaseResult, error) {
		<-ctx.Done()
		return domain.PhaseResult{}, ctx.Err()
	}

	summary, err := o.ProcessIncident(context.Background(), testIncident("inc-3"), callbacks)
	require.ErrorIs(t, err, domain.ErrPhaseTimeout)
	assert.Equal(t, "timeout", summary.Status)
	assert.Equal(t, 2, summary.PhasesCompleted)

	updates := pub.agentUpdates("inc-3")
	assert.Equal(t, domain.AgentStateTimeout, updates[len(updates)-1].State)
	require.Len(t, pub.errors, 1)
	assert.Equal(t, "phase_timeout", pub.errors[0].errorType)
	assert.Empty(t, o.ActiveIncidents())
}

func TestProcessIncident_TimeoutEnforcedOnStubbornCallback(t *testing.T) {
	pub := &recordingPublisher{}
	o := testOrchestrator(pub, 20*time.Millisecond)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	callbacks := coreCallbacks()
	// Ignores ctx entirely; the orchestrator must still give up.
	callbacks[domain.PhaseDetection] = func(context.Context, domain.Incident) (domain.PhaseResult, error) {
		<-release
		return domain.PhaseResult{}, nil
	}

	_, err := o.ProcessIncident(context.Background(), testIncident("inc-4"), callbacks)
	require.ErrorIs(t, err, domain.ErrPhaseTimeout)
}

func TestProcessIncident_DuplicateActiveIDRejected(t *testing.T) {
	pub := &recordingPublisher{}
	o := testOrchestrator(pub, time.Second)

	entered := make(chan struct{})
	release := make(chan struct{})
	callbacks := coreCallbacks()
	callbacks[domain.PhaseDetection] = func(context.Context, domain.Incident) (domain.PhaseResult, error) {
		close(entered)
		<-release
		return domain.PhaseResult{}, nil
	}

	go func() {
		_, _ = o.ProcessIncident(context.Background(), testIncident("inc-5"), callbacks)
	}()
	<-entered

	_, err := o.ProcessIncident(context.Background(), testIncident("inc-5"), coreCallbacks())
	assert.ErrorIs(t, err, domain.ErrIncidentActive)

	close(release)
}

func TestProcessIncident_MissingCoreCallbackRejected(t *testing.T) {
	pub := &recordingPublisher{}
	o := testOrchestrator(pub, time.Second)

	callbacks := coreCallbacks()
	delete(callbacks, domain.PhaseResolution)

	_, err := o.ProcessIncident(context.Background(), testIncident("inc-6"), callbacks)
	assert.ErrorIs(t, err, domain.ErrMissingCallback)
	assert.Empty(t, o.ActiveIncidents())
}

func TestProcessIncident_VerificationRunsOnlyWhenSupplied(t *testing.T) {
	pub := &recordingPublisher{}
	o := testOrchestrator(pub, time.Second)

	summary, err := o.ProcessIncident(context.Background(), testIncident("inc-7"), coreCallbacks())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.PhasesCompleted)

	withVerification := coreCallbacks()
	withVerification[domain.PhaseVerification] = okCallback(0.99)
	summary, err = o.ProcessIncident(context.Background(), testIncident("inc-8"), withVerification)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.PhasesCompleted)

	flows := pub.incidentFlows("inc-8")
	assert.Equal(t, domain.PhaseVerification, flows[len(flows)-2].Phase)
	// Progress denominators use the five-phase plan.
	assert.InDelta(t, 0.2, flows[0].OverallProgress, 1e-9)
}

func TestProcessIncident_ConcurrentIncidentsIndependent(t *testing.T) {
	pub := &recordingPublisher{}
	o := testOrchestrator(pub, time.Second)

	var wg sync.WaitGroup
	for _, id := range []string{"inc-a", "inc-b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			summary, err := o.ProcessIncident(context.Background(), testIncident(id), coreCallbacks())
			assert.NoError(t, err)
			assert.Equal(t, 4, summary.PhasesCompleted)
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"inc-a", "inc-b"} {
		flows := pub.incidentFlows(id)
		require.Len(t, flows, 5)
		assert.Equal(t, domain.CorePhases(), flows[3].CompletedPhases)
	}
	assert.Empty(t, o.ActiveIncidents())
}

func TestGetSystemHealth(t *testing.T) {
	pub := &recordingPublisher{}
	o := New(pub, clockwork.NewRealClock(), time.Second, 4, 5, func() domain.ConnectionSnapshot {
		return domain.ConnectionSnapshot{Active: 3}
	})

	entered := make(chan struct{})
	release := make(chan struct{})
	callbacks := coreCallbacks()
	callbacks[domain.PhaseDetection] = func(context.Context, domain.Incident) (domain.PhaseResult, error) {
		close(entered)
		<-release
		return domain.PhaseResult{}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = o.ProcessIncident(context.Background(), testIncident("inc-h"), callbacks)
	}()
	<-entered

	health := o.GetSystemHealth()
	assert.Equal(t, 1, health.ActiveIncidents)
	assert.Equal(t, 5, health.AgentsAvailable)
	assert.InDelta(t, 0.75, health.ProcessingCapacity, 1e-9)
	assert.Equal(t, 3, health.Connections.Active)

	close(release)
	<-done

	health = o.GetSystemHealth()
	assert.Equal(t, 0, health.ActiveIncidents)
	assert.InDelta(t, 1.0, health.ProcessingCapacity, 1e-9)
	// Rolling timings populated by the completed run.
	assert.Contains(t, health.AvgPhaseSeconds, domain.PhaseDetection)
	assert.Contains(t, health.AvgPhaseSeconds, domain.PhaseResolution)
}

func TestRecordTiming_WindowBounded(t *testing.T) {
	pub := &recordingPublisher{}
	o := testOrchestrator(pub, time.Second)

	for i := 0; i < timingWindow+25; i++ {
		o.recordTiming(domain.PhaseDetection, float64(i))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	assert.Len(t, o.timings[domain.PhaseDetection], timingWindow)
	// Oldest entries rolled off.
	assert.Equal(t, 25.0, o.timings[domain.PhaseDetection][0])
}
