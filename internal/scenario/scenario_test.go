package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rish2jain/Incident-Commander-sub002/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames_Sorted(t *testing.T) {
	assert.Equal(t, []string{"api_latency_spike", "database_outage", "memory_leak"}, Names())
}

func TestLookup(t *testing.T) {
	sc, ok := Lookup("memory_leak")
	require.True(t, ok)
	assert.Equal(t, "memory_leak", sc.Name)
	assert.Equal(t, domain.SeverityMedium, sc.Severity)

	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func TestDefault(t *testing.T) {
	assert.Equal(t, "database_outage", Default().Name)
}

func TestNewIncident(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sc := Default()

	first := sc.NewIncident(clock)
	second := sc.NewIncident(clock)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, sc.Title, first.Title)
	assert.Equal(t, sc.Severity, first.Severity)
	assert.Equal(t, clock.Now(), first.CreatedAt)
	assert.Equal(t, "database_outage", first.Annotations["scenario"])
}

func TestCallbacks_CoverCorePhases(t *testing.T) {
	for _, name := range Names() {
		sc, _ := Lookup(name)
		callbacks := sc.Callbacks(clockwork.NewRealClock())
		for _, phase := range domain.CorePhases() {
			assert.NotNilf(t, callbacks[phase], "scenario %s missing %s", name, phase)
		}
	}
}

func TestCallbacks_VerificationOnlyWhenScripted(t *testing.T) {
	withVerification, _ := Lookup("database_outage")
	assert.NotNil(t, withVerification.Callbacks(clockwork.NewRealClock())[domain.PhaseVerification])

	without, _ := Lookup("api_latency_spike")
	assert.Nil(t, without.Callbacks(clockwork.NewRealClock())[domain.PhaseVerification])
}

func TestCallbacks_WaitScriptedDelayAndReturnResult(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sc, _ := Lookup("api_latency_spike")
	callbacks := sc.Callbacks(clock)

	type outcome struct {
		result domain.PhaseResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := callbacks[domain.PhaseDetection](context.Background(), domain.Incident{ID: "inc-1"})
		done <- outcome{result: result, err: err}
	}()

	clock.BlockUntil(1)
	clock.Advance(600 * time.Millisecond)

	select {
	case out := <-done:
		require.NoError(t, out.err)
		require.NotNil(t, out.result.Confidence)
		assert.InDelta(t, 0.95, *out.result.Confidence, 1e-9)
		assert.Equal(t, "p99_over_slo", out.result.Details["signal"])
	case <-time.After(time.Second):
		t.Fatal("callback did not return after clock advance")
	}
}

func TestCallbacks_HonorContextCancellation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sc, _ := Lookup("api_latency_spike")
	callbacks := sc.Callbacks(clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := callbacks[domain.PhaseDiagnosis](ctx, domain.Incident{ID: "inc-2"})
		done <- err
	}()

	clock.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("callback did not honor cancellation")
	}
}
