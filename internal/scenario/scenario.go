// Package scenario provides scripted demo callback sets: clock-paced
// per-phase agents with canned confidences, so a triggered incident plays
// out believably on the dashboard. Payload content stays opaque to the
// broadcast core.
package scenario

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rish2jain/Incident-Commander-sub002/internal/domain"
)

type step struct {
	delay      time.Duration
	confidence float64
	details    map[string]any
}

// Scenario is one named demo script.
type Scenario struct {
	Name     string
	Title    string
	Severity domain.Severity
	steps    map[domain.Phase]step
}

var library = map[string]Scenario{
	"database_outage": {
		Name:     "database_outage",
		Title:    "Primary database cluster unreachable",
		Severity: domain.SeverityCritical,
		steps: map[domain.Phase]step{
			domain.PhaseDetection:    {delay: 800 * time.Millisecond, confidence: 0.97, details: map[string]any{"signal": "connection_pool_exhausted", "region": "us-east-1"}},
			domain.PhaseDiagnosis:    {delay: 1500 * time.Millisecond, confidence: 0.91, details: map[string]any{"root_cause": "failover_partition", "affected_shards": 3}},
			domain.PhasePrediction:   {delay: 1200 * time.Millisecond, confidence: 0.84, details: map[string]any{"blast_radius": "checkout,auth", "eta_minutes": 12}},
			domain.PhaseResolution:   {delay: 2 * time.Second, confidence: 0.93, details: map[string]any{"action": "promote_replica", "runbook": "db-failover-7"}},
			domain.PhaseVerification: {delay: 900 * time.Millisecond, confidence: 0.99, details: map[string]any{"checks_passed": 14}},
		},
	},
	"api_latency_spike": {
		Name:     "api_latency_spike",
		Title:    "p99 latency spike on public API",
		Severity: domain.SeverityHigh,
		steps: map[domain.Phase]step{
			domain.PhaseDetection:  {delay: 600 * time.Millisecond, confidence: 0.95, details: map[string]any{"signal": "p99_over_slo", "endpoint": "/v1/orders"}},
			domain.PhaseDiagnosis:  {delay: 1100 * time.Millisecond, confidence: 0.88, details: map[string]any{"root_cause": "cache_stampede"}},
			domain.PhasePrediction: {delay: 900 * time.Millisecond, confidence: 0.81, details: map[string]any{"eta_minutes": 5}},
			domain.PhaseResolution: {delay: 1400 * time.Millisecond, confidence: 0.9, details: map[string]any{"action": "enable_request_coalescing"}},
		},
	},
	"memory_leak": {
		Name:     "memory_leak",
		Title:    "Gradual memory growth in payment workers",
		Severity: domain.SeverityMedium,
		steps: map[domain.Phase]step{
			domain.PhaseDetection:  {delay: 700 * time.Millisecond, confidence: 0.9, details: map[string]any{"signal": "rss_trend", "service": "payment-worker"}},
			domain.PhaseDiagnosis:  {delay: 1600 * time.Millisecond, confidence: 0.77, details: map[string]any{"root_cause": "unbounded_retry_buffer"}},
			domain.PhasePrediction: {delay: 1000 * time.Millisecond, confidence: 0.8, details: map[string]any{"oom_eta_minutes": 45}},
			domain.PhaseResolution: {delay: 1300 * time.Millisecond, confidence: 0.87, details: map[string]any{"action": "rolling_restart", "followup": "fix_retry_buffer"}},
		},
	},
}

// Names lists available scenarios, sorted.
func Names() []string {
	names := make([]string, 0, len(library))
	for name := range library {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named scenario.
func Lookup(name string) (Scenario, bool) {
	s, ok := library[name]
	return s, ok
}

// Default returns the scenario used when a trigger names none.
func Default() Scenario {
	return library["database_outage"]
}

// NewIncident constructs a fresh incident for one playthrough.
func (s Scenario) NewIncident(clock clockwork.Clock) domain.Incident {
	return domain.Incident{
		ID:        uuid.NewString(),
		Title:     s.Title,
		Severity:  s.Severity,
		CreatedAt: clock.Now(),
		Annotations: map[string]any{
			"scenario": s.Name,
			"source":   "demo_trigger",
		},
	}
}

// Callbacks builds the per-phase callback set. Each callback waits its
// scripted duration (honoring ctx) and returns a canned result.
func (s Scenario) Callbacks(clock clockwork.Clock) domain.Callbacks {
	callbacks := make(domain.Callbacks, len(s.steps))
	for phase, st := range s.steps {
		st := st
		callbacks[phase] = func(ctx context.Context, _ domain.Incident) (domain.PhaseResult, error) {
			select {
			case <-clock.After(st.delay):
			case <-ctx.Done():
				return domain.PhaseResult{}, ctx.Err()
			}
			confidence := st.confidence
			return domain.PhaseResult{
				Confidence: &confidence,
				Details:    st.details,
			}, nil
		}
	}
	return callbacks
}
