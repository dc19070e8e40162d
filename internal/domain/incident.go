package domain

import (
	"context"
	"time"
)

// Phase is one discrete stage of incident processing.
type Phase string

const (
	PhaseDetection    Phase = "detection"
	PhaseDiagnosis    Phase = "diagnosis"
	PhasePrediction   Phase = "prediction"
	PhaseResolution   Phase = "resolution"
	PhaseVerification Phase = "verification"
	PhaseComplete     Phase = "complete"
)

// CorePhases is the fixed, required execution order. Verification is
// appended only when the caller supplies a callback for it.
func CorePhases() []Phase {
	return []Phase{PhaseDetection, PhaseDiagnosis, PhasePrediction, PhaseResolution}
}

// AgentState tracks one agent's execution of one phase.
type AgentState string

const (
	AgentStateInitializing AgentState = "initializing"
	AgentStateProcessing   AgentState = "processing"
	AgentStateCompleted    AgentState = "completed"
	AgentStateError        AgentState = "error"
	AgentStateTimeout      AgentState = "timeout"
)

// Severity classifies incidents and error notifications.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Incident is the unit of work handed to the orchestrator. Its contents
// beyond the ID are opaque to the broadcast core and passed through to
// the phase callbacks.
type Incident struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Severity    Severity       `json:"severity"`
	CreatedAt   time.Time      `json:"created_at"`
	Annotations map[string]any `json:"annotations,omitempty"`
}

// IncidentRun is the orchestrator's in-memory bookkeeping for one incident.
// Owned exclusively by the orchestrator; deleted when processing finishes.
type IncidentRun struct {
	IncidentID      string
	StartedAt       time.Time
	CompletedPhases []Phase
	ActiveAgents    map[string]struct{}
	Progress        float64
}

// PhaseResult is what a phase callback returns on success. The orchestrator
// only passes the optional confidence through to the completed broadcast;
// everything else is opaque demo content.
type PhaseResult struct {
	Confidence *float64
	Details    map[string]any
}

// PhaseCallback is the external "agent" invoked once per phase. The
// orchestrator owns timeout enforcement; callbacks should still honor ctx.
type PhaseCallback func(ctx context.Context, incident Incident) (PhaseResult, error)

// Callbacks maps each phase to its agent callback.
type Callbacks map[Phase]PhaseCallback

// RunSummary is returned by ProcessIncident.
type RunSummary struct {
	IncidentID      string        `json:"incident_id"`
	Status          string        `json:"status"`
	Duration        time.Duration `json:"-"`
	DurationSeconds float64       `json:"duration_seconds"`
	PhasesCompleted int           `json:"phases_completed"`
}

// EventPublisher is the producer-facing surface of the broadcast layer.
// Implementations must never block and never surface delivery failures to
// producers.
type EventPublisher interface {
	AgentStateChanged(ctx context.Context, update AgentUpdate)
	IncidentPhaseChanged(ctx context.Context, flow IncidentFlow)
	SystemHealthSnapshot(ctx context.Context, health SystemHealth)
	ErrorRaised(ctx context.Context, errorType, message string, severity Severity, errCtx map[string]any)
}
