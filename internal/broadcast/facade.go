package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/rish2jain/Incident-Commander-sub002/internal/domain"
)

// Enqueuer accepts constructed messages; implemented by the Scheduler and
// by the optional cross-instance relay.
type Enqueuer interface {
	Enqueue(msg domain.Message)
}

// Facade is the typed entry point producers use to emit dashboard events.
// It constructs immutable messages with the right type tag and priority and
// forwards them to every sink. Calls never block and never fail: delivery
// problems are absorbed downstream.
type Facade struct {
	clock clockwork.Clock
	sinks []Enqueuer
}

var _ domain.EventPublisher = (*Facade)(nil)

// NewFacade creates a facade publishing into the given sinks. The first
// sink is normally the local scheduler; an optional relay sink mirrors
// events to other instances.
func NewFacade(clock clockwork.Clock, sinks ...Enqueuer) *Facade {
	return &Facade{clock: clock, sinks: sinks}
}

// AgentStateChanged emits an agent_update. Error states are prioritized
// above routine progress.
func (f *Facade) AgentStateChanged(ctx context.Context, update domain.AgentUpdate) {
	priority := domain.PriorityNormal
	if update.State == domain.AgentStateError {
		priority = domain.PriorityElevated
	}
	f.publish(ctx, domain.MessageTypeAgentUpdate, priority, update)
}

// IncidentPhaseChanged emits an incident_flow update.
func (f *Facade) IncidentPhaseChanged(ctx context.Context, flow domain.IncidentFlow) {
	f.publish(ctx, domain.MessageTypeIncidentFlow, domain.PriorityElevated, flow)
}

// SystemHealthSnapshot emits a system_health snapshot.
func (f *Facade) SystemHealthSnapshot(ctx context.Context, health domain.SystemHealth) {
	f.publish(ctx, domain.MessageTypeSystemHealth, domain.PriorityNormal, health)
}

// ErrorRaised emits an error_notification. High and critical severities get
// the top priority.
func (f *Facade) ErrorRaised(ctx context.Context, errorType, message string, severity domain.Severity, errCtx map[string]any) {
	priority := domain.PriorityElevated
	if severity == domain.SeverityHigh || severity == domain.SeverityCritical {
		priority = domain.PriorityCritical
	}
	f.publish(ctx, domain.MessageTypeErrorNotification, priority, domain.ErrorNotification{
		ErrorType: errorType,
		Message:   message,
		Severity:  severity,
		Context:   errCtx,
	})
}

// SceneChanged forwards an opaque 3d_scene_update payload. The scene math
// lives outside this service; the payload passes through untouched.
func (f *Facade) SceneChanged(ctx context.Context, raw json.RawMessage) {
	f.publish(ctx, domain.MessageTypeSceneUpdate, domain.PriorityNormal, domain.RawPayload(raw))
}

func (f *Facade) publish(ctx context.Context, msgType domain.MessageType, priority int, payload domain.Payload) {
	msg := domain.Message{
		Type:      msgType,
		Priority:  priority,
		Timestamp: f.clock.Now(),
		Payload:   payload,
	}
	for _, sink := range f.sinks {
		sink.Enqueue(msg)
	}
	slog.DebugContext(ctx, "Event published", "type", msgType, "priority", priority)
}
