package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType tags the kind of payload an outbound message carries.
type MessageType string

const (
	MessageTypeAgentUpdate       MessageType = "agent_update"
	MessageTypeIncidentFlow      MessageType = "incident_flow"
	MessageTypeSystemHealth      MessageType = "system_health"
	MessageTypeErrorNotification MessageType = "error_notification"
	MessageTypeSceneUpdate       MessageType = "3d_scene_update"
	MessageTypeInitialState      MessageType = "initial_state"
)

// Message priorities. Higher is more urgent; used for batch ordering only,
// never preemption.
const (
	PriorityNormal   = 1
	PriorityElevated = 2
	PriorityCritical = 3
)

// Payload is the tagged-union side of a Message. Each known message type
// carries a dedicated struct; RawPayload covers everything else.
type Payload interface{ isPayload() }

// Message is one immutable unit of outbound information. Producers create
// it through the broadcast facade; it has no owner after creation.
type Message struct {
	Type      MessageType
	Priority  int
	Timestamp time.Time
	Payload   Payload
}

// envelope is the wire shape clients receive.
type envelope struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Priority  int             `json:"priority"`
	Data      json.RawMessage `json:"data"`
}

// Encode serializes the message into its client-facing JSON envelope.
func (m Message) Encode() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if raw, ok := m.Payload.(RawPayload); ok {
		data = raw
	} else {
		data, err = json.Marshal(m.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", m.Type, err)
		}
	}

	out, err := json.Marshal(envelope{
		Type:      m.Type,
		Timestamp: m.Timestamp,
		Priority:  m.Priority,
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", m.Type, err)
	}
	return out, nil
}

// DecodeMessage parses a JSON envelope back into a Message. The payload is
// kept opaque (RawPayload): decoding happens at system boundaries (the
// cross-instance relay) where the typed structs are not needed.
func DecodeMessage(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("failed to unmarshal message envelope: %w", err)
	}
	return Message{
		Type:      env.Type,
		Priority:  env.Priority,
		Timestamp: env.Timestamp,
		Payload:   RawPayload(env.Data),
	}, nil
}

// AgentUpdate reports one agent's state transition during a phase.
type AgentUpdate struct {
	IncidentID string     `json:"incident_id"`
	AgentName  string     `json:"agent_name"`
	AgentType  string     `json:"agent_type"`
	State      AgentState `json:"state"`
	Phase      Phase      `json:"phase"`
	Progress   float64    `json:"progress"`
	Confidence *float64   `json:"confidence,omitempty"`
	DurationMs *int64     `json:"duration_ms,omitempty"`
}

func (AgentUpdate) isPayload() {}

// IncidentFlow reports incident-level progress after a phase completes.
type IncidentFlow struct {
	IncidentID      string   `json:"incident_id"`
	Phase           Phase    `json:"phase"`
	CompletedPhases []Phase  `json:"completed_phases"`
	ActiveAgents    []string `json:"active_agents"`
	OverallProgress float64  `json:"overall_progress"`
	PhaseProgress   float64  `json:"phase_progress"`
}

func (IncidentFlow) isPayload() {}

// SystemHealth is a point-in-time snapshot of orchestrator load.
type SystemHealth struct {
	ActiveIncidents    int                `json:"active_incidents"`
	AgentsAvailable    int                `json:"agents_available"`
	ProcessingCapacity float64            `json:"processing_capacity"`
	AvgPhaseSeconds    map[Phase]float64  `json:"avg_phase_seconds"`
	Connections        ConnectionSnapshot `json:"connections"`
}

func (SystemHealth) isPayload() {}

// ConnectionSnapshot carries registry-level counters inside a health snapshot.
type ConnectionSnapshot struct {
	Active        int     `json:"active"`
	TotalAccepted int64   `json:"total_accepted"`
	MessagesSent  int64   `json:"messages_sent"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ErrorNotification is the client-visible form of a processing failure.
type ErrorNotification struct {
	ErrorType string         `json:"error_type"`
	Message   string         `json:"message"`
	Severity  Severity       `json:"severity"`
	Context   map[string]any `json:"context,omitempty"`
}

func (ErrorNotification) isPayload() {}

// RawPayload is the opaque fallback variant: pre-serialized JSON forwarded
// without interpretation (scene updates, relayed messages).
type RawPayload json.RawMessage

func (RawPayload) isPayload() {}
