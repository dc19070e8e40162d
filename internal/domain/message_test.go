package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageEncode_EnvelopeShape(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	msg := Message{
		Type:      MessageTypeAgentUpdate,
		Priority:  PriorityElevated,
		Timestamp: ts,
		Payload: AgentUpdate{
			IncidentID: "inc-1",
			AgentName:  "detection_agent",
			AgentType:  "monitor",
			State:      AgentStateProcessing,
			Phase:      PhaseDetection,
			Progress:   0.5,
		},
	}

	frame, err := msg.Encode()
	require.NoError(t, err)

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.JSONEq(t, `"agent_update"`, string(env["type"]))
	assert.JSONEq(t, `2`, string(env["priority"]))
	assert.Contains(t, string(env["data"]), `"incident_id":"inc-1"`)

	// Optional fields stay off the wire when unset.
	assert.NotContains(t, string(env["data"]), "confidence")
	assert.NotContains(t, string(env["data"]), "duration_ms")
}

func TestMessageEncode_RawPayloadPassthrough(t *testing.T) {
	raw := json.RawMessage(`{"camera":{"x":1,"y":2,"z":3}}`)
	msg := Message{
		Type:      MessageTypeSceneUpdate,
		Priority:  PriorityNormal,
		Timestamp: time.Now().UTC(),
		Payload:   RawPayload(raw),
	}

	frame, err := msg.Encode()
	require.NoError(t, err)

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.JSONEq(t, string(raw), string(env.Data))
}

func TestDecodeMessage_Roundtrip(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	original := Message{
		Type:      MessageTypeErrorNotification,
		Priority:  PriorityCritical,
		Timestamp: ts,
		Payload: ErrorNotification{
			ErrorType: "phase_failure",
			Message:   "diagnosis failed",
			Severity:  SeverityHigh,
		},
	}

	frame, err := original.Encode()
	require.NoError(t, err)

	decoded, err := DecodeMessage(frame)
	require.NoError(t, err)
	assert.Equal(t, original.Type, decoded.Type)
	assert.Equal(t, original.Priority, decoded.Priority)
	assert.True(t, ts.Equal(decoded.Timestamp))

	// Decoded payloads stay opaque.
	raw, ok := decoded.Payload.(RawPayload)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"error_type":"phase_failure"`)
}

func TestDecodeMessage_UnknownTypePreserved(t *testing.T) {
	decoded, err := DecodeMessage([]byte(`{"type":"future_thing","timestamp":"2026-08-30T12:00:00Z","priority":1,"data":{"k":"v"}}`))
	require.NoError(t, err)
	assert.Equal(t, MessageType("future_thing"), decoded.Type)
}

func TestDecodeMessage_MalformedInput(t *testing.T) {
	_, err := DecodeMessage([]byte(`{not json`))
	assert.Error(t, err)
}
