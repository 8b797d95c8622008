package protocol

import (
	"encoding/json"
	"time"
)

// MessageType enumerates all control-plane message types.
type MessageType string

const (
	// Agent -> UI
	MsgRegister       MessageType = "register"
	MsgHeartbeat      MessageType = "heartbeat"
	MsgLog            MessageType = "log"
	MsgStatus         MessageType = "status"
	MsgEvent          MessageType = "event"
	MsgLogEnd         MessageType = "log_end"
	MsgSessionStarted MessageType = "session_started"
	MsgAck            MessageType = "ack"

	// UI -> Agent
	MsgStartSession    MessageType = "start_session"
	MsgAudioSubmission MessageType = "audio_submission"
	MsgEndSession      MessageType = "end_session"
	MsgShutdown        MessageType = "shutdown"
)

// Envelope is the outer JSON wrapper for all WebSocket messages.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Agent -> UI payloads ---

// RegisterPayload is sent once by the agent immediately after connecting.
type RegisterPayload struct {
	AgentID      string            `json:"agent_id"`
	Version      string            `json:"version,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// HeartbeatPayload is sent periodically to keep the connection alive.
type HeartbeatPayload struct {
	AgentID        string    `json:"agent_id"`
	Timestamp      time.Time `json:"timestamp"`
	ActiveSessions int       `json:"active_sessions"`
	Status         string    `json:"status"` // "idle", "running"
}

// LogPayload carries a single log entry from a session.
type LogPayload struct {
	AgentID   string   `json:"agent_id"`
	SessionID string   `json:"session_id"`
	Entry     LogEntry `json:"entry"`
}

// LogEntry is a structured log line.
type LogEntry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Attrs     map[string]interface{} `json:"attrs,omitempty"`
}

// StatusPayload carries agent-level status with active sessions.
type StatusPayload struct {
	AgentID  string        `json:"agent_id"`
	Status   string        `json:"status"` // "idle", "running", "draining"
	Sessions []SessionInfo `json:"sessions"`
}

// SessionInfo describes a single active or completed session.
type SessionInfo struct {
	SessionID string `json:"session_id"`
	Email     string `json:"email,omitempty"`
	StartedAt string `json:"started_at"`
	Status    string `json:"status"` // "active", "completed"
}

// EventPayload carries a session event (notice, transcript, state).
type EventPayload struct {
	AgentID   string          `json:"agent_id"`
	SessionID string          `json:"session_id,omitempty"`
	EventID   string          `json:"event_id"`
	Uid       string          `json:"uid,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// LogEndPayload signals that a session's log stream has ended.
type LogEndPayload struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
}

// SessionStartedPayload answers start_session. Ready is false when the
// session could not load, e.g. the email was missing.
type SessionStartedPayload struct {
	SessionID string `json:"session_id"`
	Ready     bool   `json:"ready"`
	Error     string `json:"error,omitempty"`
}

// AckPayload acknowledges a request that has no richer answer.
type AckPayload struct {
	AckedType MessageType `json:"acked_type"`
	SessionID string      `json:"session_id,omitempty"`
	OK        bool        `json:"ok"`
	Error     string      `json:"error,omitempty"`
}

// --- UI -> Agent payloads ---

// StartSessionPayload opens a session. SessionID is optional; the agent
// generates one when it is empty.
type StartSessionPayload struct {
	SessionID string `json:"session_id,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// AudioSubmissionPayload carries one complete recording, base64 in JSON.
type AudioSubmissionPayload struct {
	SessionID string `json:"session_id"`
	Audio     []byte `json:"audio"`
}

// EndSessionPayload closes a session.
type EndSessionPayload struct {
	SessionID string `json:"session_id"`
}

// ShutdownPayload requests the agent to shut down gracefully.
type ShutdownPayload struct {
	Reason       string `json:"reason,omitempty"`
	GraceSeconds int    `json:"grace_seconds,omitempty"`
}
