package websocket

import "time"

// Message types for WebSocket communication
const (
	MessageTypeRunStarted  = "run_started"
	MessageTypeProgress    = "progress"
	MessageTypeRunComplete = "run_complete"
	MessageTypeRunError    = "run_error"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeHeartbeat   = "heartbeat"
	MessageTypeError       = "error"
)

// ClientMessage represents a message from client to server.
type ClientMessage struct {
	Type  string `json:"type"`
	JobID string `json:"job_id,omitempty"`
}

// ServerMessage represents a message from server to client.
type ServerMessage struct {
	Type      string      `json:"type"`
	JobID     string      `json:"job_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Progress is the payload of a progress message.
type Progress struct {
	Season  string `json:"season"`
	Range   string `json:"range"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// RunOutcome is the payload of run_complete and run_error messages.
type RunOutcome struct {
	Season   string         `json:"season"`
	Status   string         `json:"status,omitempty"`
	Accepted int            `json:"accepted"`
	Inserted int            `json:"inserted"`
	Skipped  int            `json:"skipped"`
	Dropped  map[string]int `json:"dropped,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// ErrorMessage is sent when a client message cannot be handled.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
