// Package api holds the wire types of the orchestrator's REST surface,
// shared by the server and the CLI client.
package api

import (
	"encoding/json"
	"time"
)

// CreateSessionRequest starts a new conversation
type CreateSessionRequest struct {
	UserID    string `json:"user_id"`
	AgentName string `json:"agent_name,omitempty"`
	RecordID  string `json:"record_id,omitempty"`
}

// CreateSessionResponse returns the new session and the agent's greeting
type CreateSessionResponse struct {
	SessionID      string `json:"session_id"`
	AgentName      string `json:"agent_name"`
	WelcomeMessage string `json:"welcome_message,omitempty"`
}

// SendMessageRequest carries one user message into a session
type SendMessageRequest struct {
	Text       string          `json:"text"`
	ExternalID string          `json:"external_id,omitempty"`
	RecordID   string          `json:"record_id,omitempty"`
	RecordData json.RawMessage `json:"record_data,omitempty"`
}

// SendMessageResponse reports the turn outcome of a sent message
type SendMessageResponse struct {
	Outcome     string       `json:"outcome"`
	SessionID   string       `json:"session_id"`
	Message     *MessageView `json:"message,omitempty"`
	ErrorCode   string       `json:"error_code,omitempty"`
	ErrorDetail string       `json:"error_detail,omitempty"`
}

// MessageView is the UI projection of a stored message
type MessageView struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	TurnID    string    `json:"turn_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse lists a session's UI-visible messages in order
type HistoryResponse struct {
	SessionID string        `json:"session_id"`
	Messages  []MessageView `json:"messages"`
}

// SessionView is the UI projection of a session. TaskState is the A2A
// protocol state derived from the processing status.
type SessionView struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	AgentName       string    `json:"agent_name"`
	Status          string    `json:"status"`
	TaskState       string    `json:"task_state"`
	StepDescription string    `json:"step_description,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// SessionListResponse lists sessions, most recently active first
type SessionListResponse struct {
	Sessions []SessionView `json:"sessions"`
}

// ApprovalDecisionRequest records a human decision on a pending approval
type ApprovalDecisionRequest struct {
	Approved  bool   `json:"approved"`
	DecidedBy string `json:"decided_by"`
}

// ApprovalDecisionResponse reports the turn outcome after the decision
type ApprovalDecisionResponse struct {
	Outcome     string `json:"outcome"`
	ErrorCode   string `json:"error_code,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

// FailTurnRequest forces a session out of an in-flight turn
type FailTurnRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ErrorResponse is the error envelope for non-2xx replies
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
