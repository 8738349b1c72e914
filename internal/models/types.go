package models

import (
	"encoding/json"
	"time"
)

// ProcessingStatus represents the session's turn processing state
type ProcessingStatus string

const (
	StatusIdle                     ProcessingStatus = "idle"
	StatusProcessing               ProcessingStatus = "processing"
	StatusAwaitingFollowup         ProcessingStatus = "awaiting_followup"
	StatusAwaitingAction           ProcessingStatus = "awaiting_action"
	StatusAwaitingUserConfirmation ProcessingStatus = "awaiting_user_confirmation"
	StatusFailed                   ProcessingStatus = "failed"
)

// IsTerminal reports whether the status accepts a new user message
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusIdle || s == StatusFailed
}

// Session represents one conversation owned by a user and bound to an agent
type Session struct {
	ID                     string           `json:"id"`
	UserID                 string           `json:"user_id"`
	AgentName              string           `json:"agent_name"`
	Status                 ProcessingStatus `json:"status"`
	CurrentTurnID          string           `json:"current_turn_id,omitempty"`
	CurrentJobID           string           `json:"current_job_id,omitempty"`
	CurrentStepDescription string           `json:"current_step_description,omitempty"`
	LastError              string           `json:"last_error,omitempty"`
	LastActivityAt         time.Time        `json:"last_activity_at"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

// Role identifies the author of a chat-history message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall represents a single tool invocation requested by the assistant
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message represents one chat-history entry
type Message struct {
	ID                  string          `json:"id"`
	SessionID           string          `json:"session_id"`
	TurnID              string          `json:"turn_id"`
	Role                Role            `json:"role"`
	Content             string          `json:"content,omitempty"`
	ToolCalls           []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID          string          `json:"tool_call_id,omitempty"`
	ParentMessageID     string          `json:"parent_message_id,omitempty"`
	PendingConfirmation json.RawMessage `json:"pending_confirmation,omitempty"`
	CapabilityName      string          `json:"capability_name,omitempty"`
	Success             *bool           `json:"success,omitempty"`
	ContextRecordID     string          `json:"context_record_id,omitempty"`
	ContextRecordData   json.RawMessage `json:"context_record_data,omitempty"`
	ExternalID          string          `json:"external_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// HasToolCalls reports whether the assistant message requested tool work
func (m *Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// PrerequisiteScope controls where prerequisite successes are searched
type PrerequisiteScope string

const (
	ScopeTurn    PrerequisiteScope = "turn"
	ScopeSession PrerequisiteScope = "session"
)

// Capability is the configuration of a named tool the LLM may invoke
type Capability struct {
	Name                   string            `json:"name"`
	DisplayName            string            `json:"display_name,omitempty"`
	Description            string            `json:"description"`
	ImplementationKey      string            `json:"implementation_key"`
	Parameters             json.RawMessage   `json:"parameters"` // JSON schema
	RequiresApproval       bool              `json:"requires_approval"`
	ConfirmationParameter  string            `json:"confirmation_parameter,omitempty"`
	RunAsynchronously      bool              `json:"run_asynchronously"`
	ExecutionPrerequisites []string          `json:"execution_prerequisites,omitempty"`
	PrerequisiteScope      PrerequisiteScope `json:"prerequisite_scope,omitempty"`
	HaltOnError            bool              `json:"halt_on_error"`
	Active                 bool              `json:"active"`
	Config                 json.RawMessage   `json:"config,omitempty"`
}

// AgentDefinition binds a named agent to its instructions and capabilities
type AgentDefinition struct {
	Name           string       `json:"name"`
	DisplayName    string       `json:"display_name,omitempty"`
	Instructions   string       `json:"instructions"`
	WelcomeMessage string       `json:"welcome_message,omitempty"`
	Capabilities   []Capability `json:"capabilities"`
}

// ApprovalStatus represents the state of a human approval request
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalError    ApprovalStatus = "error"
)

// ApprovalRequest records a tool call awaiting human sign-off
type ApprovalRequest struct {
	ID                 string          `json:"id"`
	SessionID          string          `json:"session_id"`
	TurnID             string          `json:"turn_id"`
	Cycle              int             `json:"cycle"`
	AssistantMessageID string          `json:"assistant_message_id"`
	ToolCallID         string          `json:"tool_call_id"`
	CapabilityName     string          `json:"capability_name"`
	Arguments          json.RawMessage `json:"arguments"`
	Justification      string          `json:"justification"`
	Status             ApprovalStatus  `json:"status"`
	DecidedBy          string          `json:"decided_by,omitempty"`
	DecidedAt          *time.Time      `json:"decided_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// ActionResult is the structured outcome of executing a capability.
// It is never persisted directly; its serialized form becomes a tool
// message's content.
type ActionResult struct {
	Success         bool            `json:"success"`
	Output          json.RawMessage `json:"output,omitempty"`
	ErrorCode       string          `json:"error_code,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	InternalDetails string          `json:"-"`
	ContextRecordID string          `json:"context_record_id,omitempty"`
	Duration        time.Duration   `json:"-"`
}

// ToolPayload is the wire form of an ActionResult stored in a tool message
type ToolPayload struct {
	Success        bool            `json:"success"`
	CapabilityName string          `json:"capability_name"`
	Output         json.RawMessage `json:"output,omitempty"`
	ErrorCode      string          `json:"error_code,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	DurationMillis int64           `json:"duration_ms,omitempty"`
}

// TokenUsage tracks token consumption across a turn's cycles
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates token usage
func (t *TokenUsage) Add(other TokenUsage) {
	t.PromptTokens += other.PromptTokens
	t.CompletionTokens += other.CompletionTokens
	t.TotalTokens += other.TotalTokens
}

// ProviderResult is what the LLM adapter returns for one call
type ProviderResult struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"`
	TokenUsage   TokenUsage `json:"token_usage"`
	ModelUsed    string     `json:"model_used,omitempty"`
	Failed       bool       `json:"failed,omitempty"`
	FailureCode  string     `json:"failure_code,omitempty"`
	FailureError string     `json:"failure_error,omitempty"`
}

// RecordContext carries the page/record the user is looking at
type RecordContext struct {
	RecordID string          `json:"record_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// CompletionEvent is the fire-and-forget notification published once per
// terminal transition
type CompletionEvent struct {
	SessionID      string     `json:"session_id"`
	TurnID         string     `json:"turn_id"`
	Success        bool       `json:"success"`
	FinalMessageID string     `json:"final_message_id,omitempty"`
	ErrorCode      string     `json:"error_code,omitempty"`
	ErrorDetail    string     `json:"error_detail,omitempty"`
	TokenUsage     TokenUsage `json:"token_usage"`
	Timestamp      time.Time  `json:"timestamp"`
}
