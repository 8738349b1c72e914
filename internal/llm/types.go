// Package llm defines the boundary to the LLM provider adapter. The
// concrete HTTP adapters, retry, and backoff live outside this module;
// the orchestration core depends only on the Client contract.
package llm

import (
	"context"

	"github.com/agentcore-dev/agentcore/go/internal/models"
)

// PromptMessage is one entry of the assembled LLM input
type PromptMessage struct {
	Role       models.Role       `json:"role"`
	Content    string            `json:"content,omitempty"`
	ToolCalls  []models.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
}

// ToolDefinition describes one callable tool in provider-neutral form
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON schema
}

// Request is one LLM call
type Request struct {
	Messages    []PromptMessage  `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Model       string           `json:"model,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
}

// Client is the interface the orchestration loop calls. A provider failure
// is reported through ProviderResult.Failed rather than the error return,
// which is reserved for transport-level breakage the adapter could not
// classify.
type Client interface {
	Complete(ctx context.Context, request Request) (*models.ProviderResult, error)
	ModelName() string
}
