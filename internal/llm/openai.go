package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"

	"github.com/agentcore-dev/agentcore/go/internal/models"
	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAICompatibleClient speaks the OpenAI chat-completions wire format,
// which most hosted and self-hosted providers accept. Provider failures are
// classified onto ProviderResult so the orchestration loop sees one failure
// shape regardless of transport detail.
type OpenAICompatibleClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	log        logr.Logger
}

// NewOpenAICompatibleClient creates a client. endpoint may be empty for the
// hosted default.
func NewOpenAICompatibleClient(endpoint, apiKey, model string, log logr.Logger) *OpenAICompatibleClient {
	if endpoint == "" {
		endpoint = defaultOpenAIBaseURL
	}
	return &OpenAICompatibleClient{
		baseURL:    endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		log:        log.WithName("llm"),
	}
}

func (c *OpenAICompatibleClient) ModelName() string { return c.model }

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Parameters  map[string]any `json:"parameters,omitempty"`
	} `json:"function"`
}

type wireResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, request Request) (*models.ProviderResult, error) {
	model := request.Model
	if model == "" {
		model = c.model
	}

	payload := wireRequest{
		Model:       model,
		Messages:    toWireMessages(request.Messages),
		MaxTokens:   request.MaxTokens,
		Temperature: request.Temperature,
	}
	for _, tool := range request.Tools {
		wt := wireTool{Type: "function"}
		wt.Function.Name = tool.Name
		wt.Function.Description = tool.Description
		wt.Function.Parameters = tool.Parameters
		payload.Tools = append(payload.Tools, wt)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion request: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to build completion request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return failedResult(fmt.Sprintf("provider request failed: %v", err)), nil
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return failedResult(fmt.Sprintf("failed to read provider response: %v", err)), nil
	}

	var response wireResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return failedResult(fmt.Sprintf("unparseable provider response (status %d)", httpResponse.StatusCode)), nil
	}
	if httpResponse.StatusCode >= 300 || response.Error != nil {
		message := fmt.Sprintf("provider returned status %d", httpResponse.StatusCode)
		if response.Error != nil {
			message = response.Error.Message
		}
		c.log.Info("provider call failed", "status", httpResponse.StatusCode, "model", model)
		return failedResult(message), nil
	}
	if len(response.Choices) == 0 {
		return failedResult("provider returned no choices"), nil
	}

	choice := response.Choices[0]
	result := &models.ProviderResult{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		ModelUsed:    response.Model,
		TokenUsage: models.TokenUsage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
		},
	}
	for _, call := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, models.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}
	return result, nil
}

func toWireMessages(messages []PromptMessage) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, message := range messages {
		wm := wireMessage{
			Role:       string(message.Role),
			Content:    message.Content,
			ToolCallID: message.ToolCallID,
		}
		for _, call := range message.ToolCalls {
			wc := wireToolCall{ID: call.ID, Type: "function"}
			wc.Function.Name = call.Name
			wc.Function.Arguments = string(call.Arguments)
			wm.ToolCalls = append(wm.ToolCalls, wc)
		}
		out = append(out, wm)
	}
	return out
}

func failedResult(detail string) *models.ProviderResult {
	return &models.ProviderResult{
		Failed:       true,
		FailureCode:  apperrors.ErrCodeLLMCallFailed,
		FailureError: detail,
	}
}
