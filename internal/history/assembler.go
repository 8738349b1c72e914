// Package history assembles the ordered message payload for each LLM call:
// system prompt, a turn-complete history window, tool-call/tool-result
// pairing, and the active tool definitions.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/agentcore-dev/agentcore/go/internal/llm"
	"github.com/agentcore-dev/agentcore/go/internal/models"
	"github.com/agentcore-dev/agentcore/go/internal/store"
	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

// Assembler builds LLM requests from persisted history
type Assembler struct {
	messages store.MessageStore
	window   int
	log      logr.Logger
}

// NewAssembler creates an Assembler. window is the history window size in
// messages; zero means the full session history.
func NewAssembler(messages store.MessageStore, window int, log logr.Logger) *Assembler {
	return &Assembler{
		messages: messages,
		window:   window,
		log:      log.WithName("history"),
	}
}

// Assemble produces the complete prompt for one LLM call
func (a *Assembler) Assemble(ctx context.Context, agent *models.AgentDefinition, sessionID string, record models.RecordContext, summary string) (llm.Request, error) {
	all, err := a.messages.ListMessages(ctx, sessionID, 0, time.Time{})
	if err != nil {
		return llm.Request{}, apperrors.New(apperrors.ErrCodeStorage, "failed to load history", err)
	}

	windowed := TurnCompleteWindow(all, a.window)
	if len(windowed) < len(all) {
		a.log.V(1).Info("history window applied",
			"sessionID", sessionID, "total", len(all), "window", len(windowed))
	}

	// follow-up cycles carry no record context of their own; fall back to
	// the most recent one recorded in history
	if record.RecordID == "" && len(record.Data) == 0 {
		for i := len(windowed) - 1; i >= 0; i-- {
			if windowed[i].ContextRecordID != "" || len(windowed[i].ContextRecordData) > 0 {
				record = models.RecordContext{
					RecordID: windowed[i].ContextRecordID,
					Data:     windowed[i].ContextRecordData,
				}
				break
			}
		}
	}

	prompt := []llm.PromptMessage{{
		Role:    models.RoleSystem,
		Content: buildSystemPrompt(agent, record, summary),
	}}

	paired, err := PairMessages(windowed)
	if err != nil {
		return llm.Request{}, err
	}
	prompt = append(prompt, paired...)

	tools, err := BuildToolDefinitions(agent.Capabilities)
	if err != nil {
		return llm.Request{}, err
	}

	return llm.Request{Messages: prompt, Tools: tools}, nil
}

func buildSystemPrompt(agent *models.AgentDefinition, record models.RecordContext, summary string) string {
	prompt := agent.Instructions
	if record.RecordID != "" || len(record.Data) > 0 {
		prompt += "\n\n## Current record context\n"
		if record.RecordID != "" {
			prompt += fmt.Sprintf("Record ID: %s\n", record.RecordID)
		}
		if len(record.Data) > 0 {
			prompt += string(record.Data) + "\n"
		}
	}
	if summary != "" {
		prompt += "\n\n## Conversation summary\n" + summary
	}
	return prompt
}

// TurnCompleteWindow returns the newest messages up to limit, extended
// backward so the window never starts inside a turn. A window that cut a
// turn in half could surface an assistant tool call without its result,
// which providers reject.
func TurnCompleteWindow(messages []models.Message, limit int) []models.Message {
	if limit <= 0 || len(messages) <= limit {
		return messages
	}
	start := len(messages) - limit
	for start > 0 && messages[start].TurnID != "" && messages[start-1].TurnID == messages[start].TurnID {
		start--
	}
	return messages[start:]
}

// PairMessages converts stored messages into the provider payload order:
// each assistant message with tool calls is followed immediately by its
// tool-result messages in the order the assistant requested them. A call
// with no stored result belongs to a turn that was terminated before the
// action resolved (forced failure, rejected confirmation string, lost
// async job); it gets a synthesized cancelled result so the session stays
// usable. Orphaned tool results remain data-consistency errors.
func PairMessages(messages []models.Message) ([]llm.PromptMessage, error) {
	resultsByCallID := make(map[string]models.Message)
	for _, msg := range messages {
		if msg.Role == models.RoleTool && msg.ToolCallID != "" {
			resultsByCallID[msg.ToolCallID] = msg
		}
	}

	consumed := make(map[string]bool)
	out := make([]llm.PromptMessage, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleUser:
			out = append(out, llm.PromptMessage{Role: models.RoleUser, Content: msg.Content})

		case models.RoleAssistant:
			out = append(out, llm.PromptMessage{
				Role:      models.RoleAssistant,
				Content:   msg.Content,
				ToolCalls: msg.ToolCalls,
			})
			for _, call := range msg.ToolCalls {
				result, ok := resultsByCallID[call.ID]
				if !ok {
					content, err := cancelledResult(call.Name)
					if err != nil {
						return nil, err
					}
					out = append(out, llm.PromptMessage{
						Role:       models.RoleTool,
						Content:    content,
						ToolCallID: call.ID,
					})
					continue
				}
				out = append(out, llm.PromptMessage{
					Role:       models.RoleTool,
					Content:    result.Content,
					ToolCallID: call.ID,
				})
				consumed[call.ID] = true
			}

		case models.RoleTool:
			if !consumed[msg.ToolCallID] {
				return nil, apperrors.New(apperrors.ErrCodeStorage,
					fmt.Sprintf("tool result %s references tool call %s that no assistant message requested", msg.ID, msg.ToolCallID), nil)
			}

		case models.RoleSystem:
			// the system prompt is rebuilt per call, stored system rows are
			// not replayed
		}
	}

	return out, nil
}

// cancelledResult builds the tool payload standing in for a result the dead
// turn never recorded.
func cancelledResult(capabilityName string) (string, error) {
	payload := models.ToolPayload{
		Success:        false,
		CapabilityName: capabilityName,
		ErrorCode:      apperrors.ErrCodeActionCancelled,
		ErrorMessage:   "the action was cancelled before a result was recorded",
	}
	content, err := payload.Encode()
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeStorage, "failed to encode cancelled tool result", err)
	}
	return content, nil
}
