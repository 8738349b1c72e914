// Package orchestrator drives a turn from user message to terminal state:
// it inspects each LLM result, persists messages, gates tool calls on
// prerequisites and human approval, dispatches sync and async work, and
// enforces the cycle limit.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/agentcore-dev/agentcore/go/internal/action"
	"github.com/agentcore-dev/agentcore/go/internal/capability"
	"github.com/agentcore-dev/agentcore/go/internal/models"
	"github.com/agentcore-dev/agentcore/go/internal/store"
	"github.com/agentcore-dev/agentcore/go/internal/turn"
	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

// Outcome is the result of handling one cycle
type Outcome string

const (
	OutcomeCompleted            Outcome = "COMPLETED"
	OutcomeQueuedFollowup       Outcome = "QUEUED_FOLLOWUP"
	OutcomeQueuedAction         Outcome = "QUEUED_ACTION"
	OutcomeAwaitingConfirmation Outcome = "AWAITING_CONFIRMATION"
	OutcomeFailed               Outcome = "FAILED"

	// OutcomeNoOp means the work item was stale (the session moved on to
	// another turn) and was dropped without any state change.
	OutcomeNoOp Outcome = "NO_OP"
)

// CycleInput identifies the unit of work one cycle operates on
type CycleInput struct {
	SessionID      string
	TurnID         string
	Cycle          int
	AgentName      string
	UserID         string
	UserMessage    string
	UserExternalID string
	Record         models.RecordContext
}

// CycleResult is returned to the controller after each cycle
type CycleResult struct {
	Outcome        Outcome           `json:"outcome"`
	FinalMessageID string            `json:"final_message_id,omitempty"`
	ErrorCode      string            `json:"error_code,omitempty"`
	ErrorDetail    string            `json:"error_detail,omitempty"`
	TokenUsage     models.TokenUsage `json:"token_usage"`
}

// FollowUpJob schedules the next LLM call of a turn
type FollowUpJob struct {
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
	Cycle     int    `json:"cycle"`
}

// AsyncActionJob schedules an out-of-band capability execution. The tool
// arguments are deliberately absent: execution re-derives them from the
// persisted assistant message so duplicate deliveries cannot smuggle in
// different arguments.
type AsyncActionJob struct {
	SessionID          string `json:"session_id"`
	TurnID             string `json:"turn_id"`
	Cycle              int    `json:"cycle"`
	AssistantMessageID string `json:"assistant_message_id"`
	ToolCallID         string `json:"tool_call_id"`
	CapabilityName     string `json:"capability_name"`
}

// Dispatcher schedules continuation work on an external queue. Delivery is
// at-least-once; re-entries are guarded by the turn-identifier match.
type Dispatcher interface {
	EnqueueFollowUp(ctx context.Context, job FollowUpJob) (string, error)
	EnqueueAsyncAction(ctx context.Context, job AsyncActionJob) (string, error)
}

// pendingConfirmation is the payload stored on an assistant message while
// its tool call waits for human approval
type pendingConfirmation struct {
	ApprovalID     string          `json:"approval_id"`
	ToolCallID     string          `json:"tool_call_id"`
	CapabilityName string          `json:"capability_name"`
	Arguments      json.RawMessage `json:"arguments,omitempty"`
	Justification  string          `json:"justification,omitempty"`
}

// Core decides, after each LLM response, what the turn does next
type Core struct {
	store      store.Store
	lifecycle  *turn.Lifecycle
	resolver   capability.Resolver
	runner     *action.Runner
	dispatcher Dispatcher
	maxCycles  int
	metrics    *Metrics
	log        logr.Logger
}

// NewCore creates a Core. metrics may be nil.
func NewCore(st store.Store, lifecycle *turn.Lifecycle, resolver capability.Resolver, runner *action.Runner, dispatcher Dispatcher, maxCycles int, metrics *Metrics, log logr.Logger) *Core {
	if maxCycles <= 0 {
		maxCycles = 5
	}
	return &Core{
		store:      st,
		lifecycle:  lifecycle,
		resolver:   resolver,
		runner:     runner,
		dispatcher: dispatcher,
		maxCycles:  maxCycles,
		metrics:    metrics,
		log:        log.WithName("orchestrator"),
	}
}

// HandleProviderResult applies the response-dispatch algorithm to one LLM
// result and returns the turn's next outcome.
func (c *Core) HandleProviderResult(ctx context.Context, input CycleInput, provider *models.ProviderResult) (CycleResult, error) {
	if provider == nil || provider.Failed {
		code := apperrors.ErrCodeLLMCallFailed
		detail := "the language model call failed"
		if provider != nil {
			if provider.FailureCode != "" {
				code = provider.FailureCode
			}
			if provider.FailureError != "" {
				detail = provider.FailureError
			}
		}
		return c.failTurn(ctx, input, code, detail)
	}
	usage := provider.TokenUsage
	c.metrics.ObserveTokens(usage)

	if err := c.persistUserMessage(ctx, input); err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeStorage, err.Error())
	}

	// content-only path
	if len(provider.ToolCalls) == 0 {
		if strings.TrimSpace(provider.Content) == "" {
			return c.failTurn(ctx, input, apperrors.ErrCodeLLMCallFailed,
				"the language model returned neither content nor a tool call")
		}
		assistant, err := c.persistAssistant(ctx, input, provider.Content, nil, nil)
		if err != nil {
			return c.failTurn(ctx, input, apperrors.ErrCodeStorage, err.Error())
		}
		if err := c.lifecycle.CompleteTurn(ctx, input.SessionID, input.TurnID, assistant.ID, usage); err != nil {
			if errors.Is(err, turn.ErrStaleTurn) {
				return CycleResult{Outcome: OutcomeNoOp}, nil
			}
			return CycleResult{}, err
		}
		c.metrics.ObserveOutcome(OutcomeCompleted)
		return CycleResult{Outcome: OutcomeCompleted, FinalMessageID: assistant.ID, TokenUsage: usage}, nil
	}

	// one tool call per cycle; additional simultaneous calls are dropped
	call := provider.ToolCalls[0]
	if len(provider.ToolCalls) > 1 {
		c.log.Info("dropping extra simultaneous tool calls",
			"sessionID", input.SessionID, "kept", call.Name, "dropped", len(provider.ToolCalls)-1)
	}

	capDef, err := c.resolver.Resolve(ctx, input.AgentName, call.Name)
	if err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeConfiguration, err.Error())
	}

	missing, err := c.unmetPrerequisites(ctx, input, capDef)
	if err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeStorage, err.Error())
	}
	if len(missing) > 0 {
		return c.handleMissingPrerequisites(ctx, input, provider.Content, call, capDef, missing, usage)
	}

	if capDef.RequiresApproval {
		return c.handleApprovalGate(ctx, input, provider.Content, call, capDef, usage)
	}

	assistant, err := c.persistAssistant(ctx, input, provider.Content, []models.ToolCall{call}, nil)
	if err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeStorage, err.Error())
	}

	if capDef.RunAsynchronously {
		return c.queueAsyncAction(ctx, input, assistant.ID, call, capDef, usage)
	}

	result, err := c.executeAndRecord(ctx, input, *capDef, call, assistant.ID)
	if err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeStorage, err.Error())
	}
	return c.continueTurn(ctx, input, !result.Success, capDef.HaltOnError, usage)
}

// handleMissingPrerequisites records a synthetic failed tool result naming
// the missing capabilities and queues a follow-up so the model can
// self-correct without failing the turn.
func (c *Core) handleMissingPrerequisites(ctx context.Context, input CycleInput, content string, call models.ToolCall, capDef *models.Capability, missing []string, usage models.TokenUsage) (CycleResult, error) {
	assistant, err := c.persistAssistant(ctx, input, content, []models.ToolCall{call}, nil)
	if err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeStorage, err.Error())
	}

	payload := models.ToolPayload{
		Success:        false,
		CapabilityName: capDef.Name,
		ErrorCode:      apperrors.ErrCodePrerequisiteNotMet,
		ErrorMessage: fmt.Sprintf("%s requires a successful run of: %s",
			capDef.Name, strings.Join(missing, ", ")),
	}
	if err := c.persistToolResult(ctx, input, assistant.ID, call.ID, capDef.Name, payload, ""); err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeStorage, err.Error())
	}

	c.log.Info("prerequisites not met", "sessionID", input.SessionID,
		"capability", capDef.Name, "missing", missing)
	// a soft failure: never halts the turn
	return c.continueTurn(ctx, input, false, false, usage)
}

// handleApprovalGate persists the pending tool call, opens an approval
// request, and parks the turn until a human decides.
func (c *Core) handleApprovalGate(ctx context.Context, input CycleInput, content string, call models.ToolCall, capDef *models.Capability, usage models.TokenUsage) (CycleResult, error) {
	justification := extractConfirmation(call.Arguments, capDef.ConfirmationParameter)
	if justification == "" {
		return c.failTurn(ctx, input, apperrors.ErrCodeLLMCallFailed,
			fmt.Sprintf("tool call %s omitted the required %s parameter", capDef.Name, capDef.ConfirmationParameter))
	}

	approvalID := uuid.NewString()
	pending, err := json.Marshal(pendingConfirmation{
		ApprovalID:     approvalID,
		ToolCallID:     call.ID,
		CapabilityName: capDef.Name,
		Arguments:      call.Arguments,
		Justification:  justification,
	})
	if err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeUnexpected, err.Error())
	}

	assistant, err := c.persistAssistant(ctx, input, content, []models.ToolCall{call}, pending)
	if err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeStorage, err.Error())
	}

	approval := &models.ApprovalRequest{
		ID:                 approvalID,
		SessionID:          input.SessionID,
		TurnID:             input.TurnID,
		Cycle:              input.Cycle,
		AssistantMessageID: assistant.ID,
		ToolCallID:         call.ID,
		CapabilityName:     capDef.Name,
		Arguments:          call.Arguments,
		Justification:      justification,
		Status:             models.ApprovalPending,
		CreatedAt:          time.Now().UTC(),
	}
	if err := c.store.CreateApproval(ctx, approval); err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeStorage, err.Error())
	}

	step := fmt.Sprintf("Waiting for confirmation: %s", displayName(capDef))
	if err := c.lifecycle.MarkAwaitingConfirmation(ctx, input.SessionID, input.TurnID, step); err != nil {
		if errors.Is(err, turn.ErrStaleTurn) {
			return CycleResult{Outcome: OutcomeNoOp}, nil
		}
		return CycleResult{}, err
	}

	c.metrics.ObserveOutcome(OutcomeAwaitingConfirmation)
	return CycleResult{Outcome: OutcomeAwaitingConfirmation, TokenUsage: usage}, nil
}

// queueAsyncAction hands the tool call to the work queue and parks the turn
func (c *Core) queueAsyncAction(ctx context.Context, input CycleInput, assistantMessageID string, call models.ToolCall, capDef *models.Capability, usage models.TokenUsage) (CycleResult, error) {
	jobID, err := c.dispatcher.EnqueueAsyncAction(ctx, AsyncActionJob{
		SessionID:          input.SessionID,
		TurnID:             input.TurnID,
		Cycle:              input.Cycle,
		AssistantMessageID: assistantMessageID,
		ToolCallID:         call.ID,
		CapabilityName:     capDef.Name,
	})
	if err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeDispatch, err.Error())
	}

	step := fmt.Sprintf("Running %s", displayName(capDef))
	if err := c.lifecycle.MarkAwaitingAction(ctx, input.SessionID, input.TurnID, jobID, step); err != nil {
		if errors.Is(err, turn.ErrStaleTurn) {
			return CycleResult{Outcome: OutcomeNoOp}, nil
		}
		return CycleResult{}, err
	}

	c.metrics.ObserveOutcome(OutcomeQueuedAction)
	return CycleResult{Outcome: OutcomeQueuedAction, TokenUsage: usage}, nil
}

// executeAndRecord runs the capability synchronously and always persists a
// tool-result message, success or failure.
func (c *Core) executeAndRecord(ctx context.Context, input CycleInput, capDef models.Capability, call models.ToolCall, assistantMessageID string) (models.ActionResult, error) {
	result := c.runner.Run(ctx, capDef, call.Arguments, action.Context{
		SessionID: input.SessionID,
		TurnID:    input.TurnID,
		Cycle:     input.Cycle,
		UserID:    input.UserID,
		AgentName: input.AgentName,
		Record:    input.Record,
	})
	c.metrics.ObserveAction(capDef.Name, result.Duration, result.Success)

	if !result.Success {
		c.log.Info("capability execution failed",
			"sessionID", input.SessionID, "capability", capDef.Name,
			"errorCode", result.ErrorCode, "detail", result.InternalDetails)
	}

	payload := models.NewToolPayload(capDef.Name, result)
	if err := c.persistToolResult(ctx, input, assistantMessageID, call.ID, capDef.Name, payload, result.ContextRecordID); err != nil {
		return result, err
	}
	return result, nil
}

// continueTurn applies the post-action continuation: halt on a hard action
// failure, enforce the cycle limit, otherwise queue the next LLM call.
func (c *Core) continueTurn(ctx context.Context, input CycleInput, actionFailed, haltOnError bool, usage models.TokenUsage) (CycleResult, error) {
	if actionFailed && haltOnError {
		return c.failTurn(ctx, input, apperrors.ErrCodeActionExecution,
			"a required action failed and the capability does not allow recovery")
	}

	if input.Cycle >= c.maxCycles {
		return c.failTurn(ctx, input, apperrors.ErrCodeMaxTurnsExceeded,
			fmt.Sprintf("turn reached the limit of %d cycles", c.maxCycles))
	}

	jobID, err := c.dispatcher.EnqueueFollowUp(ctx, FollowUpJob{
		SessionID: input.SessionID,
		TurnID:    input.TurnID,
		Cycle:     input.Cycle + 1,
	})
	if err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeDispatch, err.Error())
	}

	if err := c.lifecycle.MarkAwaitingFollowup(ctx, input.SessionID, input.TurnID, jobID); err != nil {
		if errors.Is(err, turn.ErrStaleTurn) {
			return CycleResult{Outcome: OutcomeNoOp}, nil
		}
		return CycleResult{}, err
	}

	c.metrics.ObserveOutcome(OutcomeQueuedFollowup)
	return CycleResult{Outcome: OutcomeQueuedFollowup, TokenUsage: usage}, nil
}

func (c *Core) failTurn(ctx context.Context, input CycleInput, code, detail string) (CycleResult, error) {
	if err := c.lifecycle.FailTurn(ctx, input.SessionID, input.TurnID, code, detail); err != nil {
		if errors.Is(err, turn.ErrStaleTurn) {
			return CycleResult{Outcome: OutcomeNoOp}, nil
		}
		return CycleResult{}, err
	}
	c.log.Info("turn failed", "sessionID", input.SessionID, "turnID", input.TurnID,
		"errorCode", code, "detail", detail)
	c.metrics.ObserveOutcome(OutcomeFailed)
	c.metrics.ObserveFailure(code)
	return CycleResult{Outcome: OutcomeFailed, ErrorCode: code, ErrorDetail: detail}, nil
}

// persistUserMessage stores the turn's user message once; the external id
// (the turn identifier by default) makes replays no-ops.
func (c *Core) persistUserMessage(ctx context.Context, input CycleInput) error {
	if input.UserMessage == "" {
		return nil
	}
	externalID := input.UserExternalID
	if externalID == "" {
		externalID = input.TurnID
	}
	_, err := c.store.CreateMessageIdempotent(ctx, &models.Message{
		ID:                uuid.NewString(),
		SessionID:         input.SessionID,
		TurnID:            input.TurnID,
		Role:              models.RoleUser,
		Content:           input.UserMessage,
		ContextRecordID:   input.Record.RecordID,
		ContextRecordData: input.Record.Data,
		ExternalID:        externalID,
		CreatedAt:         time.Now().UTC(),
	})
	return err
}

func (c *Core) persistAssistant(ctx context.Context, input CycleInput, content string, calls []models.ToolCall, pending json.RawMessage) (*models.Message, error) {
	message := &models.Message{
		ID:                  uuid.NewString(),
		SessionID:           input.SessionID,
		TurnID:              input.TurnID,
		Role:                models.RoleAssistant,
		Content:             content,
		ToolCalls:           calls,
		PendingConfirmation: pending,
		ExternalID:          fmt.Sprintf("%s:%d:assistant", input.TurnID, input.Cycle),
		CreatedAt:           time.Now().UTC(),
	}
	created, err := c.store.CreateMessageIdempotent(ctx, message)
	if err != nil {
		return nil, err
	}
	if !created {
		// replayed cycle: reuse the stored row
		existing, err := c.findByExternalID(ctx, input.SessionID, message.ExternalID)
		if err != nil {
			return nil, err
		}
		return existing, nil
	}
	return message, nil
}

func (c *Core) persistToolResult(ctx context.Context, input CycleInput, assistantMessageID, toolCallID, capabilityName string, payload models.ToolPayload, recordID string) error {
	content, err := payload.Encode()
	if err != nil {
		return err
	}
	success := payload.Success
	_, err = c.store.CreateMessageIdempotent(ctx, &models.Message{
		ID:              uuid.NewString(),
		SessionID:       input.SessionID,
		TurnID:          input.TurnID,
		Role:            models.RoleTool,
		Content:         content,
		ToolCallID:      toolCallID,
		ParentMessageID: assistantMessageID,
		CapabilityName:  capabilityName,
		Success:         &success,
		ContextRecordID: recordID,
		ExternalID:      toolCallID + ":result",
		CreatedAt:       time.Now().UTC(),
	})
	return err
}

func (c *Core) findByExternalID(ctx context.Context, sessionID, externalID string) (*models.Message, error) {
	messages, err := c.store.ListMessages(ctx, sessionID, 0, time.Time{})
	if err != nil {
		return nil, err
	}
	for i := range messages {
		if messages[i].ExternalID == externalID {
			return &messages[i], nil
		}
	}
	return nil, store.ErrNotFound
}

// unmetPrerequisites returns capability names without a recorded successful
// tool result in the capability's validation scope. Earlier failures and
// attempts do not count; only successes satisfy.
func (c *Core) unmetPrerequisites(ctx context.Context, input CycleInput, capDef *models.Capability) ([]string, error) {
	if len(capDef.ExecutionPrerequisites) == 0 {
		return nil, nil
	}

	scopeTurnID := input.TurnID
	if capDef.PrerequisiteScope == models.ScopeSession {
		scopeTurnID = ""
	}
	successes, err := c.store.SuccessfulToolCapabilities(ctx, input.SessionID, scopeTurnID)
	if err != nil {
		return nil, err
	}

	normalized := make(map[string]bool, len(successes))
	for name := range successes {
		normalized[capability.NormalizeName(name)] = true
	}

	var missing []string
	for _, prerequisite := range capDef.ExecutionPrerequisites {
		if !normalized[capability.NormalizeName(prerequisite)] {
			missing = append(missing, prerequisite)
		}
	}
	return missing, nil
}

// extractConfirmation pulls the non-empty confirmation string out of the
// tool arguments, or returns "" when the model violated the tool contract.
func extractConfirmation(arguments json.RawMessage, parameter string) string {
	if parameter == "" || len(arguments) == 0 {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(arguments, &fields); err != nil {
		return ""
	}
	value, ok := fields[parameter].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func displayName(capDef *models.Capability) string {
	if capDef.DisplayName != "" {
		return capDef.DisplayName
	}
	return capDef.Name
}
