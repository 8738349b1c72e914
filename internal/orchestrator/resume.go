package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentcore-dev/agentcore/go/internal/models"
	"github.com/agentcore-dev/agentcore/go/internal/store"
	"github.com/agentcore-dev/agentcore/go/internal/turn"
	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

// ResolveApproval records a human decision on a pending approval and resumes
// the parked turn. Everything needed to execute is re-derived from the
// persisted approval record, never from the caller.
func (c *Core) ResolveApproval(ctx context.Context, approvalID, decidedBy string, approved bool) (CycleResult, error) {
	status := models.ApprovalRejected
	if approved {
		status = models.ApprovalApproved
	}
	approval, err := c.store.UpdateApprovalDecision(ctx, approvalID, status, decidedBy)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return CycleResult{}, apperrors.New(apperrors.ErrCodeApprovalNotFound,
				fmt.Sprintf("approval %s not found or already decided", approvalID), err)
		}
		return CycleResult{}, err
	}

	if err := c.lifecycle.ValidateTurn(ctx, approval.SessionID, approval.TurnID); err != nil {
		if errors.Is(err, turn.ErrStaleTurn) {
			c.log.Info("approval decided for a stale turn, dropping",
				"approvalID", approvalID, "sessionID", approval.SessionID)
			return CycleResult{Outcome: OutcomeNoOp}, nil
		}
		return CycleResult{}, err
	}

	session, err := c.store.GetSession(ctx, approval.SessionID)
	if err != nil {
		return CycleResult{}, err
	}
	input := CycleInput{
		SessionID: approval.SessionID,
		TurnID:    approval.TurnID,
		Cycle:     approval.Cycle,
		AgentName: session.AgentName,
		UserID:    session.UserID,
	}

	if err := c.lifecycle.MarkProcessing(ctx, input.SessionID, input.TurnID); err != nil {
		if errors.Is(err, turn.ErrStaleTurn) {
			return CycleResult{Outcome: OutcomeNoOp}, nil
		}
		return CycleResult{}, err
	}
	if err := c.store.ClearPendingConfirmation(ctx, approval.AssistantMessageID); err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeStorage, err.Error())
	}

	if !approved {
		payload := models.ToolPayload{
			Success:        false,
			CapabilityName: approval.CapabilityName,
			ErrorCode:      apperrors.ErrCodeApprovalRejected,
			ErrorMessage:   fmt.Sprintf("the user rejected the %s action", approval.CapabilityName),
		}
		if err := c.persistToolResult(ctx, input, approval.AssistantMessageID, approval.ToolCallID, approval.CapabilityName, payload, ""); err != nil {
			return c.failTurn(ctx, input, apperrors.ErrCodeStorage, err.Error())
		}
		// rejection is feedback for the model, never a halt
		return c.continueTurn(ctx, input, false, false, models.TokenUsage{})
	}

	capDef, err := c.resolver.Resolve(ctx, session.AgentName, approval.CapabilityName)
	if err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeConfiguration, err.Error())
	}
	call := models.ToolCall{ID: approval.ToolCallID, Name: capDef.Name, Arguments: approval.Arguments}

	if capDef.RunAsynchronously {
		return c.queueAsyncAction(ctx, input, approval.AssistantMessageID, call, capDef, models.TokenUsage{})
	}

	result, err := c.executeAndRecord(ctx, input, *capDef, call, approval.AssistantMessageID)
	if err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeStorage, err.Error())
	}
	return c.continueTurn(ctx, input, !result.Success, capDef.HaltOnError, models.TokenUsage{})
}

// ExecuteQueuedAction runs a dequeued async action. The capability and its
// arguments are re-derived from the persisted assistant message, and the
// turn-identifier guard makes late or duplicate deliveries no-ops.
func (c *Core) ExecuteQueuedAction(ctx context.Context, job AsyncActionJob) (CycleResult, error) {
	if err := c.lifecycle.ValidateTurn(ctx, job.SessionID, job.TurnID); err != nil {
		if errors.Is(err, turn.ErrStaleTurn) {
			c.log.Info("dropping stale async action", "sessionID", job.SessionID,
				"turnID", job.TurnID, "capability", job.CapabilityName)
			return CycleResult{Outcome: OutcomeNoOp}, nil
		}
		return CycleResult{}, err
	}

	session, err := c.store.GetSession(ctx, job.SessionID)
	if err != nil {
		return CycleResult{}, err
	}
	input := CycleInput{
		SessionID: job.SessionID,
		TurnID:    job.TurnID,
		Cycle:     job.Cycle,
		AgentName: session.AgentName,
		UserID:    session.UserID,
	}

	assistant, err := c.store.GetMessage(ctx, job.AssistantMessageID)
	if err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeStorage, err.Error())
	}
	var call *models.ToolCall
	for i := range assistant.ToolCalls {
		if assistant.ToolCalls[i].ID == job.ToolCallID {
			call = &assistant.ToolCalls[i]
			break
		}
	}
	if call == nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeStorage,
			fmt.Sprintf("assistant message %s has no tool call %s", job.AssistantMessageID, job.ToolCallID))
	}

	capDef, err := c.resolver.Resolve(ctx, session.AgentName, call.Name)
	if err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeConfiguration, err.Error())
	}

	if err := c.lifecycle.MarkProcessing(ctx, input.SessionID, input.TurnID); err != nil {
		if errors.Is(err, turn.ErrStaleTurn) {
			return CycleResult{Outcome: OutcomeNoOp}, nil
		}
		return CycleResult{}, err
	}

	result, err := c.executeAndRecord(ctx, input, *capDef, *call, assistant.ID)
	if err != nil {
		return c.failTurn(ctx, input, apperrors.ErrCodeStorage, err.Error())
	}
	return c.continueTurn(ctx, input, !result.Success, capDef.HaltOnError, models.TokenUsage{})
}
