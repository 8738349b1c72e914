package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/agentcore-dev/agentcore/go/internal/capability"
	"github.com/agentcore-dev/agentcore/go/internal/history"
	"github.com/agentcore-dev/agentcore/go/internal/llm"
	"github.com/agentcore-dev/agentcore/go/internal/models"
	"github.com/agentcore-dev/agentcore/go/internal/store"
	"github.com/agentcore-dev/agentcore/go/internal/turn"
	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

// LoopOptions carries the per-request LLM parameters
type LoopOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Loop glues context assembly, the LLM call, and the core's response
// dispatch into one cycle.
type Loop struct {
	core      *Core
	assembler *history.Assembler
	client    llm.Client
	resolver  capability.Resolver
	lifecycle *turn.Lifecycle
	sessions  store.SessionStore
	options   LoopOptions
	log       logr.Logger
}

// NewLoop creates a Loop
func NewLoop(core *Core, assembler *history.Assembler, client llm.Client, resolver capability.Resolver, lifecycle *turn.Lifecycle, sessions store.SessionStore, options LoopOptions, log logr.Logger) *Loop {
	return &Loop{
		core:      core,
		assembler: assembler,
		client:    client,
		resolver:  resolver,
		lifecycle: lifecycle,
		sessions:  sessions,
		options:   options,
		log:       log.WithName("loop"),
	}
}

// ProcessUserMessage begins a new turn for the session and runs its first
// cycle synchronously, returning the outcome to the controller.
func (l *Loop) ProcessUserMessage(ctx context.Context, sessionID, userText, externalID string, record models.RecordContext) (CycleResult, error) {
	if strings.TrimSpace(userText) == "" {
		return CycleResult{}, apperrors.New(apperrors.ErrCodeInvalidInput, "message text is empty", nil)
	}

	session, err := l.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return CycleResult{}, apperrors.New(apperrors.ErrCodeSessionGet,
				fmt.Sprintf("session %s not found", sessionID), err)
		}
		return CycleResult{}, err
	}

	turnID := uuid.NewString()
	if err := l.lifecycle.BeginTurn(ctx, sessionID, turnID); err != nil {
		if errors.Is(err, turn.ErrSessionBusy) {
			return CycleResult{}, apperrors.New(apperrors.ErrCodeSessionBusy,
				"the session is still processing a previous message", err)
		}
		return CycleResult{}, err
	}
	l.core.metrics.ObserveTurnStarted()

	return l.RunCycle(ctx, CycleInput{
		SessionID:      sessionID,
		TurnID:         turnID,
		Cycle:          1,
		AgentName:      session.AgentName,
		UserID:         session.UserID,
		UserMessage:    userText,
		UserExternalID: externalID,
		Record:         record,
	})
}

// RunCycle runs one LLM round-trip for an in-flight turn. Decision errors
// inside the cycle are caught here and converted to a turn failure rather
// than propagating to the caller.
func (l *Loop) RunCycle(ctx context.Context, input CycleInput) (result CycleResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			l.log.Error(fmt.Errorf("panic: %v", rec), "cycle panicked",
				"sessionID", input.SessionID, "turnID", input.TurnID, "cycle", input.Cycle)
			result, err = l.core.failTurn(ctx, input, apperrors.ErrCodeUnexpected,
				"the turn failed unexpectedly")
		}
	}()

	if err := l.lifecycle.ValidateTurn(ctx, input.SessionID, input.TurnID); err != nil {
		if errors.Is(err, turn.ErrStaleTurn) {
			l.log.Info("dropping stale cycle", "sessionID", input.SessionID,
				"turnID", input.TurnID, "cycle", input.Cycle)
			return CycleResult{Outcome: OutcomeNoOp}, nil
		}
		return CycleResult{}, err
	}

	// follow-up jobs carry only identifiers
	if input.AgentName == "" {
		session, err := l.sessions.GetSession(ctx, input.SessionID)
		if err != nil {
			return CycleResult{}, err
		}
		input.AgentName = session.AgentName
		input.UserID = session.UserID
	}

	if input.Cycle > 1 {
		if err := l.lifecycle.MarkProcessing(ctx, input.SessionID, input.TurnID); err != nil {
			if errors.Is(err, turn.ErrStaleTurn) {
				return CycleResult{Outcome: OutcomeNoOp}, nil
			}
			return CycleResult{}, err
		}
	}

	agent, err := l.resolver.ResolveAgent(ctx, input.AgentName)
	if err != nil {
		return l.core.failTurn(ctx, input, apperrors.ErrCodeConfiguration, err.Error())
	}

	request, err := l.assembler.Assemble(ctx, agent, input.SessionID, input.Record, "")
	if err != nil {
		return l.core.failTurn(ctx, input, apperrors.CodeOf(err), err.Error())
	}
	// the first cycle's user message is persisted by the core after the
	// provider call succeeds, so it rides along unpersisted here
	if input.UserMessage != "" {
		request.Messages = append(request.Messages, llm.PromptMessage{
			Role:    models.RoleUser,
			Content: input.UserMessage,
		})
	}
	request.Model = l.options.Model
	request.MaxTokens = l.options.MaxTokens
	request.Temperature = l.options.Temperature

	provider, err := l.client.Complete(ctx, request)
	if err != nil {
		provider = &models.ProviderResult{
			Failed:       true,
			FailureCode:  apperrors.ErrCodeLLMCallFailed,
			FailureError: err.Error(),
		}
	}

	return l.core.HandleProviderResult(ctx, input, provider)
}
