// Package turn owns the session's turn status state machine. Every
// transition runs under an exclusive row lock on the session record, and
// every transition on behalf of in-flight work is guarded by a turn
// identifier match so late or duplicate queue deliveries become no-ops.
package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/agentcore-dev/agentcore/go/internal/models"
	"github.com/agentcore-dev/agentcore/go/internal/store"
)

// ErrStaleTurn is returned when the caller's turn identifier no longer
// matches the session's current turn. Callers drop the work item.
var ErrStaleTurn = errors.New("stale turn identifier")

// ErrSessionBusy is returned when a new turn is requested while the session
// is still processing a previous one.
var ErrSessionBusy = errors.New("session is processing another turn")

// Notifier receives fire-and-forget completion events. Delivery is
// best-effort and not part of the transactional contract.
type Notifier interface {
	PublishCompletion(ctx context.Context, event models.CompletionEvent)
}

// Lifecycle performs atomic session status transitions
type Lifecycle struct {
	sessions store.SessionStore
	notifier Notifier
	log      logr.Logger
}

// NewLifecycle creates a Lifecycle. notifier may be nil.
func NewLifecycle(sessions store.SessionStore, notifier Notifier, log logr.Logger) *Lifecycle {
	return &Lifecycle{
		sessions: sessions,
		notifier: notifier,
		log:      log.WithName("turn"),
	}
}

// BeginTurn transitions Idle/Failed -> Processing and binds the new turn
// identifier to the session. Returns ErrSessionBusy when the session is
// mid-turn.
func (l *Lifecycle) BeginTurn(ctx context.Context, sessionID, turnID string) error {
	if turnID == "" {
		return fmt.Errorf("begin turn: blank turn identifier")
	}
	return l.sessions.UpdateSessionLocked(ctx, sessionID, func(session *models.Session) error {
		if !session.Status.IsTerminal() {
			return ErrSessionBusy
		}
		session.Status = models.StatusProcessing
		session.CurrentTurnID = turnID
		session.CurrentJobID = ""
		session.CurrentStepDescription = "Thinking"
		session.LastError = ""
		session.LastActivityAt = time.Now().UTC()
		return nil
	})
}

// MarkAwaitingAction transitions Processing -> AwaitingAction and stores the
// queued job handle.
func (l *Lifecycle) MarkAwaitingAction(ctx context.Context, sessionID, turnID, jobID, step string) error {
	return l.transition(ctx, sessionID, turnID, func(session *models.Session) error {
		session.Status = models.StatusAwaitingAction
		session.CurrentJobID = jobID
		session.CurrentStepDescription = step
		return nil
	})
}

// MarkAwaitingFollowup transitions into AwaitingFollowup with the follow-up
// job handle.
func (l *Lifecycle) MarkAwaitingFollowup(ctx context.Context, sessionID, turnID, jobID string) error {
	return l.transition(ctx, sessionID, turnID, func(session *models.Session) error {
		session.Status = models.StatusAwaitingFollowup
		session.CurrentJobID = jobID
		session.CurrentStepDescription = "Thinking"
		return nil
	})
}

// MarkAwaitingConfirmation transitions Processing -> AwaitingUserConfirmation
func (l *Lifecycle) MarkAwaitingConfirmation(ctx context.Context, sessionID, turnID, step string) error {
	return l.transition(ctx, sessionID, turnID, func(session *models.Session) error {
		session.Status = models.StatusAwaitingUserConfirmation
		session.CurrentJobID = ""
		session.CurrentStepDescription = step
		return nil
	})
}

// MarkProcessing re-enters Processing from a waiting state, for resumed work
func (l *Lifecycle) MarkProcessing(ctx context.Context, sessionID, turnID string) error {
	return l.transition(ctx, sessionID, turnID, func(session *models.Session) error {
		session.Status = models.StatusProcessing
		session.CurrentStepDescription = "Thinking"
		return nil
	})
}

// CompleteTurn transitions any non-terminal state to Idle, clears the turn
// binding, and publishes a success event.
func (l *Lifecycle) CompleteTurn(ctx context.Context, sessionID, turnID, finalMessageID string, usage models.TokenUsage) error {
	err := l.transition(ctx, sessionID, turnID, func(session *models.Session) error {
		session.Status = models.StatusIdle
		session.CurrentTurnID = ""
		session.CurrentJobID = ""
		session.CurrentStepDescription = ""
		session.LastError = ""
		session.LastActivityAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}

	l.publish(ctx, models.CompletionEvent{
		SessionID:      sessionID,
		TurnID:         turnID,
		Success:        true,
		FinalMessageID: finalMessageID,
		TokenUsage:     usage,
		Timestamp:      time.Now().UTC(),
	})
	return nil
}

// FailTurn transitions any non-terminal state to Failed, stores the error,
// and publishes a failure event. An empty turnID forces the transition
// regardless of the session's current turn (administrative use).
func (l *Lifecycle) FailTurn(ctx context.Context, sessionID, turnID, errCode, errDetail string) error {
	var failedTurnID string
	err := l.sessions.UpdateSessionLocked(ctx, sessionID, func(session *models.Session) error {
		if turnID != "" && session.CurrentTurnID != turnID {
			return ErrStaleTurn
		}
		if session.Status.IsTerminal() && session.CurrentTurnID == "" {
			// nothing in flight; forced failure of an idle session is a no-op
			return ErrStaleTurn
		}
		failedTurnID = session.CurrentTurnID
		session.Status = models.StatusFailed
		session.CurrentTurnID = ""
		session.CurrentJobID = ""
		session.CurrentStepDescription = ""
		session.LastError = fmt.Sprintf("%s: %s", errCode, errDetail)
		session.LastActivityAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}

	l.publish(ctx, models.CompletionEvent{
		SessionID:   sessionID,
		TurnID:      failedTurnID,
		Success:     false,
		ErrorCode:   errCode,
		ErrorDetail: errDetail,
		Timestamp:   time.Now().UTC(),
	})
	return nil
}

// ValidateTurn checks that the session's persisted turn identifier still
// matches the caller's before resumed work proceeds.
func (l *Lifecycle) ValidateTurn(ctx context.Context, sessionID, turnID string) error {
	session, err := l.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.CurrentTurnID != turnID {
		return ErrStaleTurn
	}
	return nil
}

// transition applies fn under the row lock after the stale-turn guard, and
// enforces the turn-identifier invariant on the way out.
func (l *Lifecycle) transition(ctx context.Context, sessionID, turnID string, fn func(session *models.Session) error) error {
	if turnID == "" {
		return fmt.Errorf("transition: blank turn identifier")
	}
	return l.sessions.UpdateSessionLocked(ctx, sessionID, func(session *models.Session) error {
		if session.CurrentTurnID != turnID {
			return ErrStaleTurn
		}
		if err := fn(session); err != nil {
			return err
		}
		session.LastActivityAt = time.Now().UTC()
		return checkInvariant(session)
	})
}

// checkInvariant enforces: CurrentTurnID is non-empty iff the status is
// non-terminal.
func checkInvariant(session *models.Session) error {
	terminal := session.Status.IsTerminal()
	if terminal && session.CurrentTurnID != "" {
		return fmt.Errorf("invariant violation: terminal status %s with turn id %s", session.Status, session.CurrentTurnID)
	}
	if !terminal && session.CurrentTurnID == "" {
		return fmt.Errorf("invariant violation: non-terminal status %s without turn id", session.Status)
	}
	return nil
}

func (l *Lifecycle) publish(ctx context.Context, event models.CompletionEvent) {
	if l.notifier == nil {
		return
	}
	l.notifier.PublishCompletion(ctx, event)
	l.log.V(1).Info("published completion event",
		"sessionID", event.SessionID, "turnID", event.TurnID, "success", event.Success)
}
