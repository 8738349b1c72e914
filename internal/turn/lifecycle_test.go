package turn

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/agentcore-dev/agentcore/go/internal/models"
	"github.com/agentcore-dev/agentcore/go/internal/store"
)

type capturingNotifier struct {
	mu     sync.Mutex
	events []models.CompletionEvent
}

func (n *capturingNotifier) PublishCompletion(_ context.Context, event models.CompletionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *capturingNotifier) all() []models.CompletionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.CompletionEvent(nil), n.events...)
}

func newTestLifecycle(t *testing.T) (*Lifecycle, *store.GormStore, *capturingNotifier) {
	t.Helper()
	s, err := store.NewGormStore("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	notifier := &capturingNotifier{}
	return NewLifecycle(s, notifier, logr.Discard()), s, notifier
}

func createSession(t *testing.T, s *store.GormStore) string {
	t.Helper()
	now := time.Now().UTC()
	session := &models.Session{
		ID:             uuid.NewString(),
		UserID:         "user-1",
		AgentName:      "support",
		Status:         models.StatusIdle,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, s.CreateSession(context.Background(), session))
	return session.ID
}

// requireInvariant checks the turn-identifier/status invariant on the
// persisted session.
func requireInvariant(t *testing.T, s *store.GormStore, sessionID string) {
	t.Helper()
	session, err := s.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	if session.Status.IsTerminal() {
		require.Empty(t, session.CurrentTurnID, "terminal status %s must have no turn id", session.Status)
	} else {
		require.NotEmpty(t, session.CurrentTurnID, "non-terminal status %s must have a turn id", session.Status)
	}
}

func TestBeginTurn(t *testing.T) {
	l, s, _ := newTestLifecycle(t)
	ctx := context.Background()
	sessionID := createSession(t, s)

	require.NoError(t, l.BeginTurn(ctx, sessionID, "turn-1"))
	requireInvariant(t, s, sessionID)

	session, err := s.GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, models.StatusProcessing, session.Status)
	require.Equal(t, "turn-1", session.CurrentTurnID)
}

func TestBeginTurn_Busy(t *testing.T) {
	l, s, _ := newTestLifecycle(t)
	ctx := context.Background()
	sessionID := createSession(t, s)

	require.NoError(t, l.BeginTurn(ctx, sessionID, "turn-1"))
	require.ErrorIs(t, l.BeginTurn(ctx, sessionID, "turn-2"), ErrSessionBusy)
}

func TestBeginTurn_AfterFailure(t *testing.T) {
	l, s, _ := newTestLifecycle(t)
	ctx := context.Background()
	sessionID := createSession(t, s)

	require.NoError(t, l.BeginTurn(ctx, sessionID, "turn-1"))
	require.NoError(t, l.FailTurn(ctx, sessionID, "turn-1", "UNEXPECTED_ERROR", "boom"))
	requireInvariant(t, s, sessionID)

	require.NoError(t, l.BeginTurn(ctx, sessionID, "turn-2"))
	session, err := s.GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, models.StatusProcessing, session.Status)
	require.Empty(t, session.LastError, "a new turn clears the previous error")
}

func TestTransitions_StaleTurnIsNoOp(t *testing.T) {
	l, s, _ := newTestLifecycle(t)
	ctx := context.Background()
	sessionID := createSession(t, s)

	require.NoError(t, l.BeginTurn(ctx, sessionID, "turn-1"))

	require.ErrorIs(t, l.MarkAwaitingFollowup(ctx, sessionID, "turn-0", "job-9"), ErrStaleTurn)
	require.ErrorIs(t, l.CompleteTurn(ctx, sessionID, "turn-0", "msg-1", models.TokenUsage{}), ErrStaleTurn)
	require.ErrorIs(t, l.FailTurn(ctx, sessionID, "turn-0", "X", "y"), ErrStaleTurn)

	// state unchanged
	session, err := s.GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, models.StatusProcessing, session.Status)
	require.Equal(t, "turn-1", session.CurrentTurnID)
}

func TestCompleteTurn(t *testing.T) {
	l, s, notifier := newTestLifecycle(t)
	ctx := context.Background()
	sessionID := createSession(t, s)

	require.NoError(t, l.BeginTurn(ctx, sessionID, "turn-1"))
	require.NoError(t, l.MarkAwaitingFollowup(ctx, sessionID, "turn-1", "job-1"))
	requireInvariant(t, s, sessionID)
	require.NoError(t, l.CompleteTurn(ctx, sessionID, "turn-1", "msg-final", models.TokenUsage{TotalTokens: 42}))
	requireInvariant(t, s, sessionID)

	session, err := s.GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, models.StatusIdle, session.Status)
	require.Empty(t, session.CurrentJobID)

	events := notifier.all()
	require.Len(t, events, 1)
	require.True(t, events[0].Success)
	require.Equal(t, "msg-final", events[0].FinalMessageID)
	require.Equal(t, 42, events[0].TokenUsage.TotalTokens)
}

func TestFailTurn_PublishesFailure(t *testing.T) {
	l, s, notifier := newTestLifecycle(t)
	ctx := context.Background()
	sessionID := createSession(t, s)

	require.NoError(t, l.BeginTurn(ctx, sessionID, "turn-1"))
	require.NoError(t, l.FailTurn(ctx, sessionID, "turn-1", "MAX_TURNS_EXCEEDED", "cycle limit reached"))

	session, err := s.GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, session.Status)
	require.Contains(t, session.LastError, "MAX_TURNS_EXCEEDED")

	events := notifier.all()
	require.Len(t, events, 1)
	require.False(t, events[0].Success)
	require.Equal(t, "MAX_TURNS_EXCEEDED", events[0].ErrorCode)
	require.Equal(t, "turn-1", events[0].TurnID)
}

func TestFailTurn_Administrative(t *testing.T) {
	l, s, _ := newTestLifecycle(t)
	ctx := context.Background()
	sessionID := createSession(t, s)

	require.NoError(t, l.BeginTurn(ctx, sessionID, "turn-1"))
	require.NoError(t, l.MarkAwaitingAction(ctx, sessionID, "turn-1", "job-1", "Running tool"))

	// forced failure without an in-hand turn id
	require.NoError(t, l.FailTurn(ctx, sessionID, "", "ADMIN", "operator reset"))
	requireInvariant(t, s, sessionID)

	// the old turn's late continuation is now a no-op
	require.ErrorIs(t, l.MarkAwaitingFollowup(ctx, sessionID, "turn-1", "job-2"), ErrStaleTurn)
}

func TestFailTurn_IdleSessionIsNoOp(t *testing.T) {
	l, s, notifier := newTestLifecycle(t)
	ctx := context.Background()
	sessionID := createSession(t, s)

	require.ErrorIs(t, l.FailTurn(ctx, sessionID, "", "ADMIN", "nothing running"), ErrStaleTurn)
	require.Empty(t, notifier.all())
}

func TestAwaitingConfirmation(t *testing.T) {
	l, s, _ := newTestLifecycle(t)
	ctx := context.Background()
	sessionID := createSession(t, s)

	require.NoError(t, l.BeginTurn(ctx, sessionID, "turn-1"))
	require.NoError(t, l.MarkAwaitingConfirmation(ctx, sessionID, "turn-1", "Waiting for approval of delete_account"))
	requireInvariant(t, s, sessionID)

	session, err := s.GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, models.StatusAwaitingUserConfirmation, session.Status)
	require.Contains(t, session.CurrentStepDescription, "delete_account")

	require.NoError(t, l.MarkProcessing(ctx, sessionID, "turn-1"))
	session, err = s.GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, models.StatusProcessing, session.Status)
}

func TestValidateTurn(t *testing.T) {
	l, s, _ := newTestLifecycle(t)
	ctx := context.Background()
	sessionID := createSession(t, s)

	require.NoError(t, l.BeginTurn(ctx, sessionID, "turn-1"))
	require.NoError(t, l.ValidateTurn(ctx, sessionID, "turn-1"))
	require.ErrorIs(t, l.ValidateTurn(ctx, sessionID, "turn-0"), ErrStaleTurn)
}
