package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/agentcore-dev/agentcore/go/internal/models"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := NewGormStore("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestSession(t *testing.T, s *GormStore) *models.Session {
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
	return session
}

func TestOpenGormInvalidDriver(t *testing.T) {
	if _, err := OpenGorm("invalid", "x"); err == nil {
		t.Fatalf("expected invalid driver error")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := newTestSession(t, s)

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, session.ID, got.ID)
	require.Equal(t, models.StatusIdle, got.Status)
	require.Empty(t, got.CurrentTurnID)
}

func TestGetSession_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSession(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateSessionLocked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := newTestSession(t, s)

	err := s.UpdateSessionLocked(ctx, session.ID, func(sess *models.Session) error {
		sess.Status = models.StatusProcessing
		sess.CurrentTurnID = "turn-1"
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusProcessing, got.Status)
	require.Equal(t, "turn-1", got.CurrentTurnID)
}

func TestUpdateSessionLocked_ClearsFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := newTestSession(t, s)

	require.NoError(t, s.UpdateSessionLocked(ctx, session.ID, func(sess *models.Session) error {
		sess.Status = models.StatusProcessing
		sess.CurrentTurnID = "turn-1"
		sess.CurrentJobID = "job-1"
		return nil
	}))

	// zero values must persist when a terminal transition clears them
	require.NoError(t, s.UpdateSessionLocked(ctx, session.ID, func(sess *models.Session) error {
		sess.Status = models.StatusIdle
		sess.CurrentTurnID = ""
		sess.CurrentJobID = ""
		return nil
	}))

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusIdle, got.Status)
	require.Empty(t, got.CurrentTurnID)
	require.Empty(t, got.CurrentJobID)
}

func TestUpdateSessionLocked_RollbackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := newTestSession(t, s)

	sentinel := context.DeadlineExceeded
	err := s.UpdateSessionLocked(ctx, session.ID, func(sess *models.Session) error {
		sess.Status = models.StatusProcessing
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusIdle, got.Status)
}

func TestCreateMessageIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := newTestSession(t, s)

	msg := &models.Message{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		TurnID:     "turn-1",
		Role:       models.RoleUser,
		Content:    "Hello",
		ExternalID: "turn-1",
		CreatedAt:  time.Now().UTC(),
	}

	created, err := s.CreateMessageIdempotent(ctx, msg)
	require.NoError(t, err)
	require.True(t, created)

	dup := *msg
	dup.ID = uuid.NewString()
	created, err = s.CreateMessageIdempotent(ctx, &dup)
	require.NoError(t, err)
	require.False(t, created)

	msgs, err := s.ListMessages(ctx, session.ID, 0, time.Time{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestCreateMessageIdempotent_UniqueIndexCatchesRace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := newTestSession(t, s)

	msg := &models.Message{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		TurnID:     "turn-1",
		Role:       models.RoleUser,
		Content:    "Hello",
		ExternalID: "delivery-1",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.CreateMessage(ctx, msg))

	// direct insert bypasses the lookup, the way a concurrent duplicate
	// delivery would after both transactions observed zero rows
	dup := *msg
	dup.ID = uuid.NewString()
	require.Error(t, s.CreateMessage(ctx, &dup))

	created, err := s.CreateMessageIdempotent(ctx, &dup)
	require.NoError(t, err)
	require.False(t, created)

	// same external id in another session is a different delivery
	other := newTestSession(t, s)
	dup.SessionID = other.ID
	created, err = s.CreateMessageIdempotent(ctx, &dup)
	require.NoError(t, err)
	require.True(t, created)
}

func TestCreateMessage_BlankExternalIDsDoNotCollide(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := newTestSession(t, s)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.CreateMessage(ctx, &models.Message{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			TurnID:    "turn-1",
			Role:      models.RoleAssistant,
			Content:   "hi",
			CreatedAt: time.Now().UTC(),
		}))
	}

	msgs, err := s.ListMessages(ctx, session.ID, 0, time.Time{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
}

func TestMessageToolCallsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := newTestSession(t, s)

	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		TurnID:    "turn-1",
		Role:      models.RoleAssistant,
		ToolCalls: []models.ToolCall{
			{ID: "call-1", Name: "get_weather", Arguments: json.RawMessage(`{"city":"Berlin"}`)},
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateMessage(ctx, msg))

	got, err := s.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, got.ToolCalls, 1)
	require.Equal(t, "get_weather", got.ToolCalls[0].Name)
	require.JSONEq(t, `{"city":"Berlin"}`, string(got.ToolCalls[0].Arguments))
}

func TestListMessages_WindowKeepsNewest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := newTestSession(t, s)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreateMessage(ctx, &models.Message{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			TurnID:    "turn-1",
			Role:      models.RoleUser,
			Content:   string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	msgs, err := s.ListMessages(ctx, session.ID, 2, time.Time{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "d", msgs[0].Content)
	require.Equal(t, "e", msgs[1].Content)
}

func TestSuccessfulToolCapabilities_Scopes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := newTestSession(t, s)

	success := true
	failure := false
	now := time.Now().UTC()

	// success in an earlier turn
	require.NoError(t, s.CreateMessage(ctx, &models.Message{
		ID: uuid.NewString(), SessionID: session.ID, TurnID: "turn-1",
		Role: models.RoleTool, ToolCallID: "call-1", CapabilityName: "verify_customer",
		Success: &success, CreatedAt: now,
	}))
	// failure in the current turn
	require.NoError(t, s.CreateMessage(ctx, &models.Message{
		ID: uuid.NewString(), SessionID: session.ID, TurnID: "turn-2",
		Role: models.RoleTool, ToolCallID: "call-2", CapabilityName: "verify_customer",
		Success: &failure, CreatedAt: now.Add(time.Minute),
	}))

	turnScope, err := s.SuccessfulToolCapabilities(ctx, session.ID, "turn-2")
	require.NoError(t, err)
	require.False(t, turnScope["verify_customer"])

	sessionScope, err := s.SuccessfulToolCapabilities(ctx, session.ID, "")
	require.NoError(t, err)
	require.True(t, sessionScope["verify_customer"])
}

func TestClearPendingConfirmation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := newTestSession(t, s)

	msg := &models.Message{
		ID:                  uuid.NewString(),
		SessionID:           session.ID,
		TurnID:              "turn-1",
		Role:                models.RoleAssistant,
		ToolCalls:           []models.ToolCall{{ID: "call-1", Name: "delete_account", Arguments: json.RawMessage(`{}`)}},
		PendingConfirmation: json.RawMessage(`{"tool_call_id":"call-1"}`),
		CreatedAt:           time.Now().UTC(),
	}
	require.NoError(t, s.CreateMessage(ctx, msg))

	require.NoError(t, s.ClearPendingConfirmation(ctx, msg.ID))

	got, err := s.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	require.Nil(t, got.PendingConfirmation)
}

func TestApprovalLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := newTestSession(t, s)

	approval := &models.ApprovalRequest{
		ID:                 uuid.NewString(),
		SessionID:          session.ID,
		TurnID:             "turn-1",
		Cycle:              1,
		AssistantMessageID: "msg-1",
		ToolCallID:         "call-1",
		CapabilityName:     "delete_account",
		Arguments:          json.RawMessage(`{"confirmation_text":"yes, delete it"}`),
		Justification:      "yes, delete it",
		Status:             models.ApprovalPending,
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, s.CreateApproval(ctx, approval))

	decided, err := s.UpdateApprovalDecision(ctx, approval.ID, models.ApprovalApproved, "admin")
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, decided.Status)
	require.Equal(t, "admin", decided.DecidedBy)
	require.NotNil(t, decided.DecidedAt)

	// a second decision on the same request must fail
	_, err = s.UpdateApprovalDecision(ctx, approval.ID, models.ApprovalRejected, "admin")
	require.Error(t, err)
}
