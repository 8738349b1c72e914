package store

import (
	"context"
	"errors"
	"time"

	"github.com/agentcore-dev/agentcore/go/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// SessionStore persists session records. All status mutation goes through
// UpdateSessionLocked so that one writer owns a session at a time.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]models.Session, error)

	// UpdateSessionLocked runs fn against the current session row inside a
	// transaction holding an exclusive row lock. Changes made by fn are
	// persisted when fn returns nil; any error rolls back.
	UpdateSessionLocked(ctx context.Context, id string, fn func(session *models.Session) error) error
}

// MessageStore is the append-only store of turn messages
type MessageStore interface {
	CreateMessage(ctx context.Context, message *models.Message) error

	// CreateMessageIdempotent inserts the message unless one with the same
	// session and external id already exists. Reports whether a row was
	// created.
	CreateMessageIdempotent(ctx context.Context, message *models.Message) (bool, error)

	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, sessionID string, limit int, before time.Time) ([]models.Message, error)
	ListTurnMessages(ctx context.Context, sessionID, turnID string) ([]models.Message, error)

	// SuccessfulToolCapabilities returns the set of capability names with a
	// recorded successful tool result. An empty turnID widens the scope to
	// the whole session.
	SuccessfulToolCapabilities(ctx context.Context, sessionID, turnID string) (map[string]bool, error)

	ClearPendingConfirmation(ctx context.Context, messageID string) error
}

// ApprovalStore persists human approval requests
type ApprovalStore interface {
	CreateApproval(ctx context.Context, approval *models.ApprovalRequest) error
	GetApproval(ctx context.Context, id string) (*models.ApprovalRequest, error)
	UpdateApprovalDecision(ctx context.Context, id string, status models.ApprovalStatus, decidedBy string) (*models.ApprovalRequest, error)
}

// Store aggregates the persistence interfaces backed by one database
type Store interface {
	SessionStore
	MessageStore
	ApprovalStore
	Close() error
}
