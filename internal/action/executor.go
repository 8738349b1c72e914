// Package action defines the capability execution boundary. Nothing thrown
// by an executor crosses it: panics and errors are converted into failed
// ActionResults with machine-readable codes.
package action

import (
	"context"
	"encoding/json"

	"github.com/agentcore-dev/agentcore/go/internal/models"
)

// Context carries the invocation context an executor may need
type Context struct {
	SessionID string
	TurnID    string
	Cycle     int
	UserID    string
	AgentName string
	Record    models.RecordContext
}

// Executor runs a single capability implementation
type Executor interface {
	Name() string
	Execute(ctx context.Context, args json.RawMessage, actionCtx Context) (models.ActionResult, error)
}
