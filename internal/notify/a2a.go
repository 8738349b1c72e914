package notify

import (
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/agentcore-dev/agentcore/go/internal/models"
)

// TaskStateFor maps a session's processing status onto the A2A task state
// surfaced to protocol clients.
func TaskStateFor(status models.ProcessingStatus) protocol.TaskState {
	switch status {
	case models.StatusProcessing, models.StatusAwaitingFollowup, models.StatusAwaitingAction:
		return protocol.TaskStateWorking
	case models.StatusAwaitingUserConfirmation:
		return protocol.TaskStateInputRequired
	case models.StatusFailed:
		return protocol.TaskStateFailed
	case models.StatusIdle:
		return protocol.TaskStateCompleted
	default:
		return protocol.TaskStateSubmitted
	}
}
