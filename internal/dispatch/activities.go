package dispatch

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/agentcore-dev/agentcore/go/internal/orchestrator"
)

// Activities bridges Temporal activity execution into the orchestration
// loop. Activities carry only identifiers; all state is re-read from the
// record store.
type Activities struct {
	loop *orchestrator.Loop
	core *orchestrator.Core
	log  logr.Logger
}

// NewActivities creates the activity set
func NewActivities(loop *orchestrator.Loop, core *orchestrator.Core, log logr.Logger) *Activities {
	return &Activities{loop: loop, core: core, log: log.WithName("dispatch")}
}

// RunFollowUpCycle re-enters the loop for the next LLM round-trip
func (a *Activities) RunFollowUpCycle(ctx context.Context, job orchestrator.FollowUpJob) (orchestrator.CycleResult, error) {
	return a.loop.RunCycle(ctx, orchestrator.CycleInput{
		SessionID: job.SessionID,
		TurnID:    job.TurnID,
		Cycle:     job.Cycle,
	})
}

// ExecuteQueuedAction runs a dequeued async capability execution
func (a *Activities) ExecuteQueuedAction(ctx context.Context, job orchestrator.AsyncActionJob) (orchestrator.CycleResult, error) {
	return a.core.ExecuteQueuedAction(ctx, job)
}
