package dispatch

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"go.temporal.io/sdk/client"

	"github.com/agentcore-dev/agentcore/go/internal/orchestrator"
)

// DefaultTaskQueue is the task queue turn continuations run on
const DefaultTaskQueue = "turn-orchestration-queue"

// TemporalDispatcher starts continuation workflows on a Temporal cluster.
// Workflow identifiers encode the turn and cycle, so a double enqueue of
// the same continuation collapses into one execution.
type TemporalDispatcher struct {
	client    client.Client
	taskQueue string
	log       logr.Logger
}

// NewTemporalDispatcher creates a TemporalDispatcher
func NewTemporalDispatcher(temporalClient client.Client, taskQueue string, log logr.Logger) *TemporalDispatcher {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &TemporalDispatcher{
		client:    temporalClient,
		taskQueue: taskQueue,
		log:       log.WithName("dispatch"),
	}
}

func (d *TemporalDispatcher) EnqueueFollowUp(ctx context.Context, job orchestrator.FollowUpJob) (string, error) {
	options := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("followup-%s-%d", job.TurnID, job.Cycle),
		TaskQueue: d.taskQueue,
	}
	run, err := d.client.ExecuteWorkflow(ctx, options, FollowUpWorkflowName, job)
	if err != nil {
		return "", fmt.Errorf("failed to start follow-up workflow: %w", err)
	}
	d.log.V(1).Info("queued follow-up", "sessionID", job.SessionID,
		"cycle", job.Cycle, "workflowID", run.GetID())
	return run.GetID(), nil
}

func (d *TemporalDispatcher) EnqueueAsyncAction(ctx context.Context, job orchestrator.AsyncActionJob) (string, error) {
	options := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("action-%s-%s", job.TurnID, job.ToolCallID),
		TaskQueue: d.taskQueue,
	}
	run, err := d.client.ExecuteWorkflow(ctx, options, AsyncActionWorkflowName, job)
	if err != nil {
		return "", fmt.Errorf("failed to start action workflow: %w", err)
	}
	d.log.V(1).Info("queued async action", "sessionID", job.SessionID,
		"capability", job.CapabilityName, "workflowID", run.GetID())
	return run.GetID(), nil
}
