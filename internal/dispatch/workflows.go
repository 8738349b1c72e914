// Package dispatch schedules turn continuations on Temporal. Each queued
// unit of work is a short workflow wrapping one re-entry into the
// orchestration loop; the loop's turn-identifier guard keeps retried and
// duplicate deliveries harmless.
package dispatch

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/agentcore-dev/agentcore/go/internal/orchestrator"
)

const (
	FollowUpWorkflowName    = "TurnFollowUpWorkflow"
	AsyncActionWorkflowName = "AsyncActionWorkflow"

	RunFollowUpActivityName   = "RunFollowUpCycle"
	ExecuteActionActivityName = "ExecuteQueuedAction"

	defaultActivityTimeout = 5 * time.Minute
)

func activityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: defaultActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	})
}

// FollowUpWorkflow runs one follow-up LLM cycle for an in-flight turn
func FollowUpWorkflow(ctx workflow.Context, job orchestrator.FollowUpJob) (*orchestrator.CycleResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("running follow-up cycle", "sessionID", job.SessionID, "cycle", job.Cycle)

	var result orchestrator.CycleResult
	if err := workflow.ExecuteActivity(activityOptions(ctx), RunFollowUpActivityName, job).Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AsyncActionWorkflow executes one queued capability and resumes the turn
func AsyncActionWorkflow(ctx workflow.Context, job orchestrator.AsyncActionJob) (*orchestrator.CycleResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("running async action", "sessionID", job.SessionID, "capability", job.CapabilityName)

	var result orchestrator.CycleResult
	if err := workflow.ExecuteActivity(activityOptions(ctx), ExecuteActionActivityName, job).Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
