package dispatch

import (
	"github.com/go-logr/logr"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// WorkerOptions configures the continuation worker
type WorkerOptions struct {
	TaskQueue     string
	MaxConcurrent int
}

// Worker hosts the continuation workflows and activities
type Worker struct {
	worker worker.Worker
	log    logr.Logger
}

// NewWorker creates and registers the worker. Start must be called before
// any continuation can run.
func NewWorker(temporalClient client.Client, activities *Activities, options WorkerOptions, log logr.Logger) *Worker {
	if options.TaskQueue == "" {
		options.TaskQueue = DefaultTaskQueue
	}

	w := worker.New(temporalClient, options.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     options.MaxConcurrent,
		MaxConcurrentWorkflowTaskExecutionSize: options.MaxConcurrent,
	})

	w.RegisterWorkflowWithOptions(FollowUpWorkflow, workflow.RegisterOptions{Name: FollowUpWorkflowName})
	w.RegisterWorkflowWithOptions(AsyncActionWorkflow, workflow.RegisterOptions{Name: AsyncActionWorkflowName})
	w.RegisterActivityWithOptions(activities.RunFollowUpCycle, activity.RegisterOptions{Name: RunFollowUpActivityName})
	w.RegisterActivityWithOptions(activities.ExecuteQueuedAction, activity.RegisterOptions{Name: ExecuteActionActivityName})

	return &Worker{worker: w, log: log.WithName("dispatch")}
}

// Start begins polling the task queue
func (w *Worker) Start() error {
	w.log.Info("starting continuation worker")
	return w.worker.Start()
}

// Stop drains and stops the worker
func (w *Worker) Stop() {
	w.log.Info("stopping continuation worker")
	w.worker.Stop()
}
