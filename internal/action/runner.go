package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/agentcore-dev/agentcore/go/internal/capability"
	"github.com/agentcore-dev/agentcore/go/internal/models"
	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

// Runner builds executors from the registry and runs them behind the
// never-throws boundary.
type Runner struct {
	registry *capability.Registry
	timeout  time.Duration
	log      logr.Logger
}

// NewRunner creates a Runner. timeout bounds a single synchronous execution.
func NewRunner(registry *capability.Registry, timeout time.Duration, log logr.Logger) *Runner {
	return &Runner{
		registry: registry,
		timeout:  timeout,
		log:      log.WithName("action"),
	}
}

// Run executes the capability and always returns a structured result.
// Duration is measured here and recorded on the result.
func (r *Runner) Run(ctx context.Context, capDef models.Capability, args json.RawMessage, actionCtx Context) (result models.ActionResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error(fmt.Errorf("panic: %v", rec), "capability execution panicked",
				"capability", capDef.Name, "sessionID", actionCtx.SessionID)
			result = failedResult(apperrors.ErrCodeActionUnexpected,
				"capability execution panicked", fmt.Sprintf("%v", rec))
		}
		result.Duration = time.Since(start)
	}()

	built, err := r.registry.Build(capDef)
	if err != nil {
		return failedResult(apperrors.ErrCodeActionValidation,
			fmt.Sprintf("capability %s has no usable implementation", capDef.Name), err.Error())
	}
	executor, ok := built.(Executor)
	if !ok {
		return failedResult(apperrors.ErrCodeActionUnexpected,
			fmt.Sprintf("implementation %s does not execute", capDef.ImplementationKey), "")
	}

	execCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	result, err = executor.Execute(execCtx, args, actionCtx)
	if err != nil {
		return failedResult(classify(err), sanitizeMessage(err), err.Error())
	}
	return result
}

func failedResult(code, message, detail string) models.ActionResult {
	return models.ActionResult{
		Success:         false,
		ErrorCode:       code,
		ErrorMessage:    message,
		InternalDetails: detail,
	}
}

// classify maps executor errors onto the machine-readable code taxonomy
func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.ErrCodeActionSystemLimit
	case errors.Is(err, context.Canceled):
		return apperrors.ErrCodeActionSystemLimit
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return apperrors.ErrCodeActionUnexpected
}

// sanitizeMessage produces the short message surfaced to the LLM; full
// detail stays in InternalDetails.
func sanitizeMessage(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "the action did not finish in time"
	}
	return "the action failed unexpectedly"
}

// CodedError lets executors classify their own failures
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// NewCodedError creates a CodedError
func NewCodedError(code, message string, cause error) *CodedError {
	return &CodedError{Code: code, Message: message, Cause: cause}
}
