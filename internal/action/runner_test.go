package action

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/agentcore-dev/agentcore/go/internal/capability"
	"github.com/agentcore-dev/agentcore/go/internal/models"
	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

type fakeExecutor struct {
	name   string
	result models.ActionResult
	err    error
	panics bool
}

func (f *fakeExecutor) Name() string { return f.name }

func (f *fakeExecutor) Execute(context.Context, json.RawMessage, Context) (models.ActionResult, error) {
	if f.panics {
		panic("executor exploded")
	}
	return f.result, f.err
}

func newRunnerWith(t *testing.T, executor *fakeExecutor) (*Runner, models.Capability) {
	t.Helper()
	registry := capability.NewRegistry()
	require.NoError(t, registry.Register("test.impl", func(models.Capability) (capability.Executor, error) {
		return executor, nil
	}))
	capDef := models.Capability{Name: executor.name, ImplementationKey: "test.impl", Active: true}
	return NewRunner(registry, time.Minute, logr.Discard()), capDef
}

func TestRun_Success(t *testing.T) {
	runner, capDef := newRunnerWith(t, &fakeExecutor{
		name:   "get_weather",
		result: models.ActionResult{Success: true, Output: json.RawMessage(`{"temperature":21}`)},
	})

	result := runner.Run(context.Background(), capDef, json.RawMessage(`{"city":"Berlin"}`), Context{})
	require.True(t, result.Success)
	require.JSONEq(t, `{"temperature":21}`, string(result.Output))
	require.GreaterOrEqual(t, result.Duration, time.Duration(0))
}

func TestRun_ErrorConverted(t *testing.T) {
	runner, capDef := newRunnerWith(t, &fakeExecutor{
		name: "get_weather",
		err:  NewCodedError(apperrors.ErrCodeActionExternalCall, "weather service unavailable", errors.New("dial tcp: refused")),
	})

	result := runner.Run(context.Background(), capDef, nil, Context{})
	require.False(t, result.Success)
	require.Equal(t, apperrors.ErrCodeActionExternalCall, result.ErrorCode)
	require.Equal(t, "weather service unavailable", result.ErrorMessage)
	require.Contains(t, result.InternalDetails, "dial tcp")
}

func TestRun_PlainErrorIsUnexpected(t *testing.T) {
	runner, capDef := newRunnerWith(t, &fakeExecutor{name: "get_weather", err: errors.New("nil pointer somewhere")})

	result := runner.Run(context.Background(), capDef, nil, Context{})
	require.False(t, result.Success)
	require.Equal(t, apperrors.ErrCodeActionUnexpected, result.ErrorCode)
	// raw detail never leaks into the sanitized message
	require.NotContains(t, result.ErrorMessage, "nil pointer")
}

func TestRun_PanicRecovered(t *testing.T) {
	runner, capDef := newRunnerWith(t, &fakeExecutor{name: "get_weather", panics: true})

	result := runner.Run(context.Background(), capDef, nil, Context{})
	require.False(t, result.Success)
	require.Equal(t, apperrors.ErrCodeActionUnexpected, result.ErrorCode)
}

func TestRun_UnregisteredImplementation(t *testing.T) {
	runner := NewRunner(capability.NewRegistry(), time.Minute, logr.Discard())
	capDef := models.Capability{Name: "ghost", ImplementationKey: "missing.impl"}

	result := runner.Run(context.Background(), capDef, nil, Context{})
	require.False(t, result.Success)
	require.Equal(t, apperrors.ErrCodeActionValidation, result.ErrorCode)
}

func TestStaticExecutor(t *testing.T) {
	registry := capability.NewRegistry()
	require.NoError(t, RegisterStatic(registry))

	capDef := models.Capability{
		Name:              "get_weather",
		ImplementationKey: "static",
		Config:            json.RawMessage(`{"output":{"weather":"sunny"},"record_id":"rec-1"}`),
	}
	runner := NewRunner(registry, time.Minute, logr.Discard())
	result := runner.Run(context.Background(), capDef, nil, Context{})
	require.True(t, result.Success)
	require.JSONEq(t, `{"weather":"sunny"}`, string(result.Output))
	require.Equal(t, "rec-1", result.ContextRecordID)
}

func TestStaticExecutor_ConfiguredFailure(t *testing.T) {
	registry := capability.NewRegistry()
	require.NoError(t, RegisterStatic(registry))

	capDef := models.Capability{
		Name:              "send_invoice",
		ImplementationKey: "static",
		Config:            json.RawMessage(`{"fail":true,"error_code":"EXTERNAL_CALL","error_text":"invoice gateway down"}`),
	}
	runner := NewRunner(registry, time.Minute, logr.Discard())
	result := runner.Run(context.Background(), capDef, nil, Context{})
	require.False(t, result.Success)
	require.Equal(t, "EXTERNAL_CALL", result.ErrorCode)
}
