package capability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentcore-dev/agentcore/go/internal/models"
	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

func testAgents() []models.AgentDefinition {
	return []models.AgentDefinition{
		{
			Name: "support",
			Capabilities: []models.Capability{
				{Name: "get_weather", ImplementationKey: "weather.lookup", Active: true},
				{Name: "legacy_export", ImplementationKey: "export.run", Active: false},
			},
		},
	}
}

func TestResolve(t *testing.T) {
	r := NewStaticResolver(testAgents())

	capability, err := r.Resolve(context.Background(), "support", "get_weather")
	require.NoError(t, err)
	require.Equal(t, "weather.lookup", capability.ImplementationKey)
}

func TestResolve_NormalizesName(t *testing.T) {
	r := NewStaticResolver(testAgents())

	capability, err := r.Resolve(context.Background(), "support", "GetWeather")
	require.NoError(t, err)
	require.Equal(t, "get_weather", capability.Name)
}

func TestResolve_NotFound(t *testing.T) {
	r := NewStaticResolver(testAgents())

	_, err := r.Resolve(context.Background(), "support", "unknown_tool")
	require.Error(t, err)
	require.Equal(t, apperrors.ErrCodeConfiguration, apperrors.CodeOf(err))
}

func TestResolve_Inactive(t *testing.T) {
	r := NewStaticResolver(testAgents())

	_, err := r.Resolve(context.Background(), "support", "legacy_export")
	require.Error(t, err)
	require.Equal(t, apperrors.ErrCodeConfiguration, apperrors.CodeOf(err))
}

func TestResolveAgent_NotFound(t *testing.T) {
	r := NewStaticResolver(testAgents())

	_, err := r.ResolveAgent(context.Background(), "ghost")
	require.Error(t, err)
	require.Equal(t, apperrors.ErrCodeConfiguration, apperrors.CodeOf(err))
}

type stubExecutor struct{ name string }

func (s stubExecutor) Name() string { return s.name }

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	err := registry.Register("weather.lookup", func(capability models.Capability) (Executor, error) {
		return stubExecutor{name: capability.Name}, nil
	})
	require.NoError(t, err)

	// duplicate registration is rejected
	err = registry.Register("weather.lookup", func(models.Capability) (Executor, error) { return nil, nil })
	require.Error(t, err)

	executor, err := registry.Build(models.Capability{Name: "get_weather", ImplementationKey: "weather.lookup"})
	require.NoError(t, err)
	require.Equal(t, "get_weather", executor.Name())

	_, err = registry.Build(models.Capability{ImplementationKey: "missing.key"})
	require.Error(t, err)
}
