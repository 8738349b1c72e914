package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentcore-dev/agentcore/go/internal/models"
)

const testConfigYAML = `
server:
  port: 9090
database:
  driver: sqlite
  dsn: ":memory:"
temporal:
  host_port: temporal.internal:7233
orchestrator:
  max_cycles: 3
llm:
  provider: anthropic
  model: claude-sonnet-4-20250514
agents:
  - name: support
    display_name: support agent
    instructions: You help customers.
    capabilities:
      - name: get_weather
        description: Look up current weather
        implementation_key: weather.lookup
        parameters_json: '{"type":"object","properties":{"city":{"type":"string"}}}'
      - name: delete_account
        description: Delete a customer account
        implementation_key: account.delete
        parameters_json: '{"type":"object"}'
        requires_approval: true
        confirmation_parameter: confirmation_text
      - name: send_invoice
        description: Send an invoice
        implementation_key: invoice.send
        parameters_json: '{"type":"object"}'
        execution_prerequisites: [verify_customer]
        prerequisite_scope: turn
        halt_on_error: false
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, testConfigYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "temporal.internal:7233", cfg.Temporal.HostPort)
	require.Equal(t, 3, cfg.Orchestrator.MaxCycles)
	// defaults fill what the file omits
	require.Equal(t, "default", cfg.Temporal.Namespace)
	require.Equal(t, "turn-orchestration-queue", cfg.Temporal.TaskQueue)
	require.Equal(t, 40, cfg.Orchestrator.HistoryWindow)
}

func TestAgentDefinitions(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, testConfigYAML))
	require.NoError(t, err)

	agents := cfg.AgentDefinitions()
	require.Len(t, agents, 1)
	require.Equal(t, "support", agents[0].Name)
	require.Len(t, agents[0].Capabilities, 3)

	weather := agents[0].Capabilities[0]
	require.True(t, weather.Active)
	require.True(t, weather.HaltOnError)
	require.Equal(t, models.ScopeTurn, weather.PrerequisiteScope)

	deleteAccount := agents[0].Capabilities[1]
	require.True(t, deleteAccount.RequiresApproval)
	require.Equal(t, "confirmation_text", deleteAccount.ConfirmationParameter)

	invoice := agents[0].Capabilities[2]
	require.Equal(t, []string{"verify_customer"}, invoice.ExecutionPrerequisites)
	require.False(t, invoice.HaltOnError)
}

func TestValidate_MissingFields(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "llm.provider is required")
	require.Contains(t, err.Error(), "at least one agent")
}

func TestValidate_ApprovalWithoutConfirmationParameter(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, testConfigYAML))
	require.NoError(t, err)

	cfg.Agents[0].Capabilities[1].ConfirmationParameter = ""
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "confirmation_parameter")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 5, cfg.Orchestrator.MaxCycles)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 8080, cfg.Server.Port)
}
