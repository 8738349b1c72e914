package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/agentcore-dev/agentcore/go/internal/models"
)

// Config represents the orchestrator service configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Temporal     TemporalConfig     `yaml:"temporal"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	LLM          LLMConfig          `yaml:"llm"`
	Agents       []AgentConfig      `yaml:"agents"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds record store configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// TemporalConfig holds Temporal client configuration
type TemporalConfig struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
}

// OrchestratorConfig holds turn orchestration limits
type OrchestratorConfig struct {
	MaxCycles      int           `yaml:"max_cycles"`
	HistoryWindow  int           `yaml:"history_window"`
	ActionTimeout  time.Duration `yaml:"action_timeout"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// LLMConfig holds LLM provider configuration. The concrete adapter lives
// behind the llm.Client interface; this only selects and parameterizes it.
type LLMConfig struct {
	Provider  string  `yaml:"provider"`
	Model     string  `yaml:"model"`
	APIKey    string  `yaml:"api_key,omitempty"`
	APIKeyEnv string  `yaml:"api_key_env,omitempty"`
	Endpoint  string  `yaml:"endpoint,omitempty"`
	MaxTokens int     `yaml:"max_tokens"`
	Temp      float64 `yaml:"temperature"`
}

// AgentConfig is the YAML form of an agent definition
type AgentConfig struct {
	Name           string             `yaml:"name"`
	DisplayName    string             `yaml:"display_name,omitempty"`
	Instructions   string             `yaml:"instructions"`
	WelcomeMessage string             `yaml:"welcome_message,omitempty"`
	Capabilities   []CapabilityConfig `yaml:"capabilities"`
}

// CapabilityConfig is the YAML form of a capability
type CapabilityConfig struct {
	Name                   string   `yaml:"name"`
	DisplayName            string   `yaml:"display_name,omitempty"`
	Description            string   `yaml:"description"`
	ImplementationKey      string   `yaml:"implementation_key"`
	ParametersJSON         string   `yaml:"parameters_json"`
	RequiresApproval       bool     `yaml:"requires_approval"`
	ConfirmationParameter  string   `yaml:"confirmation_parameter,omitempty"`
	RunAsynchronously      bool     `yaml:"run_asynchronously"`
	ExecutionPrerequisites []string `yaml:"execution_prerequisites,omitempty"`
	PrerequisiteScope      string   `yaml:"prerequisite_scope,omitempty"`
	HaltOnError            *bool    `yaml:"halt_on_error,omitempty"`
	Active                 *bool    `yaml:"active,omitempty"`
	ConfigJSON             string   `yaml:"config_json,omitempty"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.LLM.APIKeyEnv != "" {
		config.LLM.APIKey = os.Getenv(config.LLM.APIKeyEnv)
	}

	config.SetDefaults()

	return &config, nil
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "agentcore.db"
	}

	if c.Temporal.HostPort == "" {
		c.Temporal.HostPort = "localhost:7233"
	}
	if c.Temporal.Namespace == "" {
		c.Temporal.Namespace = "default"
	}
	if c.Temporal.TaskQueue == "" {
		c.Temporal.TaskQueue = "turn-orchestration-queue"
	}

	if c.Orchestrator.MaxCycles == 0 {
		c.Orchestrator.MaxCycles = 5
	}
	if c.Orchestrator.HistoryWindow == 0 {
		c.Orchestrator.HistoryWindow = 40
	}
	if c.Orchestrator.ActionTimeout == 0 {
		c.Orchestrator.ActionTimeout = 2 * time.Minute
	}
	if c.Orchestrator.DefaultTimeout == 0 {
		c.Orchestrator.DefaultTimeout = 5 * time.Minute
	}

	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 4096
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Temporal.HostPort == "" {
		result = multierror.Append(result, fmt.Errorf("temporal.host_port is required"))
	}
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		result = multierror.Append(result, fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver))
	}
	if c.LLM.Provider == "" {
		result = multierror.Append(result, fmt.Errorf("llm.provider is required"))
	}
	if len(c.Agents) == 0 {
		result = multierror.Append(result, fmt.Errorf("at least one agent must be configured"))
	}

	for _, agent := range c.Agents {
		if agent.Name == "" {
			result = multierror.Append(result, fmt.Errorf("agent name is required"))
		}
		for _, capability := range agent.Capabilities {
			if capability.Name == "" {
				result = multierror.Append(result, fmt.Errorf("agent %s: capability name is required", agent.Name))
			}
			if capability.ImplementationKey == "" {
				result = multierror.Append(result, fmt.Errorf("agent %s: capability %s requires implementation_key", agent.Name, capability.Name))
			}
			if capability.RequiresApproval && capability.ConfirmationParameter == "" {
				result = multierror.Append(result, fmt.Errorf("agent %s: approval-gated capability %s requires confirmation_parameter", agent.Name, capability.Name))
			}
			if s := capability.PrerequisiteScope; s != "" && s != string(models.ScopeTurn) && s != string(models.ScopeSession) {
				result = multierror.Append(result, fmt.Errorf("agent %s: capability %s has invalid prerequisite_scope %q", agent.Name, capability.Name, s))
			}
		}
	}

	return result.ErrorOrNil()
}

// AgentDefinitions converts the YAML agent configuration into domain types
func (c *Config) AgentDefinitions() []models.AgentDefinition {
	agents := make([]models.AgentDefinition, 0, len(c.Agents))
	for _, a := range c.Agents {
		def := models.AgentDefinition{
			Name:           a.Name,
			DisplayName:    a.DisplayName,
			Instructions:   a.Instructions,
			WelcomeMessage: a.WelcomeMessage,
		}
		for _, cc := range a.Capabilities {
			capability := models.Capability{
				Name:                   cc.Name,
				DisplayName:            cc.DisplayName,
				Description:            cc.Description,
				ImplementationKey:      cc.ImplementationKey,
				Parameters:             []byte(cc.ParametersJSON),
				RequiresApproval:       cc.RequiresApproval,
				ConfirmationParameter:  cc.ConfirmationParameter,
				RunAsynchronously:      cc.RunAsynchronously,
				ExecutionPrerequisites: cc.ExecutionPrerequisites,
				PrerequisiteScope:      models.PrerequisiteScope(cc.PrerequisiteScope),
				HaltOnError:            true,
				Active:                 true,
			}
			if cc.HaltOnError != nil {
				capability.HaltOnError = *cc.HaltOnError
			}
			if cc.Active != nil {
				capability.Active = *cc.Active
			}
			if capability.PrerequisiteScope == "" {
				capability.PrerequisiteScope = models.ScopeTurn
			}
			if cc.ConfigJSON != "" {
				capability.Config = []byte(cc.ConfigJSON)
			}
			def.Capabilities = append(def.Capabilities, capability)
		}
		agents = append(agents, def)
	}
	return agents
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	config := &Config{
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4.1",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Agents: []AgentConfig{{
			Name:         "assistant",
			Instructions: "You are a helpful assistant.",
		}},
	}
	config.SetDefaults()
	return config
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
