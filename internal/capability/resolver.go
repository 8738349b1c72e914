// Package capability resolves named tool configurations per agent and maps
// implementation keys to executable behavior registered at process start.
package capability

import (
	"context"
	"fmt"
	"sync"

	"github.com/stoewer/go-strcase"

	"github.com/agentcore-dev/agentcore/go/internal/models"
	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

// Resolver looks up capability configuration by agent and name
type Resolver interface {
	ResolveAgent(ctx context.Context, agentName string) (*models.AgentDefinition, error)
	Resolve(ctx context.Context, agentName, capabilityName string) (*models.Capability, error)
}

// StaticResolver serves agent definitions loaded at startup. The agent
// configuration is read-mostly; lookups take a shared lock only.
type StaticResolver struct {
	mu     sync.RWMutex
	agents map[string]models.AgentDefinition
}

// NewStaticResolver builds a resolver from agent definitions
func NewStaticResolver(agents []models.AgentDefinition) *StaticResolver {
	byName := make(map[string]models.AgentDefinition, len(agents))
	for _, agent := range agents {
		byName[agent.Name] = agent
	}
	return &StaticResolver{agents: byName}
}

func (r *StaticResolver) ResolveAgent(_ context.Context, agentName string) (*models.AgentDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[agentName]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeConfiguration,
			fmt.Sprintf("agent %s not found", agentName), nil)
	}
	return &agent, nil
}

func (r *StaticResolver) Resolve(ctx context.Context, agentName, capabilityName string) (*models.Capability, error) {
	agent, err := r.ResolveAgent(ctx, agentName)
	if err != nil {
		return nil, err
	}

	wanted := NormalizeName(capabilityName)
	for i := range agent.Capabilities {
		capability := agent.Capabilities[i]
		if NormalizeName(capability.Name) != wanted {
			continue
		}
		if !capability.Active {
			return nil, apperrors.New(apperrors.ErrCodeConfiguration,
				fmt.Sprintf("capability %s is inactive", capability.Name), nil)
		}
		return &capability, nil
	}
	return nil, apperrors.New(apperrors.ErrCodeConfiguration,
		fmt.Sprintf("capability %s not found for agent %s", capabilityName, agentName), nil)
}

// ReplaceAgents swaps the served agent set, for configuration reload
func (r *StaticResolver) ReplaceAgents(agents []models.AgentDefinition) {
	byName := make(map[string]models.AgentDefinition, len(agents))
	for _, agent := range agents {
		byName[agent.Name] = agent
	}
	r.mu.Lock()
	r.agents = byName
	r.mu.Unlock()
}

// NormalizeName maps a tool name to its canonical snake_case form, so the
// LLM's rendering of a tool name matches configuration regardless of case
// style.
func NormalizeName(name string) string {
	return strcase.SnakeCase(name)
}
