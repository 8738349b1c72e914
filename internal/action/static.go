package action

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentcore-dev/agentcore/go/internal/capability"
	"github.com/agentcore-dev/agentcore/go/internal/models"
)

// staticConfig is the capability config block for static implementations
type staticConfig struct {
	Output    json.RawMessage `json:"output"`
	Fail      bool            `json:"fail,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	ErrorText string          `json:"error_text,omitempty"`
	RecordID  string          `json:"record_id,omitempty"`
}

// StaticExecutor returns a configured canned result. It backs demo agents
// and tests that need a deterministic capability.
type StaticExecutor struct {
	capabilityName string
	cfg            staticConfig
}

// NewStaticExecutor builds a StaticExecutor from the capability config
func NewStaticExecutor(capDef models.Capability) (*StaticExecutor, error) {
	var cfg staticConfig
	if len(capDef.Config) > 0 {
		if err := json.Unmarshal(capDef.Config, &cfg); err != nil {
			return nil, fmt.Errorf("invalid static config for %s: %w", capDef.Name, err)
		}
	}
	if len(cfg.Output) == 0 {
		cfg.Output = json.RawMessage(`{}`)
	}
	return &StaticExecutor{capabilityName: capDef.Name, cfg: cfg}, nil
}

func (e *StaticExecutor) Name() string { return e.capabilityName }

func (e *StaticExecutor) Execute(_ context.Context, _ json.RawMessage, _ Context) (models.ActionResult, error) {
	if e.cfg.Fail {
		return models.ActionResult{
			Success:      false,
			ErrorCode:    e.cfg.ErrorCode,
			ErrorMessage: e.cfg.ErrorText,
		}, nil
	}
	return models.ActionResult{
		Success:         true,
		Output:          e.cfg.Output,
		ContextRecordID: e.cfg.RecordID,
	}, nil
}

// RegisterStatic registers the static implementation under the "static" key
func RegisterStatic(registry *capability.Registry) error {
	return registry.Register("static", func(capDef models.Capability) (capability.Executor, error) {
		return NewStaticExecutor(capDef)
	})
}
