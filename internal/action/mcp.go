package action

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/agentcore-dev/agentcore/go/internal/capability"
	"github.com/agentcore-dev/agentcore/go/internal/models"
	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

// mcpConfig is the capability config block for MCP-backed implementations
type mcpConfig struct {
	Endpoint string `json:"endpoint"`
	ToolName string `json:"tool_name,omitempty"`
}

// MCPExecutor runs a capability by calling a tool on a remote MCP server
type MCPExecutor struct {
	capabilityName string
	toolName       string
	endpoint       string
}

// NewMCPExecutor builds an MCPExecutor from the capability's config block
func NewMCPExecutor(capDef models.Capability) (*MCPExecutor, error) {
	var cfg mcpConfig
	if len(capDef.Config) > 0 {
		if err := json.Unmarshal(capDef.Config, &cfg); err != nil {
			return nil, fmt.Errorf("invalid mcp config for %s: %w", capDef.Name, err)
		}
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("mcp capability %s requires an endpoint", capDef.Name)
	}
	toolName := cfg.ToolName
	if toolName == "" {
		toolName = capDef.Name
	}
	return &MCPExecutor{
		capabilityName: capDef.Name,
		toolName:       toolName,
		endpoint:       cfg.Endpoint,
	}, nil
}

func (e *MCPExecutor) Name() string { return e.capabilityName }

func (e *MCPExecutor) Execute(ctx context.Context, args json.RawMessage, _ Context) (models.ActionResult, error) {
	mcpClient, err := client.NewStreamableHttpClient(e.endpoint)
	if err != nil {
		return models.ActionResult{}, NewCodedError(apperrors.ErrCodeActionExternalCall,
			"could not reach the tool server", err)
	}
	defer mcpClient.Close()

	if err := mcpClient.Start(ctx); err != nil {
		return models.ActionResult{}, NewCodedError(apperrors.ErrCodeActionExternalCall,
			"could not reach the tool server", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "agentcore", Version: "1.0.0"}
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		return models.ActionResult{}, NewCodedError(apperrors.ErrCodeActionExternalCall,
			"tool server rejected the session", err)
	}

	var arguments map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return models.ActionResult{}, NewCodedError(apperrors.ErrCodeActionValidation,
				"tool arguments are not a JSON object", err)
		}
	}

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = e.toolName
	callReq.Params.Arguments = arguments

	result, err := mcpClient.CallTool(ctx, callReq)
	if err != nil {
		return models.ActionResult{}, NewCodedError(apperrors.ErrCodeActionExternalCall,
			fmt.Sprintf("tool %s failed on the tool server", e.toolName), err)
	}

	text := flattenContent(result.Content)
	if result.IsError {
		return models.ActionResult{
			Success:         false,
			ErrorCode:       apperrors.ErrCodeActionExternalCall,
			ErrorMessage:    text,
			InternalDetails: text,
		}, nil
	}

	output, err := json.Marshal(map[string]string{"result": text})
	if err != nil {
		return models.ActionResult{}, err
	}
	return models.ActionResult{Success: true, Output: output}, nil
}

func flattenContent(content []mcp.Content) string {
	var parts []string
	for _, item := range content {
		if text, ok := mcp.AsTextContent(item); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// RegisterMCP registers the MCP implementation under the "mcp" key
func RegisterMCP(registry *capability.Registry) error {
	return registry.Register("mcp", func(capDef models.Capability) (capability.Executor, error) {
		return NewMCPExecutor(capDef)
	})
}
