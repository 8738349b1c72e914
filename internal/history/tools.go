package history

import (
	"encoding/json"
	"fmt"

	"github.com/agentcore-dev/agentcore/go/internal/llm"
	"github.com/agentcore-dev/agentcore/go/internal/models"
	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

// BuildToolDefinitions converts the active capabilities of an agent into
// provider-neutral tool definitions. Approval-gated capabilities get their
// confirmation parameter injected into the schema as a required boolean so
// the model cannot invoke them without an explicit decision field.
func BuildToolDefinitions(capabilities []models.Capability) ([]llm.ToolDefinition, error) {
	defs := make([]llm.ToolDefinition, 0, len(capabilities))
	for _, capability := range capabilities {
		if !capability.Active {
			continue
		}
		schema, err := capabilitySchema(capability)
		if err != nil {
			return nil, err
		}
		description := capability.Description
		if description == "" {
			description = capability.DisplayName
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        capability.Name,
			Description: description,
			Parameters:  schema,
		})
	}
	return defs, nil
}

func capabilitySchema(capability models.Capability) (map[string]any, error) {
	schema := map[string]any{}
	if len(capability.Parameters) > 0 {
		if err := json.Unmarshal(capability.Parameters, &schema); err != nil {
			return nil, apperrors.New(apperrors.ErrCodeConfiguration,
				fmt.Sprintf("capability %s has an invalid parameter schema", capability.Name), err)
		}
	}
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}

	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		properties = map[string]any{}
		schema["properties"] = properties
	}

	if enums := picklistEnums(capability); len(enums) > 0 {
		for field, values := range enums {
			property, ok := properties[field].(map[string]any)
			if !ok {
				property = map[string]any{"type": "string"}
				properties[field] = property
			}
			property["enum"] = values
		}
	}

	if capability.RequiresApproval && capability.ConfirmationParameter != "" {
		properties[capability.ConfirmationParameter] = map[string]any{
			"type":        "string",
			"description": "One-sentence justification confirming the user asked for this action. Required.",
		}
		schema["required"] = appendRequired(schema["required"], capability.ConfirmationParameter)
	}

	return schema, nil
}

// picklistEnums reads enum constraints out of the capability config block,
// keyed under "picklists" as field name to allowed values.
func picklistEnums(capability models.Capability) map[string][]any {
	if len(capability.Config) == 0 {
		return nil
	}
	var config struct {
		Picklists map[string][]any `json:"picklists"`
	}
	if err := json.Unmarshal(capability.Config, &config); err != nil {
		return nil
	}
	return config.Picklists
}

func appendRequired(existing any, name string) []any {
	required, _ := existing.([]any)
	for _, entry := range required {
		if entry == name {
			return required
		}
	}
	return append(required, name)
}
