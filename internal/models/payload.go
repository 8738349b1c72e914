package models

import "encoding/json"

const maxInternalDetailLen = 500

// NewToolPayload converts an ActionResult into the wire form stored as a tool
// message's content. Internal diagnostic detail is dropped here; only the
// sanitized error message crosses into history.
func NewToolPayload(capabilityName string, result ActionResult) ToolPayload {
	return ToolPayload{
		Success:        result.Success,
		CapabilityName: capabilityName,
		Output:         result.Output,
		ErrorCode:      result.ErrorCode,
		ErrorMessage:   truncate(result.ErrorMessage, maxInternalDetailLen),
		DurationMillis: result.Duration.Milliseconds(),
	}
}

// Encode serializes the payload for storage as tool message content
func (p ToolPayload) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeToolPayload parses a stored tool message's content back into the
// payload used for prerequisite checks
func DecodeToolPayload(content string) (ToolPayload, error) {
	var p ToolPayload
	err := json.Unmarshal([]byte(content), &p)
	return p, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
