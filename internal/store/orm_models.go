package store

import (
	"encoding/json"
	"time"

	"github.com/agentcore-dev/agentcore/go/internal/models"
)

type sessionRow struct {
	ID                     string    `gorm:"primaryKey;size:64"`
	UserID                 string    `gorm:"size:191;index;not null"`
	AgentName              string    `gorm:"size:191;not null"`
	Status                 string    `gorm:"size:64;not null"`
	CurrentTurnID          string    `gorm:"size:64"`
	CurrentJobID           string    `gorm:"size:191"`
	CurrentStepDescription string    `gorm:"size:255"`
	LastError              string    `gorm:"type:text"`
	LastActivityAt         time.Time `gorm:"not null"`
	CreatedAt              time.Time `gorm:"not null"`
	UpdatedAt              time.Time `gorm:"not null"`
}

func (sessionRow) TableName() string {
	return "sessions"
}

func (r sessionRow) toRecord() models.Session {
	return models.Session{
		ID:                     r.ID,
		UserID:                 r.UserID,
		AgentName:              r.AgentName,
		Status:                 models.ProcessingStatus(r.Status),
		CurrentTurnID:          r.CurrentTurnID,
		CurrentJobID:           r.CurrentJobID,
		CurrentStepDescription: r.CurrentStepDescription,
		LastError:              r.LastError,
		LastActivityAt:         r.LastActivityAt,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

func sessionRowFromRecord(rec models.Session) sessionRow {
	return sessionRow{
		ID:                     rec.ID,
		UserID:                 rec.UserID,
		AgentName:              rec.AgentName,
		Status:                 string(rec.Status),
		CurrentTurnID:          rec.CurrentTurnID,
		CurrentJobID:           rec.CurrentJobID,
		CurrentStepDescription: rec.CurrentStepDescription,
		LastError:              rec.LastError,
		LastActivityAt:         rec.LastActivityAt,
		CreatedAt:              rec.CreatedAt,
		UpdatedAt:              rec.UpdatedAt,
	}
}

type messageRow struct {
	ID                  string    `gorm:"primaryKey;size:64"`
	SessionID           string    `gorm:"size:64;index:idx_messages_session_created,priority:1;uniqueIndex:idx_messages_session_external,priority:1;not null"`
	TurnID              string    `gorm:"size:64;index"`
	Role                string    `gorm:"size:32;not null"`
	Content             string    `gorm:"type:text"`
	ToolCallsJSON       string    `gorm:"type:text"`
	ToolCallID          string    `gorm:"size:191;index"`
	ParentMessageID     string    `gorm:"size:64"`
	PendingConfirmation string    `gorm:"type:text"`
	CapabilityName      string    `gorm:"size:191"`
	Success             *bool     `gorm:""`
	ContextRecordID     string    `gorm:"size:191"`
	ContextRecordData   string    `gorm:"type:text"`
	// nil rather than "" for messages without a delivery id, so the unique
	// index only constrains rows that actually carry one
	ExternalID          *string   `gorm:"size:191;uniqueIndex:idx_messages_session_external,priority:2"`
	CreatedAt           time.Time `gorm:"not null;index:idx_messages_session_created,priority:2"`
}

func (messageRow) TableName() string {
	return "messages"
}

func (r messageRow) toRecord() (models.Message, error) {
	msg := models.Message{
		ID:              r.ID,
		SessionID:       r.SessionID,
		TurnID:          r.TurnID,
		Role:            models.Role(r.Role),
		Content:         r.Content,
		ToolCallID:      r.ToolCallID,
		ParentMessageID: r.ParentMessageID,
		CapabilityName:  r.CapabilityName,
		Success:         r.Success,
		ContextRecordID: r.ContextRecordID,
		CreatedAt:       r.CreatedAt,
	}
	if r.ExternalID != nil {
		msg.ExternalID = *r.ExternalID
	}
	if r.ToolCallsJSON != "" {
		if err := json.Unmarshal([]byte(r.ToolCallsJSON), &msg.ToolCalls); err != nil {
			return models.Message{}, err
		}
	}
	if r.PendingConfirmation != "" {
		msg.PendingConfirmation = json.RawMessage(r.PendingConfirmation)
	}
	if r.ContextRecordData != "" {
		msg.ContextRecordData = json.RawMessage(r.ContextRecordData)
	}
	return msg, nil
}

func messageRowFromRecord(rec models.Message) (messageRow, error) {
	row := messageRow{
		ID:                  rec.ID,
		SessionID:           rec.SessionID,
		TurnID:              rec.TurnID,
		Role:                string(rec.Role),
		Content:             rec.Content,
		ToolCallID:          rec.ToolCallID,
		ParentMessageID:     rec.ParentMessageID,
		PendingConfirmation: string(rec.PendingConfirmation),
		CapabilityName:      rec.CapabilityName,
		Success:             rec.Success,
		ContextRecordID:     rec.ContextRecordID,
		ContextRecordData:   string(rec.ContextRecordData),
		CreatedAt:           rec.CreatedAt,
	}
	if rec.ExternalID != "" {
		row.ExternalID = &rec.ExternalID
	}
	if len(rec.ToolCalls) > 0 {
		data, err := json.Marshal(rec.ToolCalls)
		if err != nil {
			return messageRow{}, err
		}
		row.ToolCallsJSON = string(data)
	}
	return row, nil
}

type approvalRow struct {
	ID                 string     `gorm:"primaryKey;size:64"`
	SessionID          string     `gorm:"size:64;index;not null"`
	TurnID             string     `gorm:"size:64;not null"`
	Cycle              int        `gorm:"not null"`
	AssistantMessageID string     `gorm:"size:64;not null"`
	ToolCallID         string     `gorm:"size:191;not null"`
	CapabilityName     string     `gorm:"size:191;not null"`
	ArgumentsJSON      string     `gorm:"type:text"`
	Justification      string     `gorm:"type:text"`
	Status             string     `gorm:"size:32;not null"`
	DecidedBy          string     `gorm:"size:191"`
	DecidedAt          *time.Time `gorm:""`
	CreatedAt          time.Time  `gorm:"not null"`
}

func (approvalRow) TableName() string {
	return "approval_requests"
}

func (r approvalRow) toRecord() models.ApprovalRequest {
	rec := models.ApprovalRequest{
		ID:                 r.ID,
		SessionID:          r.SessionID,
		TurnID:             r.TurnID,
		Cycle:              r.Cycle,
		AssistantMessageID: r.AssistantMessageID,
		ToolCallID:         r.ToolCallID,
		CapabilityName:     r.CapabilityName,
		Justification:      r.Justification,
		Status:             models.ApprovalStatus(r.Status),
		DecidedBy:          r.DecidedBy,
		DecidedAt:          r.DecidedAt,
		CreatedAt:          r.CreatedAt,
	}
	if r.ArgumentsJSON != "" {
		rec.Arguments = json.RawMessage(r.ArgumentsJSON)
	}
	return rec
}

func approvalRowFromRecord(rec models.ApprovalRequest) approvalRow {
	return approvalRow{
		ID:                 rec.ID,
		SessionID:          rec.SessionID,
		TurnID:             rec.TurnID,
		Cycle:              rec.Cycle,
		AssistantMessageID: rec.AssistantMessageID,
		ToolCallID:         rec.ToolCallID,
		CapabilityName:     rec.CapabilityName,
		ArgumentsJSON:      string(rec.Arguments),
		Justification:      rec.Justification,
		Status:             string(rec.Status),
		DecidedBy:          rec.DecidedBy,
		DecidedAt:          rec.DecidedAt,
		CreatedAt:          rec.CreatedAt,
	}
}
