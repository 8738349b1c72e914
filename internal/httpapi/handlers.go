package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/agentcore-dev/agentcore/go/api"
	"github.com/agentcore-dev/agentcore/go/internal/models"
	"github.com/agentcore-dev/agentcore/go/internal/notify"
	"github.com/agentcore-dev/agentcore/go/internal/store"
	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var request api.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid request body", err))
		return
	}
	if request.UserID == "" {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "user_id is required", nil))
		return
	}

	agentName := request.AgentName
	if agentName == "" {
		agentName = s.defaultAgent
	}
	agent, err := s.resolver.ResolveAgent(r.Context(), agentName)
	if err != nil {
		s.writeError(w, err)
		return
	}

	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    request.UserID,
		AgentName: agent.Name,
		Status:    models.StatusIdle,
	}
	if err := s.store.CreateSession(r.Context(), session); err != nil {
		s.writeError(w, apperrors.New(apperrors.ErrCodeSessionCreate, "failed to create session", err))
		return
	}

	s.log.Info("session created", "sessionID", session.ID, "agent", agent.Name)
	s.writeJSON(w, http.StatusCreated, api.CreateSessionResponse{
		SessionID:      session.ID,
		AgentName:      agent.Name,
		WelcomeMessage: agent.WelcomeMessage,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	session, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, apperrors.New(apperrors.ErrCodeSessionGet, "session not found", err))
			return
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionView(session))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "limit must be a positive integer", err))
			return
		}
		limit = parsed
	}

	sessions, err := s.store.ListSessions(r.Context(), userID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	response := api.SessionListResponse{Sessions: make([]api.SessionView, 0, len(sessions))}
	for i := range sessions {
		response.Sessions = append(response.Sessions, sessionView(&sessions[i]))
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]

	var request api.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid request body", err))
		return
	}

	record := models.RecordContext{RecordID: request.RecordID, Data: request.RecordData}
	result, err := s.loop.ProcessUserMessage(r.Context(), sessionID, request.Text, request.ExternalID, record)
	if err != nil {
		s.writeError(w, err)
		return
	}

	response := api.SendMessageResponse{
		Outcome:     string(result.Outcome),
		SessionID:   sessionID,
		ErrorCode:   result.ErrorCode,
		ErrorDetail: result.ErrorDetail,
	}
	if result.FinalMessageID != "" {
		if message, err := s.store.GetMessage(r.Context(), result.FinalMessageID); err == nil {
			view := messageView(*message)
			response.Message = &view
		}
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "limit must be a non-negative integer", err))
			return
		}
		limit = parsed
	}
	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "before must be RFC3339", err))
			return
		}
		before = parsed
	}

	if _, err := s.store.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, apperrors.New(apperrors.ErrCodeSessionGet, "session not found", err))
			return
		}
		s.writeError(w, err)
		return
	}

	var messages []models.Message
	var err error
	if turnID := r.URL.Query().Get("turn"); turnID != "" {
		messages, err = s.store.ListTurnMessages(r.Context(), sessionID, turnID)
	} else {
		messages, err = s.store.ListMessages(r.Context(), sessionID, limit, before)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	views := make([]api.MessageView, 0, len(messages))
	for _, message := range messages {
		if !uiVisible(message) {
			continue
		}
		views = append(views, messageView(message))
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{SessionID: sessionID, Messages: views})
}

func (s *Server) handleForceFail(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]

	var request api.FailTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid request body", err))
		return
	}
	reason := request.Reason
	if reason == "" {
		reason = "administratively failed"
	}

	// blank turn id forces the transition regardless of the current turn
	if err := s.lifecycle.FailTurn(r.Context(), sessionID, "", apperrors.ErrCodeUnexpected, reason); err != nil {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "session has no turn in flight", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApprovalDecision(w http.ResponseWriter, r *http.Request) {
	approvalID := mux.Vars(r)["approvalID"]

	var request api.ApprovalDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid request body", err))
		return
	}

	result, err := s.core.ResolveApproval(r.Context(), approvalID, request.DecidedBy, request.Approved)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ApprovalDecisionResponse{
		Outcome:     string(result.Outcome),
		ErrorCode:   result.ErrorCode,
		ErrorDetail: result.ErrorDetail,
	})
}

// uiVisible filters the UI projection: tool results and tool-call-only
// assistant rows stay internal.
func uiVisible(message models.Message) bool {
	switch message.Role {
	case models.RoleTool, models.RoleSystem:
		return false
	case models.RoleAssistant:
		return message.Content != ""
	default:
		return true
	}
}

func messageView(message models.Message) api.MessageView {
	return api.MessageView{
		ID:        message.ID,
		Role:      string(message.Role),
		Content:   message.Content,
		TurnID:    message.TurnID,
		CreatedAt: message.CreatedAt,
	}
}

func sessionView(session *models.Session) api.SessionView {
	return api.SessionView{
		ID:              session.ID,
		UserID:          session.UserID,
		AgentName:       session.AgentName,
		Status:          string(session.Status),
		TaskState:       string(notify.TaskStateFor(session.Status)),
		StepDescription: session.CurrentStepDescription,
		LastError:       session.LastError,
		LastActivityAt:  session.LastActivityAt,
		CreatedAt:       session.CreatedAt,
	}
}
