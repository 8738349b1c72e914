// Package httpapi serves the orchestrator's REST surface
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentcore-dev/agentcore/go/api"
	"github.com/agentcore-dev/agentcore/go/internal/capability"
	"github.com/agentcore-dev/agentcore/go/internal/orchestrator"
	"github.com/agentcore-dev/agentcore/go/internal/store"
	"github.com/agentcore-dev/agentcore/go/internal/turn"
	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

// Server wires the orchestration entry points to HTTP
type Server struct {
	store        store.Store
	loop         *orchestrator.Loop
	core         *orchestrator.Core
	lifecycle    *turn.Lifecycle
	resolver     capability.Resolver
	defaultAgent string
	log          logr.Logger
}

// NewServer creates a Server. defaultAgent is used when session creation
// carries no agent hint.
func NewServer(st store.Store, loop *orchestrator.Loop, core *orchestrator.Core, lifecycle *turn.Lifecycle, resolver capability.Resolver, defaultAgent string, log logr.Logger) *Server {
	return &Server{
		store:        st,
		loop:         loop,
		core:         core,
		lifecycle:    lifecycle,
		resolver:     resolver,
		defaultAgent: defaultAgent,
		log:          log.WithName("http"),
	}
}

// Routes builds the router
func (s *Server) Routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	apiRouter.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	apiRouter.HandleFunc("/sessions/{sessionID}", s.handleGetSession).Methods("GET")
	apiRouter.HandleFunc("/sessions/{sessionID}/messages", s.handleSendMessage).Methods("POST")
	apiRouter.HandleFunc("/sessions/{sessionID}/messages", s.handleGetHistory).Methods("GET")
	apiRouter.HandleFunc("/sessions/{sessionID}/fail", s.handleForceFail).Methods("POST")
	apiRouter.HandleFunc("/approvals/{approvalID}/decision", s.handleApprovalDecision).Methods("POST")
	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error(err, "failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	s.writeJSON(w, statusFor(code), api.ErrorResponse{Code: code, Error: userMessage(err)})
}

func statusFor(code string) int {
	switch code {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeSessionGet, apperrors.ErrCodeApprovalNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeSessionBusy:
		return http.StatusConflict
	case apperrors.ErrCodeConfiguration:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// userMessage keeps wrapped causes out of responses; callers get the short
// message only.
func userMessage(err error) string {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr.Message
	}
	return "internal error"
}
