package agentctl

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore-dev/agentcore/go/api"
)

func runCommand(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append(args, "--server", serverURL))
	err := cmd.Execute()
	return out.String(), err
}

func TestSessionCreateCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/sessions", r.URL.Path)

		var request api.CreateSessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, "u-1", request.UserID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.CreateSessionResponse{
			SessionID:      "s-1",
			AgentName:      "support",
			WelcomeMessage: "Hello!",
		})
	}))
	defer server.Close()

	out, err := runCommand(t, server.URL, "session", "create", "--user", "u-1")
	require.NoError(t, err)
	assert.Contains(t, out, "s-1")
	assert.Contains(t, out, "Hello!")
}

func TestTokenFileFlagSendsBearer(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenPath, []byte("s3cr3t"), 0o600))

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(api.SessionView{ID: "s-1", Status: "idle"})
	}))
	defer server.Close()

	_, err := runCommand(t, server.URL, "session", "get", "s-1", "--token-file", tokenPath)
	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cr3t", gotAuth)
}

func TestSendCommandPrintsCompletedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/sessions/s-1/messages", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.SendMessageResponse{
			Outcome:   "COMPLETED",
			SessionID: "s-1",
			Message:   &api.MessageView{Role: "assistant", Content: "The case is open."},
		})
	}))
	defer server.Close()

	out, err := runCommand(t, server.URL, "send", "s-1", "What is the status?")
	require.NoError(t, err)
	assert.Contains(t, out, "The case is open.")
}

func TestSendCommandReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.SendMessageResponse{
			Outcome:   "FAILED",
			SessionID: "s-1",
			ErrorCode: "MAX_TURNS_EXCEEDED",
		})
	}))
	defer server.Close()

	out, err := runCommand(t, server.URL, "send", "s-1", "loop forever")
	require.NoError(t, err)
	assert.Contains(t, out, "MAX_TURNS_EXCEEDED")
}

func TestSendCommandRejectsBadRecordData(t *testing.T) {
	_, err := runCommand(t, "http://localhost:0", "send", "s-1", "hi", "--record-data", "{not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid JSON")
}

func TestApproveCommandSendsDecision(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/approvals/a-1/decision", r.URL.Path)

		var request api.ApprovalDecisionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.False(t, request.Approved)
		assert.Equal(t, "ops@example.com", request.DecidedBy)

		_ = json.NewEncoder(w).Encode(api.ApprovalDecisionResponse{Outcome: "QUEUED_FOLLOWUP"})
	}))
	defer server.Close()

	out, err := runCommand(t, server.URL, "approve", "a-1", "--reject", "--by", "ops@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "QUEUED_FOLLOWUP")
}

func TestHistoryCommandRendersTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/sessions/s-1/messages", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.HistoryResponse{
			SessionID: "s-1",
			Messages: []api.MessageView{
				{Role: "user", Content: "hi"},
				{Role: "assistant", Content: "hello"},
			},
		})
	}))
	defer server.Close()

	out, err := runCommand(t, server.URL, "history", "s-1")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "ROLE")
}

func TestServerErrorSurfacesCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Code: "SESSION_BUSY", Error: "turn in flight"})
	}))
	defer server.Close()

	_, err := runCommand(t, server.URL, "send", "s-1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "turn in flight")
}
