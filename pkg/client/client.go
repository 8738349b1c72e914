// Package client is the Go client for the orchestrator's REST API
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/agentcore-dev/agentcore/go/api"
	apperrors "github.com/agentcore-dev/agentcore/go/pkg/app/errors"
)

// Client talks to one orchestrator instance
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokenFunc  func() string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTokenFunc sets a bearer-token source for authenticated deployments
func WithTokenFunc(tokenFunc func() string) Option {
	return func(c *Client) { c.tokenFunc = tokenFunc }
}

// New creates a Client for baseURL
func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// CreateSession starts a new conversation
func (c *Client) CreateSession(ctx context.Context, request api.CreateSessionRequest) (*api.CreateSessionResponse, error) {
	var response api.CreateSessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/sessions", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetSession fetches a session's current state
func (c *Client) GetSession(ctx context.Context, sessionID string) (*api.SessionView, error) {
	var response api.SessionView
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(sessionID), nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// ListSessions lists sessions, optionally filtered to one user
func (c *Client) ListSessions(ctx context.Context, userID string, limit int) (*api.SessionListResponse, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user", userID)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/sessions"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var response api.SessionListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// SendMessage sends one user message and returns the turn outcome
func (c *Client) SendMessage(ctx context.Context, sessionID string, request api.SendMessageRequest) (*api.SendMessageResponse, error) {
	var response api.SendMessageResponse
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetHistory lists the session's UI-visible messages. A non-empty turnID
// narrows the listing to that turn.
func (c *Client) GetHistory(ctx context.Context, sessionID, turnID string, limit int, before time.Time) (*api.HistoryResponse, error) {
	query := url.Values{}
	if turnID != "" {
		query.Set("turn", turnID)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if !before.IsZero() {
		query.Set("before", before.Format(time.RFC3339))
	}
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/messages"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var response api.HistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// DecideApproval records a human decision on a pending approval
func (c *Client) DecideApproval(ctx context.Context, approvalID string, request api.ApprovalDecisionRequest) (*api.ApprovalDecisionResponse, error) {
	var response api.ApprovalDecisionResponse
	path := "/api/approvals/" + url.PathEscape(approvalID) + "/decision"
	if err := c.do(ctx, http.MethodPost, path, request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// FailTurn administratively fails a session's in-flight turn
func (c *Client) FailTurn(ctx context.Context, sessionID, reason string) error {
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/fail"
	return c.do(ctx, http.MethodPost, path, api.FailTurnRequest{Reason: reason}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.New(apperrors.ErrCodeInvalidInput, "failed to marshal request", err)
		}
		reader = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeUnexpected, "failed to create request", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if c.tokenFunc != nil {
		if token := c.tokenFunc(); token != "" {
			request.Header.Set("Authorization", "Bearer "+token)
		}
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeUnexpected, "request failed", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 300 {
		data, _ := io.ReadAll(response.Body)
		var envelope api.ErrorResponse
		if json.Unmarshal(data, &envelope) == nil && envelope.Code != "" {
			return apperrors.New(envelope.Code, envelope.Error, nil)
		}
		return apperrors.New(apperrors.ErrCodeUnexpected,
			fmt.Sprintf("unexpected status %d: %s", response.StatusCode, string(data)), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return apperrors.New(apperrors.ErrCodeUnexpected, "failed to decode response", err)
	}
	return nil
}
