package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentcore-dev/agentcore/go/internal/models"
)

// MockClient returns scripted results in order. It records every request it
// receives so tests can assert on the assembled context.
type MockClient struct {
	mu       sync.Mutex
	script   []*models.ProviderResult
	index    int
	Requests []Request
}

// NewMockClient creates a MockClient with a scripted result sequence
func NewMockClient(script ...*models.ProviderResult) *MockClient {
	return &MockClient{script: script}
}

func (m *MockClient) Complete(_ context.Context, request Request) (*models.ProviderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, request)
	if m.index >= len(m.script) {
		return nil, fmt.Errorf("mock client script exhausted after %d calls", len(m.script))
	}
	result := m.script[m.index]
	m.index++
	return result, nil
}

func (m *MockClient) ModelName() string { return "mock-model" }

// Enqueue appends further scripted results
func (m *MockClient) Enqueue(results ...*models.ProviderResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, results...)
}
