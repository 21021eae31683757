package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockResponse is a canned reply for MockProvider.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// MockProvider replays canned responses. Responses queued with OnPurpose
// answer only requests made under that purpose (see WithPurpose); everything
// else is served from the shared FIFO queue. It backs the "mock" provider
// setting and the tests of every LLM-backed collaborator.
type MockProvider struct {
	mu        sync.Mutex
	shared    []MockResponse
	byPurpose map[string][]MockResponse

	// Calls records every request in arrival order.
	Calls []Request
}

func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{shared: responses, byPurpose: map[string][]MockResponse{}}
}

// Generate pops the next response for the request's purpose, falling back
// to the shared queue. An empty queue reads as ErrProviderUnavailable, so
// callers exercise their fallback paths.
func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)

	next, ok := m.pop(PurposeFrom(ctx))
	if !ok {
		return nil, &ErrProviderUnavailable{}
	}
	if next.Err != nil {
		return nil, next.Err
	}
	return &Response{Content: next.Content, Usage: next.Usage, Model: "mock", StopReason: "end"}, nil
}

func (m *MockProvider) pop(purpose string) (MockResponse, bool) {
	if q := m.byPurpose[purpose]; len(q) > 0 {
		m.byPurpose[purpose] = q[1:]
		return q[0], true
	}
	if len(m.shared) == 0 {
		return MockResponse{}, false
	}
	r := m.shared[0]
	m.shared = m.shared[1:]
	return r, true
}

func (m *MockProvider) ModelID() string { return "mock" }

// AddResponse queues responses on the shared queue.
func (m *MockProvider) AddResponse(resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shared = append(m.shared, resps...)
}

// OnPurpose queues responses for requests made under purpose only.
func (m *MockProvider) OnPurpose(purpose string, resps ...MockResponse) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byPurpose[purpose] = append(m.byPurpose[purpose], resps...)
	return m
}

// LastRequest returns the most recent request, or the zero Request.
func (m *MockProvider) LastRequest() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return Request{}
	}
	return m.Calls[len(m.Calls)-1]
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
