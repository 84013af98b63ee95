package reference

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockClient is a scriptable Querier for tests
type MockClient struct {
	mu         sync.Mutex
	responses  map[string]*Response
	errors     map[string]error
	callCounts map[string]int
}

// NewMockClient creates a mock with no servers configured
func NewMockClient() *MockClient {
	return &MockClient{
		responses:  make(map[string]*Response),
		errors:     make(map[string]error),
		callCounts: make(map[string]int),
	}
}

// Query returns the configured answer for server
func (m *MockClient) Query(ctx context.Context, server string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCounts[server]++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.errors[server]; ok {
		return nil, err
	}
	if resp, ok := m.responses[server]; ok {
		r := *resp
		return &r, nil
	}
	return nil, errors.New("server not configured in mock")
}

// SetOffset makes server answer with offset
func (m *MockClient) SetOffset(server string, offset time.Duration) {
	m.SetResponse(server, &Response{
		Server:  server,
		Offset:  offset,
		RTT:     10 * time.Millisecond,
		Stratum: 2,
		Time:    time.Now().Add(offset),
	})
}

// SetResponse makes server answer with resp
func (m *MockClient) SetResponse(server string, resp *Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[server] = resp
	delete(m.errors, server)
}

// SetError makes queries to server fail with err
func (m *MockClient) SetError(server string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[server] = err
}

// CallCount returns the number of queries made to server
func (m *MockClient) CallCount(server string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCounts[server]
}
