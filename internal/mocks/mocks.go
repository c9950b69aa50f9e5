// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
)

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

// Generate provides a mock function for LLM calls.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Page Mock --

// MockPage implements schemas.Page for testing.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockPage) URL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) WaitVisible(ctx context.Context, loc schemas.Locator, timeout time.Duration) (bool, error) {
	args := m.Called(ctx, loc, timeout)
	return args.Bool(0), args.Error(1)
}

func (m *MockPage) IsVisible(ctx context.Context, loc schemas.Locator) (bool, error) {
	args := m.Called(ctx, loc)
	return args.Bool(0), args.Error(1)
}

func (m *MockPage) Snapshot(ctx context.Context, loc schemas.Locator) ([]schemas.ElementSnapshot, error) {
	args := m.Called(ctx, loc)
	var snaps []schemas.ElementSnapshot
	if v := args.Get(0); v != nil {
		snaps = v.([]schemas.ElementSnapshot)
	}
	return snaps, args.Error(1)
}

func (m *MockPage) Text(ctx context.Context, loc schemas.Locator) (string, error) {
	args := m.Called(ctx, loc)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Attribute(ctx context.Context, loc schemas.Locator, name string) (string, bool, error) {
	args := m.Called(ctx, loc, name)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockPage) Fill(ctx context.Context, loc schemas.Locator, value string) error {
	return m.Called(ctx, loc, value).Error(0)
}

func (m *MockPage) SetRangeValue(ctx context.Context, loc schemas.Locator, value string) error {
	return m.Called(ctx, loc, value).Error(0)
}

func (m *MockPage) Click(ctx context.Context, loc schemas.Locator) error {
	return m.Called(ctx, loc).Error(0)
}

func (m *MockPage) WaitNetworkIdle(ctx context.Context, timeout time.Duration) (bool, error) {
	args := m.Called(ctx, timeout)
	return args.Bool(0), args.Error(1)
}

func (m *MockPage) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	var data []byte
	if v := args.Get(0); v != nil {
		data = v.([]byte)
	}
	return data, args.Error(1)
}

// -- Session Mocks --

// MockSession implements schemas.Session. Close calls are counted so tests
// can assert release happens exactly once.
type MockSession struct {
	mock.Mock
	mu         sync.Mutex
	closeCalls int
}

func (m *MockSession) ID() string { return m.Called().String(0) }

func (m *MockSession) Page() schemas.Page {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(schemas.Page)
	}
	return nil
}

func (m *MockSession) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closeCalls++
	m.mu.Unlock()
	return m.Called(ctx).Error(0)
}

// CloseCalls reports how many times Close was invoked.
func (m *MockSession) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// MockSessionFactory implements schemas.SessionFactory.
type MockSessionFactory struct {
	mock.Mock
}

func (m *MockSessionFactory) NewSession(ctx context.Context) (schemas.Session, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(schemas.Session), args.Error(1)
	}
	return nil, args.Error(1)
}
