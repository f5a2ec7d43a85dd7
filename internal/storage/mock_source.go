package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockChainSource serves chains from memory for tests.
type MockChainSource struct {
	mu            sync.Mutex
	days          map[string]Chain
	loadError     error
	loadCallCount int
}

// NewMockChainSource creates an empty mock source.
func NewMockChainSource() *MockChainSource {
	return &MockChainSource{days: make(map[string]Chain)}
}

// LoadDay returns the registered chain or ErrNoData.
func (m *MockChainSource) LoadDay(_ context.Context, date time.Time) (Chain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCallCount++
	if m.loadError != nil {
		return nil, m.loadError
	}
	key := date.Format("2006-01-02")
	chain, ok := m.days[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoData, key)
	}
	return chain, nil
}

// SetDay registers the chain for date.
func (m *MockChainSource) SetDay(date time.Time, records []Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days[date.Format("2006-01-02")] = NewMemoryChain(records)
}

// SetLoadError makes every LoadDay fail with err.
func (m *MockChainSource) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadError = err
}

// GetLoadCallCount returns how often LoadDay was called.
func (m *MockChainSource) GetLoadCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCallCount
}
