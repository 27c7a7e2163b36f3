package contract

import (
	"context"

	"github.com/huangsam/rewatch/schema"
	"github.com/stretchr/testify/mock"
)

// MockEventSource is a mock implementation of EventSource for testing.
type MockEventSource struct {
	mock.Mock
}

var _ EventSource = &MockEventSource{} // Compile-time check

// FetchEvents implements the EventSource interface.
func (m *MockEventSource) FetchEvents(ctx context.Context, cfg *Config) (*schema.RawTable, error) {
	ret := m.Called(ctx, cfg)
	table, _ := ret.Get(0).(*schema.RawTable)
	return table, ret.Error(1)
}

// FetchVideoMetadata implements the EventSource interface.
func (m *MockEventSource) FetchVideoMetadata(ctx context.Context, cfg *Config) ([]schema.VideoMetadata, error) {
	ret := m.Called(ctx, cfg)
	entries, _ := ret.Get(0).([]schema.VideoMetadata)
	return entries, ret.Error(1)
}

// Digest implements the EventSource interface.
func (m *MockEventSource) Digest(ctx context.Context, cfg *Config) (string, error) {
	ret := m.Called(ctx, cfg)
	digest, _ := ret.Get(0).(string)
	return digest, ret.Error(1)
}
