package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"custos/pkg/contracts/domain"
)

// MockNotifier is a mock for the Notifier interface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Broadcast(ctx context.Context, eventType string, data interface{}) {
	m.Called(ctx, eventType, data)
}

// MockStore is a mock for storage.AnalysisStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, a *domain.Analysis) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockStore) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	args := m.Called(ctx, id)
	if a, ok := args.Get(0).(*domain.Analysis); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) List(ctx context.Context, limit int) ([]domain.AnalysisSummary, error) {
	args := m.Called(ctx, limit)
	if s, ok := args.Get(0).([]domain.AnalysisSummary); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, a *domain.Analysis) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) Close() {
	m.Called()
}

// MockHub is a mock for ClientCounter
type MockHub struct {
	mock.Mock
}

func (m *MockHub) ClientCount() int {
	return m.Called().Int(0)
}
