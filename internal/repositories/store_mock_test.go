package repositories_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"rently/internal/docstore"
)

// MockStore is a mock implementation of docstore.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, collection, id string, data any) (string, error) {
	args := m.Called(ctx, collection, id, data)
	return args.String(0), args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, collection, id string, data any) error {
	args := m.Called(ctx, collection, id, data)
	return args.Error(0)
}

func (m *MockStore) Get(ctx context.Context, collection, id string) (docstore.Snapshot, error) {
	args := m.Called(ctx, collection, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(docstore.Snapshot), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, collection, id string) error {
	args := m.Called(ctx, collection, id)
	return args.Error(0)
}

func (m *MockStore) Query(ctx context.Context, collection, field string, value any) ([]docstore.Snapshot, error) {
	args := m.Called(ctx, collection, field, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]docstore.Snapshot), args.Error(1)
}

func (m *MockStore) GetAll(ctx context.Context, collection string) ([]docstore.Snapshot, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]docstore.Snapshot), args.Error(1)
}

func (m *MockStore) Subscribe(ctx context.Context, collection string) (docstore.Subscription, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(docstore.Subscription), args.Error(1)
}

func (m *MockStore) ArrayUnion(ctx context.Context, collection, id, field string, values ...any) error {
	args := m.Called(ctx, collection, id, field, values)
	return args.Error(0)
}

func (m *MockStore) ArrayRemove(ctx context.Context, collection, id, field string, values ...any) error {
	args := m.Called(ctx, collection, id, field, values)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
