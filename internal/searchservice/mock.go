package searchservice

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockIndexStore struct {
	mock.Mock
}

func (m *MockIndexStore) Upsert(ctx context.Context, doc Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockIndexStore) Remove(ctx context.Context, postID int) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}
