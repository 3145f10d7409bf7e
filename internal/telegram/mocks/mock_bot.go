package mocks

import (
	"context"
	"io"

	"docviewer/internal/telegram"

	"github.com/stretchr/testify/mock"
)

type MockBot struct {
	mock.Mock
}

func (m *MockBot) GetFile(ctx context.Context, fileID string) (telegram.File, error) {
	args := m.Called(ctx, fileID)
	return args.Get(0).(telegram.File), args.Error(1)
}

func (m *MockBot) Download(ctx context.Context, filePath string) (io.ReadCloser, error) {
	args := m.Called(ctx, filePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}
