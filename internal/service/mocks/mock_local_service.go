package mocks

import (
	"context"

	"docviewer/internal/model"
	"docviewer/internal/service"
	"docviewer/internal/telegram"

	"github.com/stretchr/testify/mock"
)

type MockLocalService struct {
	mock.Mock
}

var _ service.LocalService = (*MockLocalService)(nil)

func (m *MockLocalService) List(ctx context.Context) ([]model.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockLocalService) Upload(ctx context.Context, in service.UploadInput) (*model.Document, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockLocalService) Open(ctx context.Context, id string) (*service.Delivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Delivery), args.Error(1)
}

func (m *MockLocalService) IngestTelegram(ctx context.Context, msg *telegram.Message) (*model.Document, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockLocalService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
