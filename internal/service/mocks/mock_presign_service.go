package mocks

import (
	"context"

	"docviewer/internal/model"
	"docviewer/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockPresignService struct {
	mock.Mock
}

var _ service.PresignService = (*MockPresignService)(nil)

func (m *MockPresignService) List(ctx context.Context) ([]model.Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockPresignService) CreateUploadGrant(ctx context.Context, req service.UploadGrantRequest) (*service.UploadGrant, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadGrant), args.Error(1)
}

func (m *MockPresignService) Register(ctx context.Context, req service.RegisterRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockPresignService) ResolveURL(ctx context.Context, id string) (*service.SignedURL, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SignedURL), args.Error(1)
}

func (m *MockPresignService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
