package mocks

import (
	"context"

	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/rpggio/casereview/internal/domain/credential"
	"github.com/stretchr/testify/mock"
)

// UserRepository is a mock for credential.Repository.
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Get(ctx context.Context, username string) (*credential.User, error) {
	args := m.Called(ctx, username)
	if user, ok := args.Get(0).(*credential.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) List(ctx context.Context) ([]credential.User, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]credential.User); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) Create(ctx context.Context, user *credential.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepository) Upsert(ctx context.Context, user *credential.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// DiagnosisRepository is a mock for diagnosis.Repository.
type DiagnosisRepository struct {
	mock.Mock
}

func (m *DiagnosisRepository) Get(ctx context.Context, username, caseID string) (string, error) {
	args := m.Called(ctx, username, caseID)
	return args.String(0), args.Error(1)
}

func (m *DiagnosisRepository) Set(ctx context.Context, username, caseID, text string) error {
	args := m.Called(ctx, username, caseID, text)
	return args.Error(0)
}

func (m *DiagnosisRepository) Delete(ctx context.Context, username, caseID string) error {
	args := m.Called(ctx, username, caseID)
	return args.Error(0)
}

func (m *DiagnosisRepository) ListForUser(ctx context.Context, username string) (map[string]string, error) {
	args := m.Called(ctx, username)
	if entries, ok := args.Get(0).(map[string]string); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

// AuditRepository is a mock for audit.Repository.
type AuditRepository struct {
	mock.Mock
}

func (m *AuditRepository) Append(ctx context.Context, key string, event *audit.Event) error {
	args := m.Called(ctx, key, event)
	return args.Error(0)
}

func (m *AuditRepository) List(ctx context.Context, key string) ([]audit.Event, error) {
	args := m.Called(ctx, key)
	if events, ok := args.Get(0).([]audit.Event); ok {
		return events, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AuditRepository) Keys(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if keys, ok := args.Get(0).([]string); ok {
		return keys, args.Error(1)
	}
	return nil, args.Error(1)
}
