package user

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	domain "users-api/internal/domain/user"
	apperrors "users-api/pkg/errors"
	"users-api/pkg/logger"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) EnsureSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRepository) Insert(ctx context.Context, u *domain.User) (int64, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func strPtr(s string) *string {
	return &s
}

// setupTestService creates a service backed by a mock repository
func setupTestService(t *testing.T) (*Service, *MockRepository) {
	mockRepo := new(MockRepository)
	svc := New(mockRepo, zaptest.NewLogger(t))
	return svc, mockRepo
}

// ==================== CREATE USER TESTS ====================

func TestCreateUser_Success(t *testing.T) {
	svc, mockRepo := setupTestService(t)
	ctx := context.WithValue(context.Background(), logger.RequestIDKey, "req-1")

	req := CreateUserRequest{
		Name:  strPtr("Ada"),
		Email: strPtr("ada@example.com"),
	}

	mockRepo.On("Insert", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.ID == 0 && *u.Name == "Ada" && *u.Email == "ada@example.com"
	})).Return(int64(1), nil)

	resp, err := svc.CreateUser(ctx, req)

	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, "Ada", *resp.Name)
	assert.Equal(t, "ada@example.com", *resp.Email)

	mockRepo.AssertExpectations(t)
}

func TestCreateUser_PassesMissingFieldsThrough(t *testing.T) {
	svc, mockRepo := setupTestService(t)
	ctx := context.Background()

	mockRepo.On("Insert", ctx, &domain.User{}).Return(int64(7), nil)

	resp, err := svc.CreateUser(ctx, CreateUserRequest{})

	require.NoError(t, err)
	assert.Equal(t, int64(7), resp.ID)
	assert.Nil(t, resp.Name)
	assert.Nil(t, resp.Email)
}

func TestCreateUser_NoFormatValidation(t *testing.T) {
	svc, mockRepo := setupTestService(t)
	ctx := context.Background()

	req := CreateUserRequest{Name: strPtr(""), Email: strPtr("not-an-email")}
	mockRepo.On("Insert", ctx, mock.Anything).Return(int64(2), nil)

	resp, err := svc.CreateUser(ctx, req)

	require.NoError(t, err)
	assert.Equal(t, "not-an-email", *resp.Email)
}

func TestCreateUser_RepositoryErrorKeepsKind(t *testing.T) {
	tests := []struct {
		name string
		kind apperrors.Kind
	}{
		{name: "unique constraint", kind: apperrors.KindUniqueConstraint},
		{name: "write failure", kind: apperrors.KindWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mockRepo := setupTestService(t)
			ctx := context.Background()

			repoErr := apperrors.NewStorageError(tt.kind, "insert user", errors.New("boom"))
			mockRepo.On("Insert", ctx, mock.Anything).Return(int64(0), repoErr)

			resp, err := svc.CreateUser(ctx, CreateUserRequest{Email: strPtr("ada@example.com")})

			require.Error(t, err)
			assert.Nil(t, resp)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}
}

// ==================== LIST USERS TESTS ====================

func TestCreateUser_LogLevelByKind(t *testing.T) {
	tests := []struct {
		name    string
		kind    apperrors.Kind
		message string
		level   zapcore.Level
	}{
		{"duplicate email", apperrors.KindUniqueConstraint, "email already registered", zapcore.InfoLevel},
		{"write failure", apperrors.KindWrite, "failed to create user", zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			mockRepo := new(MockRepository)
			svc := New(mockRepo, zap.New(core))

			storageErr := apperrors.NewStorageError(tt.kind, "insert user", errors.New("boom"))
			mockRepo.On("Insert", mock.Anything, mock.Anything).Return(int64(0), storageErr)

			_, err := svc.CreateUser(context.Background(), CreateUserRequest{Email: strPtr("ada@example.com")})
			require.Error(t, err)

			entries := logs.FilterMessage(tt.message).All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
		})
	}
}

func TestListUsers_Success(t *testing.T) {
	svc, mockRepo := setupTestService(t)
	ctx := context.Background()

	domainUsers := []domain.User{
		{ID: 1, Name: strPtr("Ada"), Email: strPtr("ada@example.com")},
		{ID: 2, Name: strPtr("Grace"), Email: strPtr("grace@example.com")},
	}
	mockRepo.On("List", ctx).Return(domainUsers, nil)

	resp, err := svc.ListUsers(ctx)

	require.NoError(t, err)
	require.Len(t, resp.Users, 2)
	assert.Equal(t, int64(1), resp.Users[0].ID)
	assert.Equal(t, "Grace", *resp.Users[1].Name)
}

func TestListUsers_Empty(t *testing.T) {
	svc, mockRepo := setupTestService(t)
	ctx := context.Background()

	mockRepo.On("List", ctx).Return([]domain.User{}, nil)

	resp, err := svc.ListUsers(ctx)

	require.NoError(t, err)
	assert.NotNil(t, resp.Users)
	assert.Empty(t, resp.Users)
}

func TestListUsers_RepositoryError(t *testing.T) {
	svc, mockRepo := setupTestService(t)
	ctx := context.Background()

	repoErr := apperrors.NewStorageError(apperrors.KindRead, "list users", errors.New("no such table: users"))
	mockRepo.On("List", ctx).Return(nil, repoErr)

	resp, err := svc.ListUsers(ctx)

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, apperrors.KindRead, apperrors.KindOf(err))
}
