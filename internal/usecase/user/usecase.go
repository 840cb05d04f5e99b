package user

import (
	"context"

	"go.uber.org/zap"

	domain "users-api/internal/domain/user"
	apperrors "users-api/pkg/errors"
	"users-api/pkg/logger"
)

// Repository defines the interface for user data access operations.
// The service is append/read-only: there is no update or delete.
type Repository interface {
	EnsureSchema(ctx context.Context) error                    // Create the users table if absent
	List(ctx context.Context) ([]domain.User, error)           // All users in insertion order
	Insert(ctx context.Context, u *domain.User) (int64, error) // Insert and return the new ID
}

// Service implements the business logic for user management operations.
// It provides a clean separation between the transport layer and data layer.
type Service struct {
	repo Repository  // Repository for data access
	log  *zap.Logger // Logger for structured logging
}

// New creates a new instance of Service with the provided repository and logger.
func New(r Repository, log *zap.Logger) *Service {
	return &Service{repo: r, log: log}
}

// CreateUser stores a new user. Name and email are passed through as
// received; uniqueness of email is enforced by storage.
func (s *Service) CreateUser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error) {
	log := logger.WithContext(ctx, s.log)
	log.Info("creating user", zap.Stringp("name", in.Name), zap.Stringp("email", in.Email))

	id, err := s.repo.Insert(ctx, &domain.User{
		Name:  in.Name,
		Email: in.Email,
	})
	if err != nil {
		if apperrors.Is(err, apperrors.KindUniqueConstraint) {
			log.Info("email already registered", zap.Stringp("email", in.Email))
			return nil, err
		}
		log.Warn("failed to create user",
			zap.String("kind", apperrors.KindOf(err).String()),
			zap.Error(err),
		)
		return nil, err
	}

	return &CreateUserResponse{
		ID:    id,
		Name:  in.Name,
		Email: in.Email,
	}, nil
}

// ListUsers returns every stored user in insertion order.
func (s *Service) ListUsers(ctx context.Context) (*ListUsersResponse, error) {
	log := logger.WithContext(ctx, s.log)
	log.Debug("listing users")

	domainUsers, err := s.repo.List(ctx)
	if err != nil {
		log.Error("failed to list users",
			zap.String("kind", apperrors.KindOf(err).String()),
			zap.Error(err),
		)
		return nil, err
	}

	users := make([]User, len(domainUsers))
	for i, du := range domainUsers {
		users[i] = User{
			ID:    du.ID,
			Name:  du.Name,
			Email: du.Email,
		}
	}

	return &ListUsersResponse{
		Users: users,
	}, nil
}
