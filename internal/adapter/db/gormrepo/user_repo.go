package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"users-api/internal/domain/user"
	apperrors "users-api/pkg/errors"
)

// UserRepo is the storage gateway for the users table. It works with any
// GORM dialector; the service ships with SQLite and PostgreSQL.
type UserRepo struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
}

// NewUserRepo creates a new instance of UserRepo.
func NewUserRepo(db *gorm.DB, log *zap.Logger) *UserRepo {
	return &UserRepo{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID    int64   `gorm:"primaryKey;autoIncrement"` // Unique identifier, never reused
	Name  *string `gorm:"type:text"`                // Nullable, not unique
	Email *string `gorm:"type:text;unique"`         // Nullable, unique across rows
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

// EnsureSchema creates the users table when it does not exist yet.
// An existing table is left untouched, so calling it on every start is safe.
func (r *UserRepo) EnsureSchema(ctx context.Context) error {
	migrator := r.db.WithContext(ctx).Migrator()

	if migrator.HasTable(&UserSchema{}) {
		r.log.Debug("users table already exists")
		return nil
	}

	if err := migrator.CreateTable(&UserSchema{}); err != nil {
		r.log.Error("failed to create users table", zap.Error(err))
		return apperrors.NewStorageError(apperrors.KindSchema, "ensure schema", err)
	}

	// HasTable swallows connection errors, so confirm the table is really there.
	if !migrator.HasTable(&UserSchema{}) {
		err := errors.New("users table missing after create")
		r.log.Error("failed to verify users table", zap.Error(err))
		return apperrors.NewStorageError(apperrors.KindSchema, "ensure schema", err)
	}

	r.log.Info("users table ready")
	return nil
}

// Insert stores a new user and returns the id assigned by the database.
func (r *UserRepo) Insert(ctx context.Context, u *user.User) (int64, error) {
	if u == nil {
		return 0, apperrors.NewStorageError(apperrors.KindWrite, "insert user", errors.New("user cannot be nil"))
	}

	model := UserSchema{
		Name:  u.Name,
		Email: u.Email,
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if r.isUniqueViolation(err) {
			r.log.Warn("unique constraint violated", zap.Error(err), zap.Stringp("email", u.Email))
			return 0, apperrors.NewStorageError(apperrors.KindUniqueConstraint, "insert user", err)
		}
		r.log.Error("failed to insert user in db", zap.Error(err), zap.Stringp("email", u.Email))
		return 0, apperrors.NewStorageError(apperrors.KindWrite, "insert user", err)
	}

	r.log.Info("user inserted in db", zap.Int64("id", model.ID))
	return model.ID, nil
}

// List returns every row in insertion order. Ids are monotonically
// increasing, so ordering by id is insertion order on every driver.
func (r *UserRepo) List(ctx context.Context) ([]user.User, error) {
	var models []UserSchema
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		r.log.Error("failed to list users from db", zap.Error(err))
		return nil, apperrors.NewStorageError(apperrors.KindRead, "list users", err)
	}

	users := make([]user.User, len(models))
	for i, model := range models {
		users[i] = user.User{
			ID:    model.ID,
			Name:  model.Name,
			Email: model.Email,
		}
	}

	return users, nil
}

// Ping checks that the underlying connection is usable.
func (r *UserRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// isUniqueViolation asks the dialector to translate err first and falls back
// to SQLite's message for drivers without a translator.
func (r *UserRepo) isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if translator, ok := r.db.Dialector.(gorm.ErrorTranslator); ok {
		if errors.Is(translator.Translate(err), gorm.ErrDuplicatedKey) {
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
