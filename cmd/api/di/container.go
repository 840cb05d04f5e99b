package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"users-api/cmd/api/infrastructure"
	"users-api/internal/adapter/cache"
	"users-api/internal/adapter/db/gormrepo"
	ginhandler "users-api/internal/adapter/gin/handler"
	"users-api/internal/adapter/gin/middleware"
	"users-api/internal/adapter/repository/cached"
	"users-api/internal/config"
	"users-api/internal/usecase/user"
	redisclient "users-api/pkg/redis"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	DB            *gorm.DB
	RedisClient   *redisclient.Client // nil when REDIS_ENABLED=false
	UserRepo      *gormrepo.UserRepo
	UserUC        user.Usecase
	RateLimiter   *middleware.RateLimiter // nil when RATE_LIMIT_ENABLED=false
	UserHandler   *ginhandler.UserHandler
	HealthHandler *ginhandler.HealthHandler

	// SchemaReady is false when the service started in degraded mode
	SchemaReady bool
}

type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// NewContainer creates and initializes all application dependencies
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	c := &Container{Config: cfg, Logger: l}

	db, err := infrastructure.NewDatabase(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	c.DB = db

	c.UserRepo = gormrepo.NewUserRepo(db, l)
	c.SchemaReady, err = ensureSchema(ctx, c.UserRepo, cfg.App.SchemaFailFast, l)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	rdb, err := infrastructure.NewRedisClient(ctx, cfg, l)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.RedisClient = rdb

	var repo user.Repository = c.UserRepo
	if rdb != nil {
		listCache := cache.NewRedisUserListCache(rdb.Client, time.Duration(cfg.Redis.CacheTTL)*time.Second, l)
		repo = cached.NewCachedUserRepository(c.UserRepo, listCache, l)

		if cfg.RateLimit.Enabled {
			c.RateLimiter = middleware.NewRateLimiter(rdb.Client, middleware.RateLimiterConfig{
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				BurstCapacity:     cfg.RateLimit.BurstCapacity,
				Enabled:           true,
			}, l)
		}
	}

	c.UserUC = user.New(repo, l)
	c.UserHandler = ginhandler.NewUserHandler(c.UserUC, l)
	c.HealthHandler = ginhandler.NewHealthHandler(c.UserRepo, cfg.Logger.ServiceName, l)

	return c, nil
}

// ensureSchema runs the gateway's schema step. With failFast the error is
// returned; otherwise it is logged and the service starts degraded.
func ensureSchema(ctx context.Context, repo schemaEnsurer, failFast bool, l *zap.Logger) (bool, error) {
	err := repo.EnsureSchema(ctx)
	if err == nil {
		return true, nil
	}
	if failFast {
		return false, fmt.Errorf("failed to ensure schema: %w", err)
	}
	l.Error("schema not ready, starting in degraded mode", zap.Error(err))
	return false, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
