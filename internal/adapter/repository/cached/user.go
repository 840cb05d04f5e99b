package cached

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"users-api/internal/adapter/cache"
	domain "users-api/internal/domain/user"
	"users-api/internal/usecase/user"
)

// CachedUserRepository implements user.Repository with a cached listing.
// It wraps the storage gateway and never lets a cache failure fail a request.
type CachedUserRepository struct {
	dbRepo user.Repository
	cache  cache.UserListCache
	log    *zap.Logger
	group  singleflight.Group
}

// NewCachedUserRepository creates a new instance of CachedUserRepository.
func NewCachedUserRepository(dbRepo user.Repository, cache cache.UserListCache, log *zap.Logger) *CachedUserRepository {
	return &CachedUserRepository{
		dbRepo: dbRepo,
		cache:  cache,
		log:    log,
	}
}

// EnsureSchema delegates to the DB repository.
func (r *CachedUserRepository) EnsureSchema(ctx context.Context) error {
	return r.dbRepo.EnsureSchema(ctx)
}

// Insert stores the user in DB and invalidates the cached listing.
func (r *CachedUserRepository) Insert(ctx context.Context, u *domain.User) (int64, error) {
	id, err := r.dbRepo.Insert(ctx, u)
	if err != nil {
		return 0, err
	}

	if r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			r.log.Warn("failed to invalidate cache after insert", zap.Int64("id", id), zap.Error(err))
		}
	}

	return id, nil
}

// List returns the listing using the Cache-Aside pattern. The generation is
// read before the database so a listing that races with an Insert is never
// cached, and concurrent misses only share a read within one generation.
func (r *CachedUserRepository) List(ctx context.Context) ([]domain.User, error) {
	if r.cache == nil {
		return r.dbRepo.List(ctx)
	}

	users, ok, err := r.cache.Get(ctx)
	if err != nil {
		r.log.Warn("cache get error, falling back to database", zap.Error(err))
	} else if ok {
		return users, nil
	}

	generation, err := r.cache.Generation(ctx)
	if err != nil {
		r.log.Warn("cache generation unavailable, reading database", zap.Error(err))
		return r.dbRepo.List(ctx)
	}

	// Cache miss - use single-flight to prevent stampede
	result, err, _ := r.group.Do(listFlightKey(generation), func() (any, error) {
		users, err := r.dbRepo.List(ctx)
		if err != nil {
			return nil, err
		}

		if _, err := r.cache.Set(ctx, generation, users); err != nil {
			r.log.Warn("failed to cache users", zap.Error(err))
		}

		return users, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]domain.User), nil
}

func listFlightKey(generation int64) string {
	return "users:list:" + strconv.FormatInt(generation, 10)
}
