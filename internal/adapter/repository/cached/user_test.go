package cached

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"users-api/internal/adapter/cache"
	domain "users-api/internal/domain/user"
	apperrors "users-api/pkg/errors"
)

// MockRepository is a mock implementation of user.Repository
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

func setupCachedRepo(t *testing.T) (*CachedUserRepository, *MockRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		_ = client.Close()
	})

	logger := zaptest.NewLogger(t)
	dbRepo := new(MockRepository)
	listCache := cache.NewRedisUserListCache(client, time.Minute, logger)

	return NewCachedUserRepository(dbRepo, listCache, logger), dbRepo, mr
}

func TestCachedUserRepository_List_HitsDatabaseOnce(t *testing.T) {
	repo, dbRepo, _ := setupCachedRepo(t)
	ctx := context.Background()

	users := []domain.User{{ID: 1, Name: strPtr("Ada"), Email: strPtr("ada@example.com")}}
	dbRepo.On("List", ctx).Return(users, nil).Once()

	first, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, users, first)

	second, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, users, second)

	dbRepo.AssertNumberOfCalls(t, "List", 1)
}

func TestCachedUserRepository_Insert_InvalidatesListing(t *testing.T) {
	repo, dbRepo, mr := setupCachedRepo(t)
	ctx := context.Background()

	before := []domain.User{{ID: 1, Name: strPtr("Ada"), Email: strPtr("ada@example.com")}}
	after := append(before, domain.User{ID: 2, Name: strPtr("Grace"), Email: strPtr("grace@example.com")})
	newUser := &domain.User{Name: strPtr("Grace"), Email: strPtr("grace@example.com")}

	dbRepo.On("List", ctx).Return(before, nil).Once()
	dbRepo.On("Insert", ctx, newUser).Return(int64(2), nil).Once()
	dbRepo.On("List", ctx).Return(after, nil).Once()

	_, err := repo.List(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists("users:list"))

	id, err := repo.Insert(ctx, newUser)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
	assert.False(t, mr.Exists("users:list"))

	got, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, after, got)

	dbRepo.AssertExpectations(t)
}

func TestCachedUserRepository_Insert_ErrorKeepsCache(t *testing.T) {
	repo, dbRepo, mr := setupCachedRepo(t)
	ctx := context.Background()

	dbRepo.On("List", ctx).Return([]domain.User{}, nil).Once()
	_, err := repo.List(ctx)
	require.NoError(t, err)

	dupErr := apperrors.NewStorageError(apperrors.KindUniqueConstraint, "insert user", assert.AnError)
	dbRepo.On("Insert", ctx, mock.Anything).Return(int64(0), dupErr).Once()

	_, err = repo.Insert(ctx, &domain.User{Email: strPtr("ada@example.com")})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUniqueConstraint, apperrors.KindOf(err))
	assert.True(t, mr.Exists("users:list"))
}

func TestCachedUserRepository_List_FallsBackWhenRedisDown(t *testing.T) {
	repo, dbRepo, mr := setupCachedRepo(t)
	ctx := context.Background()

	users := []domain.User{{ID: 1, Name: strPtr("Ada"), Email: strPtr("ada@example.com")}}
	dbRepo.On("List", ctx).Return(users, nil)

	mr.Close()

	got, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, users, got)
}

func TestCachedUserRepository_List_DatabaseError(t *testing.T) {
	repo, dbRepo, mr := setupCachedRepo(t)
	ctx := context.Background()

	readErr := apperrors.NewStorageError(apperrors.KindRead, "list users", assert.AnError)
	dbRepo.On("List", ctx).Return(nil, readErr)

	users, err := repo.List(ctx)
	require.Error(t, err)
	assert.Nil(t, users)
	assert.Equal(t, apperrors.KindRead, apperrors.KindOf(err))
	assert.False(t, mr.Exists("users:list"))
}

func TestCachedUserRepository_WithoutCache(t *testing.T) {
	dbRepo := new(MockRepository)
	repo := NewCachedUserRepository(dbRepo, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	dbRepo.On("EnsureSchema", ctx).Return(nil)
	dbRepo.On("List", ctx).Return([]domain.User{}, nil)
	dbRepo.On("Insert", ctx, mock.Anything).Return(int64(1), nil)

	require.NoError(t, repo.EnsureSchema(ctx))

	_, err := repo.List(ctx)
	require.NoError(t, err)
	_, err = repo.List(ctx)
	require.NoError(t, err)

	_, err = repo.Insert(ctx, &domain.User{})
	require.NoError(t, err)

	dbRepo.AssertNumberOfCalls(t, "List", 2)
}

// pausingRepository is an in-memory repository whose next List can be held
// after it has taken its snapshot.
type pausingRepository struct {
	mu        sync.Mutex
	users     []domain.User
	pauseNext bool
	snapshot  chan struct{}
	resume    chan struct{}
}

func newPausingRepository() *pausingRepository {
	return &pausingRepository{
		pauseNext: true,
		snapshot:  make(chan struct{}),
		resume:    make(chan struct{}),
	}
}

func (p *pausingRepository) EnsureSchema(context.Context) error { return nil }

func (p *pausingRepository) Insert(_ context.Context, u *domain.User) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := int64(len(p.users) + 1)
	p.users = append(p.users, domain.User{ID: id, Name: u.Name, Email: u.Email})
	return id, nil
}

func (p *pausingRepository) List(context.Context) ([]domain.User, error) {
	p.mu.Lock()
	snap := append([]domain.User{}, p.users...)
	pause := p.pauseNext
	p.pauseNext = false
	p.mu.Unlock()

	if pause {
		close(p.snapshot)
		<-p.resume
	}
	return snap, nil
}

func TestCachedUserRepository_ListRacingInsert(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		_ = client.Close()
	})

	logger := zaptest.NewLogger(t)
	dbRepo := newPausingRepository()
	repo := NewCachedUserRepository(dbRepo, cache.NewRedisUserListCache(client, time.Minute, logger), logger)
	ctx := context.Background()

	// A slow listing reads the empty table and is held before caching it
	slowDone := make(chan []domain.User, 1)
	go func() {
		users, err := repo.List(ctx)
		assert.NoError(t, err)
		slowDone <- users
	}()
	<-dbRepo.snapshot

	_, err := repo.Insert(ctx, &domain.User{Name: strPtr("Ada"), Email: strPtr("ada@example.com")})
	require.NoError(t, err)

	// A listing that starts after the insert must not share the slow read
	fresh, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh, 1)

	close(dbRepo.resume)
	select {
	case stale := <-slowDone:
		assert.Empty(t, stale)
	case <-time.After(5 * time.Second):
		t.Fatal("slow listing did not finish")
	}

	// The stale snapshot must not have replaced the fresh listing
	got, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ada@example.com", *got[0].Email)
}

func TestCachedUserRepository_StaleSnapshotNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		_ = client.Close()
	})

	logger := zaptest.NewLogger(t)
	dbRepo := newPausingRepository()
	repo := NewCachedUserRepository(dbRepo, cache.NewRedisUserListCache(client, time.Minute, logger), logger)
	ctx := context.Background()

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, err := repo.List(ctx)
		assert.NoError(t, err)
	}()
	<-dbRepo.snapshot

	_, err := repo.Insert(ctx, &domain.User{Name: strPtr("Ada"), Email: strPtr("ada@example.com")})
	require.NoError(t, err)

	close(dbRepo.resume)
	<-slowDone

	assert.False(t, mr.Exists("users:list"))

	got, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
