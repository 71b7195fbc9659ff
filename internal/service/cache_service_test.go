package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type memoryCacheRepo struct {
	mu      sync.Mutex
	values  map[string]interface{}
	ttls    map[string]time.Duration
	getErr  error
	deleted []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: map[string]interface{}{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *string:
		*d = v.(string)
	case *[]string:
		*d = v.([]string)
	}
	return nil
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			delete(m.values, key)
			m.deleted = append(m.deleted, key)
		}
	}
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out string
	assert.False(t, svc.Get(ctx, "stats:a", &out))

	svc.Set(ctx, "stats:a", "payload", 0)
	assert.Equal(t, time.Minute, repo.ttls["stats:a"])
	assert.True(t, svc.Get(ctx, "stats:a", &out))
	assert.Equal(t, "payload", out)

	svc.Set(ctx, "other", "keep", time.Second)
	svc.InvalidateStats(ctx)
	assert.Equal(t, []string{"stats:a"}, repo.deleted)
	assert.Contains(t, repo.values, "other")
}

func TestCacheServiceSwallowsBackendErrors(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, 0, nil, true)

	var out string
	assert.False(t, svc.Get(context.Background(), "stats:a", &out))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)
	svc.Set(context.Background(), "stats:a", "payload", 0)
	assert.Empty(t, repo.values)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheKeySkipsEmptyParts(t *testing.T) {
	assert.Equal(t, "stats:b1:all", cacheKey("stats", "b1", "", "all"))
}
