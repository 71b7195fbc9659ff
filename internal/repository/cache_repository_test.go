package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

func TestCacheRepositoryDisabled(t *testing.T) {
	repo := NewCacheRepository(nil, "attendance", nil)
	ctx := context.Background()

	assert.False(t, repo.Enabled())
	var dest map[string]int
	err := repo.Get(ctx, "stats:x", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(ctx, "stats:x", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "stats:*"))
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}

func TestCacheRepositoryKeyPrefix(t *testing.T) {
	repo := NewCacheRepository(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "attendance", nil)
	defer repo.Close()

	assert.True(t, repo.Enabled())
	assert.Equal(t, "attendance:stats:b1", repo.key("stats:b1"))
	assert.Equal(t, "stats:b1", NewCacheRepository(nil, "", nil).key("stats:b1"))
}
