package data

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return rdb, mr
}

func TestIncrement_FirstIncrement(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	logger := log.NewStdLogger(os.Stdout)
	repo := NewRateLimitRepo(rdb, logger)

	ctx := context.Background()

	count, err := repo.Increment(ctx, "alipay", "firm-1", time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Verify TTL is set to the window
	key := getRateLimitKey("alipay", "firm-1")
	ttl := rdb.TTL(ctx, key).Val()
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestIncrement_SubsequentIncrements(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	logger := log.NewStdLogger(os.Stdout)
	repo := NewRateLimitRepo(rdb, logger)

	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		count, err := repo.Increment(ctx, "alipay", "firm-1", time.Minute)
		assert.NoError(t, err)
		assert.Equal(t, i, count)
	}
}

func TestIncrement_SeparateWindowsPerIdentifier(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	logger := log.NewStdLogger(os.Stdout)
	repo := NewRateLimitRepo(rdb, logger)

	ctx := context.Background()

	_, err := repo.Increment(ctx, "alipay", "firm-1", time.Minute)
	require.NoError(t, err)
	_, err = repo.Increment(ctx, "alipay", "firm-1", time.Minute)
	require.NoError(t, err)

	// A different identifier has its own counter
	count, err := repo.Increment(ctx, "alipay", "firm-2", time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// And so does a different service for the same identifier
	count, err = repo.Increment(ctx, "wechat", "firm-1", time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestIncrement_WindowExpiry(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	defer rdb.Close()

	logger := log.NewStdLogger(os.Stdout)
	repo := NewRateLimitRepo(rdb, logger)

	ctx := context.Background()

	_, err := repo.Increment(ctx, "court", "firm-1", time.Minute)
	require.NoError(t, err)
	_, err = repo.Increment(ctx, "court", "firm-1", time.Minute)
	require.NoError(t, err)

	// After the window passes, the counter starts over
	mr.FastForward(61 * time.Second)

	count, err := repo.Increment(ctx, "court", "firm-1", time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCount_Exists(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	logger := log.NewStdLogger(os.Stdout)
	repo := NewRateLimitRepo(rdb, logger)

	ctx := context.Background()

	_, err := repo.Increment(ctx, "alipay", "firm-1", time.Minute)
	require.NoError(t, err)

	count, err := repo.Count(ctx, "alipay", "firm-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCount_NotExists(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	logger := log.NewStdLogger(os.Stdout)
	repo := NewRateLimitRepo(rdb, logger)

	count, err := repo.Count(context.Background(), "alipay", "nobody")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestReset_ClearsWindow(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	defer rdb.Close()

	logger := log.NewStdLogger(os.Stdout)
	repo := NewRateLimitRepo(rdb, logger)

	ctx := context.Background()

	_, err := repo.Increment(ctx, "alipay", "firm-1", time.Minute)
	require.NoError(t, err)

	err = repo.Reset(ctx, "alipay", "firm-1")
	assert.NoError(t, err)

	count, err := repo.Count(ctx, "alipay", "firm-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRateLimitRepo_NilClient(t *testing.T) {
	logger := log.NewStdLogger(os.Stdout)
	repo := NewRateLimitRepo(nil, logger)

	ctx := context.Background()

	_, err := repo.Increment(ctx, "alipay", "firm-1", time.Minute)
	assert.Error(t, err)

	_, err = repo.Count(ctx, "alipay", "firm-1")
	assert.Error(t, err)
}
