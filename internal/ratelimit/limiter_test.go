package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() Policy {
	return Policy{
		Name:     "test",
		Key:      KeyByAddress,
		Capacity: 5,
		Window:   time.Minute,
		Block:    2 * time.Minute,
	}
}

func clockedMemoryStore(start time.Time) (*MemoryStore, *time.Time) {
	now := start
	store := NewMemoryStore()
	store.nowFn = func() time.Time { return now }
	return store, &now
}

func TestConsume_ExactCapacity(t *testing.T) {
	store, _ := clockedMemoryStore(time.Now())
	limiter := NewLimiter(testPolicy(), store)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		d, err := limiter.Consume(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "admission %d", i)
		assert.Equal(t, 5-i, d.Remaining)
	}

	d, err := limiter.Consume(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 2*time.Minute, d.RetryAfter)
}

func TestConsume_DeniedWhileBlocked(t *testing.T) {
	store, now := clockedMemoryStore(time.Now())
	limiter := NewLimiter(testPolicy(), store)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := limiter.Consume(ctx, "10.0.0.1")
		require.NoError(t, err)
	}

	// The window refills after a minute, but the block lasts two.
	*now = now.Add(90 * time.Second)
	d, err := limiter.Consume(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)
}

func TestConsume_RecoversAfterBlock(t *testing.T) {
	store, now := clockedMemoryStore(time.Now())
	limiter := NewLimiter(testPolicy(), store)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := limiter.Consume(ctx, "10.0.0.1")
		require.NoError(t, err)
	}

	*now = now.Add(2*time.Minute + time.Second)
	d, err := limiter.Consume(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestConsume_WindowRefill(t *testing.T) {
	store, now := clockedMemoryStore(time.Now())
	limiter := NewLimiter(testPolicy(), store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := limiter.Consume(ctx, "10.0.0.1")
		require.NoError(t, err)
	}

	// Capacity spent but never exceeded: no block, a fresh window admits.
	*now = now.Add(time.Minute + time.Second)
	d, err := limiter.Consume(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(4), d.Remaining)
}

func TestConsume_KeysAreIndependent(t *testing.T) {
	store, _ := clockedMemoryStore(time.Now())
	limiter := NewLimiter(testPolicy(), store)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := limiter.Consume(ctx, "10.0.0.1")
		require.NoError(t, err)
	}

	d, err := limiter.Consume(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestConsume_PoliciesAreIndependent(t *testing.T) {
	store, _ := clockedMemoryStore(time.Now())
	strict := NewLimiter(Policy{Name: "strict", Capacity: 1, Window: time.Minute, Block: time.Minute}, store)
	lax := NewLimiter(Policy{Name: "lax", Capacity: 100, Window: time.Minute, Block: time.Minute}, store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := strict.Consume(ctx, "10.0.0.1")
		require.NoError(t, err)
	}

	d, err := lax.Consume(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisStore_ExactCapacity(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewLimiter(testPolicy(), NewRedisStore(client))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := limiter.Consume(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := limiter.Consume(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 2*time.Minute, d.RetryAfter)
}

func TestRedisStore_BlockExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewLimiter(testPolicy(), NewRedisStore(client))
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := limiter.Consume(ctx, "10.0.0.1")
		require.NoError(t, err)
	}

	mr.FastForward(2*time.Minute + time.Second)

	d, err := limiter.Consume(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisStore_WindowExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewLimiter(testPolicy(), NewRedisStore(client))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := limiter.Consume(ctx, "10.0.0.1")
		require.NoError(t, err)
	}

	mr.FastForward(time.Minute + time.Second)

	d, err := limiter.Consume(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(4), d.Remaining)
}
