package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking_checkout/internal/repository"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestSubmissionLock_AcquireRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewSubmissionLock(client)
	ctx := context.Background()

	token, err := lock.Acquire(ctx, 42, 30*time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, mr.Exists("parking:checkout:submit:42"))

	_, err = lock.Acquire(ctx, 42, 30*time.Second)
	assert.ErrorIs(t, err, repository.ErrLockHeld)

	// Other bookings are independent.
	_, err = lock.Acquire(ctx, 43, 30*time.Second)
	require.NoError(t, err)

	require.NoError(t, lock.Release(ctx, 42, token))
	assert.False(t, mr.Exists("parking:checkout:submit:42"))

	_, err = lock.Acquire(ctx, 42, 30*time.Second)
	assert.NoError(t, err)
}

func TestSubmissionLock_ReleaseWithStaleToken(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewSubmissionLock(client)
	ctx := context.Background()

	_, err := lock.Acquire(ctx, 7, 30*time.Second)
	require.NoError(t, err)

	require.NoError(t, lock.Release(ctx, 7, "not-the-owner"))
	assert.True(t, mr.Exists("parking:checkout:submit:7"))
}

func TestSubmissionLock_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewSubmissionLock(client)
	ctx := context.Background()

	_, err := lock.Acquire(ctx, 9, 5*time.Second)
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)

	_, err = lock.Acquire(ctx, 9, 5*time.Second)
	assert.NoError(t, err)
}
