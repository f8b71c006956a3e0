package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"parking_checkout/internal/config"
	"parking_checkout/internal/repository"
)

const lockKeyPrefix = "parking:checkout:submit:"

// releaseScript deletes the lock only when it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type submissionLock struct {
	client *redis.Client
}

// Open connects to Redis and verifies the connection.
func Open(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewSubmissionLock(client *redis.Client) repository.SubmissionLock {
	return &submissionLock{client: client}
}

func lockKey(bookingID int64) string {
	return fmt.Sprintf("%s%d", lockKeyPrefix, bookingID)
}

func (l *submissionLock) Acquire(ctx context.Context, bookingID int64, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(bookingID), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("SubmissionLock.Acquire: %w", err)
	}
	if !ok {
		return "", repository.ErrLockHeld
	}
	return token, nil
}

func (l *submissionLock) Release(ctx context.Context, bookingID int64, token string) error {
	err := releaseScript.Run(ctx, l.client, []string{lockKey(bookingID)}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("SubmissionLock.Release: %w", err)
	}
	return nil
}
