package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLock keeps two engines from running the same candidate+test at
// once, across instances. The TTL backstops a crashed instance that never
// released.
type AttemptLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAttemptLock(rdb *redis.Client, ttl time.Duration) *AttemptLock {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AttemptLock{rdb: rdb, ttl: ttl}
}

func attemptKey(candidateID, testID string) string {
	return "attempt:" + candidateID + ":" + testID
}

func (l *AttemptLock) Acquire(ctx context.Context, candidateID, testID string) (bool, error) {
	return l.rdb.SetNX(ctx, attemptKey(candidateID, testID), "1", l.ttl).Result()
}

func (l *AttemptLock) Release(ctx context.Context, candidateID, testID string) error {
	return l.rdb.Del(ctx, attemptKey(candidateID, testID)).Err()
}
