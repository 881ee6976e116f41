// Package runlock prevents overlapping monitoring runs across processes
// using a Redis lock with a TTL.
package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/menatics/andromeda/pkg/observability"
)

const lockKey = "andromeda:monitor:runlock"

// releaseScript deletes the lock only when it still holds our token, so a
// run that outlived its TTL cannot release the next run's lock.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// Lock is a distributed mutual-exclusion lock for the daily run
type Lock struct {
	client *redis.Client
	ttl    time.Duration
	logger *observability.Logger

	token string
}

// NewLock creates a run lock with the given TTL. The TTL is the upper
// bound on how long a crashed run can block the next one.
func NewLock(client *redis.Client, ttl time.Duration, logger *observability.Logger) *Lock {
	return &Lock{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire attempts to take the lock. It returns true when this process
// now holds the lock and false when another run already holds it. A Redis
// failure does not block the run: monitoring matters more than strict
// mutual exclusion, so the error is logged and the lock is treated as
// acquired.
func (l *Lock) Acquire(ctx context.Context) bool {
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		l.logger.WithError(err).Warn("run lock backend unavailable, proceeding without lock")
		return true
	}
	if !ok {
		return false
	}

	l.token = token
	return true
}

// Release frees the lock if this process still holds it
func (l *Lock) Release(ctx context.Context) {
	if l.token == "" {
		return
	}

	if err := l.client.Eval(ctx, releaseScript, []string{lockKey}, l.token).Err(); err != nil {
		l.logger.WithError(err).Warn("failed to release run lock")
	}
	l.token = ""
}

// Held reports whether another process currently holds the lock. Used for
// diagnostics only; Acquire is the authoritative check.
func (l *Lock) Held(ctx context.Context) (bool, error) {
	n, err := l.client.Exists(ctx, lockKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check run lock: %w", err)
	}
	return n > 0, nil
}
