package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 2 * time.Hour

// Lock coordinates exclusive job runs across cron workers.
type Lock interface {
	Acquire(ctx context.Context, job string) (bool, error)
	Release(ctx context.Context, job string) error
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock implements Lock using Redis SETNX + TTL, one key per job.
type RedisLock struct {
	client redisStore
	prefix string
	ttl    time.Duration

	mtx    sync.Mutex
	owners map[string]string
}

// NewRedisLock constructs a Redis-backed lock; job keys are "{prefix}:{job}".
func NewRedisLock(client redisStore, prefix string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if strings.TrimSpace(prefix) == "" {
		return nil, errors.New("lock key prefix is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, prefix: prefix, ttl: ttl, owners: map[string]string{}}, nil
}

func (l *RedisLock) key(job string) string {
	return l.prefix + ":" + job
}

// Acquire tries to own the job's lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context, job string) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(job), owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.mtx.Lock()
		l.owners[job] = owner
		l.mtx.Unlock()
	}
	return ok, nil
}

// Release frees the job's lock only if the owner value still matches.
func (l *RedisLock) Release(ctx context.Context, job string) error {
	l.mtx.Lock()
	owner := l.owners[job]
	l.mtx.Unlock()
	if owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key(job))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.forget(job)
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != owner {
		l.forget(job)
		return nil
	}
	if err := l.client.Del(ctx, l.key(job)); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.forget(job)
	return nil
}

func (l *RedisLock) forget(job string) {
	l.mtx.Lock()
	delete(l.owners, job)
	l.mtx.Unlock()
}
