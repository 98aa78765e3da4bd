package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// TenantLocker serializes merge execution within a tenant. Merges across
// different tenants run freely in parallel.
type TenantLocker interface {
	// Acquire blocks until the tenant lock is held or the context is done.
	// The returned function releases the lock.
	Acquire(ctx context.Context, tenantID string) (release func(), err error)
}

const (
	lockKeyPrefix    = "dedup:merge-lock:"
	lockTTL          = 30 * time.Second
	lockRetryBackoff = 50 * time.Millisecond
)

// releaseScript deletes the lock key only if this holder still owns it, so
// an expired-and-reacquired lock is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements TenantLocker with SETNX + TTL. The TTL bounds how
// long a crashed holder can block a tenant's merges.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, tenantID string) (func(), error) {
	key := lockKeyPrefix + tenantID
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}

	return func() {
		// Best effort: the TTL reclaims the lock if this fails.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}, nil
}

// MemoryLocker is the in-process TenantLocker used when redis is not
// configured and in tests.
type MemoryLocker struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{gates: map[string]chan struct{}{}}
}

func (l *MemoryLocker) Acquire(ctx context.Context, tenantID string) (func(), error) {
	l.mu.Lock()
	gate, ok := l.gates[tenantID]
	if !ok {
		gate = make(chan struct{}, 1)
		l.gates[tenantID] = gate
	}
	l.mu.Unlock()

	select {
	case gate <- struct{}{}:
		return func() { <-gate }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
