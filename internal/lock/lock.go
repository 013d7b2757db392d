// Package lock serializes real deletions of the same store across processes.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another deletion of the same store is running.
var ErrLocked = errors.New("lock: store deletion already in progress")

// Locker acquires a named lock. The returned release func is safe to call once.
type Locker interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// Local is a process-wide Locker.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) Acquire(_ context.Context, name string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[name]; ok {
		return nil, ErrLocked
	}
	l.held[name] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}, nil
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every instance using the same Redis.
// A lock expires after ttl so a crashed holder cannot block a store forever.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{client: client, prefix: "storeops:lock:", ttl: ttl}
}

func (r *Redis) Acquire(ctx context.Context, name string) (func(), error) {
	key := r.prefix + name
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.client, []string{key}, token).Err()
	}, nil
}
