package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the per-listing lock.
var ErrLockHeld = errors.New("lock already held")

// Locker provides per-key mutual exclusion across sweeper instances.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// unlockLua deletes a lock key only if its value matches the caller's token,
// so one holder cannot release another holder's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// RedisLocker implements Locker with SETNX + TTL and a Lua conditional unlock.
type RedisLocker struct {
	rdb      *redis.Client
	unlockSc *redis.Script
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{
		rdb:      rdb,
		unlockSc: redis.NewScript(unlockLua),
	}
}

// Acquire obtains the lock for key or returns ErrLockHeld. The returned
// unlock function is safe to call more than once.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := "lock:" + key

	ok, err := l.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	released := false
	unlock := func() {
		if released {
			return
		}
		released = true

		// Background context so the unlock still runs if the caller's
		// context is already cancelled.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.unlockSc.Run(unlockCtx, l.rdb, []string{lk}, token).Err()
	}
	return unlock, nil
}

var _ Locker = (*RedisLocker)(nil)
