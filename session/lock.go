package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockHeld is returned when another request holds the user's refresh lock.
	ErrLockHeld = errors.New("refresh lock held")
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseLockLua = redis.NewScript(releaseLockScript)

// Locker is a per-user Redis mutex with a bounded hold time.
type Locker struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewLocker returns a Locker whose keys are "<prefix>:<userID>".
func NewLocker(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Locker {
	if prefix == "" {
		prefix = "bk:rlock"
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Locker{redis: rdb, prefix: prefix, ttl: ttl}
}

func (l *Locker) key(userID string) string {
	return l.prefix + ":" + userID
}

// Acquire takes the lock for userID. The returned release func is safe to call
// after the lock expired; it only deletes a lock it still owns.
func (l *Locker) Acquire(ctx context.Context, userID string) (func(), error) {
	owner := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, l.key(userID), owner, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseLockLua.Run(ctx, l.redis, []string{l.key(userID)}, owner).Err()
	}, nil
}
