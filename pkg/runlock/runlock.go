// Package runlock provides a Redis-backed mutex keyed on a fixed job name.
package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type Lock struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func New(rdb *redis.Client, job string, ttl time.Duration) *Lock {
	return &Lock{rdb: rdb, key: Key(job), ttl: ttl}
}

func Key(job string) string {
	return fmt.Sprintf("lock:job:%s", job)
}

// Acquire takes the lock for ttl. ok is false when another holder has it.
func (l *Lock) Acquire(ctx context.Context) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
	}
	return release, true, nil
}
