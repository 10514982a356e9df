// pkg/lock/redis.go
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript deletes the key only while it still carries our token,
// so an expired lock taken over by someone else is never released by us.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisOptions configures a RedisLocker.
type RedisOptions struct {
	// KeyPrefix is prepended to the account id, e.g. "ledger:lock:account:".
	KeyPrefix string
	// TTL is how long a held key survives if the holder dies without releasing.
	TTL time.Duration
	// Timeout bounds the whole Acquire call.
	Timeout time.Duration
	// RetryInterval is the pause between SET NX attempts on a busy key.
	RetryInterval time.Duration
}

// RedisLocker is a Locker shared by every process talking to the same Redis.
type RedisLocker struct {
	client   redis.Cmdable
	opts     RedisOptions
	logger   *slog.Logger
	newToken func() string
}

// NewRedisLocker creates a RedisLocker with sensible defaults for zero options.
func NewRedisLocker(client redis.Cmdable, opts RedisOptions, logger *slog.Logger) *RedisLocker {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "ledger:lock:account:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 25 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{
		client:   client,
		opts:     opts,
		logger:   logger,
		newToken: func() string { return uuid.NewString() },
	}
}

func (l *RedisLocker) key(id int64) string {
	return fmt.Sprintf("%s%d", l.opts.KeyPrefix, id)
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, ids ...int64) (Release, error) {
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}

	token := l.newToken()
	ordered := orderedUnique(ids)
	held := make([]string, 0, len(ordered))
	for _, id := range ordered {
		key := l.key(id)
		if err := l.obtain(ctx, key, token); err != nil {
			l.release(held, token)
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(held, token) }) }, nil
}

func (l *RedisLocker) obtain(ctx context.Context, key, token string) error {
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return waitError(ctx)
			}
			return fmt.Errorf("lock: set %s: %w", key, err)
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(l.opts.RetryInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return waitError(ctx)
		}
	}
}

func (l *RedisLocker) release(held []string, token string) {
	// The request context may already be done; releasing must still reach Redis.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(held) - 1; i >= 0; i-- {
		if err := l.client.Eval(ctx, releaseScript, []string{held[i]}, token).Err(); err != nil {
			l.logger.Warn("Failed to release account lock", "key", held[i], "error", err)
		}
	}
}
