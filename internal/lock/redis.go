package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when a Redis lock could not be taken before the deadline.
var ErrNotAcquired = errors.New("lock: not acquired")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisOptions tunes the Redis lock.
type RedisOptions struct {
	Prefix       string
	TTL          time.Duration
	RetryEvery   time.Duration
	WaitDeadline time.Duration
	Logger       *slog.Logger
}

// Redis serializes callers per key across processes sharing one Redis.
// While a lock is held its lease is renewed every TTL/3, so a slow holder
// keeps the key. Keys of a crashed holder expire after TTL.
type Redis struct {
	client *redis.Client
	opts   RedisOptions
}

// NewRedis returns a Redis-backed Locker.
func NewRedis(client *redis.Client, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "mealaccess:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.RetryEvery <= 0 {
		opts.RetryEvery = 25 * time.Millisecond
	}
	if opts.WaitDeadline <= 0 {
		opts.WaitDeadline = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Redis{client: client, opts: opts}
}

// Dial connects to addr and verifies the server answers.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("lock: ping redis: %w", err)
	}
	return client, nil
}

// Lock polls SET NX until it owns key, ctx ends, or the wait deadline passes.
func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := r.opts.Prefix + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, r.opts.WaitDeadline)
	defer cancel()

	ticker := time.NewTicker(r.opts.RetryEvery)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(waitCtx, redisKey, token, r.opts.TTL).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("lock: setnx %q: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, fmt.Errorf("lock: acquire %q: %w", key, ctx.Err())
			}
			return nil, fmt.Errorf("%w: %q", ErrNotAcquired, key)
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	renewed := make(chan struct{})
	go r.renew(redisKey, token, stop, renewed)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-renewed

			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
				r.opts.Logger.Warn("failed to release lock", "key", redisKey, "error", err)
			}
		})
	}, nil
}

// renew extends the lease on redisKey while token still owns it. It returns
// when stop closes or the lease is found to belong to someone else.
func (r *Redis) renew(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	lease := max(r.opts.TTL.Milliseconds(), 1)
	interval := max(r.opts.TTL/3, time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		extended, err := renewScript.Run(ctx, r.client, []string{redisKey}, token, lease).Int()
		cancel()
		switch {
		case err != nil:
			r.opts.Logger.Warn("failed to renew lock", "key", redisKey, "error", err)
		case extended == 0:
			r.opts.Logger.Error("lock lease lost before release", "key", redisKey)
			return
		}
	}
}
