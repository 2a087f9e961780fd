package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/pkg/errors"
)

// releaseScript deletes the lock key only when it still holds our token,
// so an expired-and-reacquired lock is never released by the old holder.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Lock is a single-holder distributed lock. The initialization path takes
// one per website URL so concurrent init requests for the same site do not
// fetch twice.
type Lock struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
	log    logging.Logger
}

// LockFactory stamps locks with shared policy.
type LockFactory struct {
	client  *Client
	ttl     time.Duration
	retries int
	backoff time.Duration
	log     logging.Logger
}

// LockOption customizes a LockFactory.
type LockOption func(*LockFactory)

// WithTTL bounds how long a crashed holder can keep a lock.
func WithTTL(ttl time.Duration) LockOption {
	return func(f *LockFactory) { f.ttl = ttl }
}

// WithRetries sets how many times Acquire re-attempts before giving up.
func WithRetries(n int) LockOption {
	return func(f *LockFactory) { f.retries = n }
}

// WithBackoff sets the pause between acquisition attempts.
func WithBackoff(d time.Duration) LockOption {
	return func(f *LockFactory) { f.backoff = d }
}

// NewLockFactory builds a factory with sane defaults for the init path:
// short TTL, a few retries, linear backoff.
func NewLockFactory(client *Client, log logging.Logger, opts ...LockOption) *LockFactory {
	if log == nil {
		log = logging.NewNopLogger()
	}
	f := &LockFactory{
		client:  client,
		ttl:     30 * time.Second,
		retries: 3,
		backoff: 200 * time.Millisecond,
		log:     log.Named("lock"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Acquire takes the named lock, retrying per the factory policy. It returns
// a conflict error when the lock stays held through every attempt.
func (f *LockFactory) Acquire(ctx context.Context, name string) (*Lock, error) {
	lock := &Lock{
		client: f.client,
		key:    f.client.Key("lock", name),
		token:  uuid.New().String(),
		ttl:    f.ttl,
		log:    f.log,
	}

	for attempt := 0; attempt <= f.retries; attempt++ {
		ok, err := f.client.Underlying().SetNX(ctx, lock.key, lock.token, f.ttl).Result()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCacheError, "lock acquire failed")
		}
		if ok {
			return lock, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "lock acquire cancelled")
		case <-time.After(f.backoff):
		}
	}
	return nil, errors.Conflict("resource is locked: " + name)
}

// Release frees the lock if this holder still owns it.
func (l *Lock) Release(ctx context.Context) error {
	res, err := l.client.Underlying().Eval(ctx, releaseScript, []string{l.key}, l.token).Result()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "lock release failed")
	}
	if n, _ := res.(int64); n == 0 {
		l.log.Warn("lock expired before release", logging.String("key", l.key))
	}
	return nil
}
