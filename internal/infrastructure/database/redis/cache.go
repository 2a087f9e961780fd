package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/pkg/errors"
)

// Serializer converts cached values to and from bytes. JSON is the default;
// tests may substitute.
type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

type jsonSerializer struct{}

func (jsonSerializer) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonSerializer) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// Cache is a typed JSON cache over Redis. Get reports a miss as (false,
// nil); only transport or decoding problems are errors. It satisfies the
// fetcher's PageCache interface.
type Cache struct {
	client     *Client
	serializer Serializer
	defaultTTL time.Duration
	group      singleflight.Group
	log        logging.Logger
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithSerializer replaces the JSON serializer.
func WithSerializer(s Serializer) CacheOption {
	return func(c *Cache) { c.serializer = s }
}

// WithDefaultTTL sets the TTL used when Set is called with ttl <= 0.
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.defaultTTL = ttl }
}

// NewCache builds a cache on an established client.
func NewCache(client *Client, log logging.Logger, opts ...CacheOption) *Cache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &Cache{
		client:     client,
		serializer: jsonSerializer{},
		defaultTTL: 15 * time.Minute,
		log:        log.Named("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get loads the value at key into dest. The boolean reports whether the key
// existed.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Underlying().Get(ctx, c.client.Key(key)).Bytes()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "cache get failed")
	}
	if err := c.serializer.Unmarshal(data, dest); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeSerialization, "cache value decode failed")
	}
	return true, nil
}

// Set stores value at key for ttl; ttl <= 0 falls back to the default.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := c.serializer.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cache value encode failed")
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Underlying().Set(ctx, c.client.Key(key), data, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache set failed")
	}
	return nil
}

// Delete removes keys; missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.client.Key(k)
	}
	if err := c.client.Underlying().Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache delete failed")
	}
	return nil
}

// GetOrSet returns the cached value at key, computing and storing it via
// loader on a miss. Concurrent misses for the same key share one loader
// call through singleflight.
func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	found, err := c.Get(ctx, key, dest)
	if err != nil {
		c.log.Warn("cache read failed, loading directly", logging.Err(err))
	}
	if found {
		return nil
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, v, ttl); err != nil {
			c.log.Warn("cache write failed", logging.String("key", key), logging.Err(err))
		}
		return v, nil
	})
	if err != nil {
		return err
	}

	// Round-trip through the serializer so dest is filled the same way a
	// cache hit would fill it.
	data, err := c.serializer.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cache value encode failed")
	}
	return c.serializer.Unmarshal(data, dest)
}
