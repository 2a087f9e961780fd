// Package redis wraps the go-redis client for the two jobs this service
// has for it: a short-TTL page cache in front of the fetcher and a per-URL
// lock that dedupes concurrent target initializations. Both degrade to
// no-ops when Redis is disabled.
package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/pkg/errors"
)

// Config carries connection parameters. KeyPrefix namespaces every key the
// service writes.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

// Client wraps a go-redis universal client with service defaults applied.
type Client struct {
	rdb    goredis.UniversalClient
	prefix string
	log    logging.Logger
}

// NewClient connects and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg Config, log logging.Logger) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.Validation("redis address is required")
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "aivis:"
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        []string{cfg.Addr},
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "redis connection failed")
	}

	c := &Client{rdb: rdb, prefix: cfg.KeyPrefix, log: log.Named("redis")}
	c.log.Info("connected", logging.String("addr", cfg.Addr))
	return c, nil
}

// Ping verifies the connection is alive; health checks use it.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key applies the service prefix to a colon-joined key.
func (c *Client) Key(parts ...string) string {
	key := c.prefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

// Underlying exposes the raw client to the cache and lock layers.
func (c *Client) Underlying() goredis.UniversalClient {
	return c.rdb
}
