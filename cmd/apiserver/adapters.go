package main

import (
	"context"

	"github.com/turtacn/aivis/internal/application/visibility"
	"github.com/turtacn/aivis/internal/infrastructure/database/postgres"
	"github.com/turtacn/aivis/internal/infrastructure/database/redis"
)

// Readiness checkers for the wired backing stores.

type postgresHealthChecker struct {
	conn *postgres.Connection
}

func (c postgresHealthChecker) Name() string { return "postgres" }

func (c postgresHealthChecker) Check(ctx context.Context) error {
	return c.conn.HealthCheck(ctx)
}

type redisHealthChecker struct {
	client *redis.Client
}

func (c redisHealthChecker) Name() string { return "redis" }

func (c redisHealthChecker) Check(ctx context.Context) error {
	return c.client.Ping(ctx)
}

// lockFactoryAdapter bridges the concrete *redis.Lock return type to the
// service's InitLock interface.
type lockFactoryAdapter struct {
	factory *redis.LockFactory
}

func (a lockFactoryAdapter) Acquire(ctx context.Context, name string) (visibility.InitLock, error) {
	lock, err := a.factory.Acquire(ctx, name)
	if err != nil {
		return nil, err
	}
	return lock, nil
}
