// Package integration starts the backing services used by the integration
// tests. Tests that use it carry the integration build tag and need Docker.
package integration

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

const startupTimeout = 2 * time.Minute

type Postgres struct {
	C   *postgres.PostgresContainer
	URL string
}

func StartPostgres(ctx context.Context) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	c, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("orderflow"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(startupTimeout),
		),
	)
	if err != nil {
		return nil, err
	}
	url, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = c.Terminate(context.Background())
		return nil, err
	}
	return &Postgres{C: c, URL: url}, nil
}

func (p *Postgres) Terminate(ctx context.Context) {
	_ = p.C.Terminate(ctx)
}

type Redis struct {
	C   *tcredis.RedisContainer
	URL string
}

func StartRedis(ctx context.Context) (*Redis, error) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	c, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, err
	}
	url, err := c.ConnectionString(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		return nil, err
	}
	return &Redis{C: c, URL: url}, nil
}

func (r *Redis) Terminate(ctx context.Context) {
	_ = r.C.Terminate(ctx)
}

type LocalStack struct {
	C        *localstack.LocalStackContainer
	Endpoint string
}

func StartLocalStack(ctx context.Context) (*LocalStack, error) {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	c, err := localstack.Run(ctx, "localstack/localstack:3.8")
	if err != nil {
		return nil, err
	}
	endpoint, err := c.PortEndpoint(ctx, "4566/tcp", "http")
	if err != nil {
		_ = c.Terminate(context.Background())
		return nil, err
	}
	return &LocalStack{C: c, Endpoint: endpoint}, nil
}

func (l *LocalStack) Terminate(ctx context.Context) {
	_ = l.C.Terminate(ctx)
}
