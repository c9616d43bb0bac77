// Package critredis stores entities as JSON values in Redis and evaluates
// criteria with the critmem predicate algebra. Leaf translators that can
// name their keys restrict the critmem.Plan. When every match has to satisfy
// such a leaf, the key scan is replaced with a direct MGET.
package critredis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lemmego/criteria"
)

// =====================================
// Provider Implementation
// =====================================

// Provider implements criteria.Provider using Redis
type Provider struct {
	client *redis.Client
	config criteria.Config
}

var _ criteria.Provider = (*Provider)(nil)

// NewProvider connects to Redis and pings the server.
func NewProvider(config criteria.Config) (*Provider, error) {
	opts, err := clientOptions(config)
	if err != nil {
		return nil, err
	}

	provider := &Provider{client: redis.NewClient(opts), config: config}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := provider.Health(ctx); err != nil {
		_ = provider.client.Close()
		return nil, criteria.NewErrorWithCause(criteria.ErrorTypeConnection, "failed to connect to Redis", err)
	}

	return provider, nil
}

// clientOptions maps config onto redis.Options. ConnectionURL, when set,
// takes precedence over host and port.
func clientOptions(config criteria.Config) (*redis.Options, error) {
	var opts *redis.Options
	if config.ConnectionURL != "" {
		parsed, err := redis.ParseURL(config.ConnectionURL)
		if err != nil {
			return nil, criteria.NewErrorWithCause(criteria.ErrorTypeInvalidArgument, "invalid redis url", err)
		}
		opts = parsed
	} else {
		host := config.Host
		if host == "" {
			host = "localhost"
		}
		port := config.Port
		if port == 0 {
			port = 6379
		}
		opts = &redis.Options{
			Addr:     fmt.Sprintf("%s:%d", host, port),
			Username: config.Username,
			Password: config.Password,
		}
		if config.Database != "" {
			db, err := strconv.Atoi(config.Database)
			if err != nil {
				return nil, criteria.NewError(criteria.ErrorTypeInvalidArgument,
					fmt.Sprintf("redis database must be a number: %s", config.Database))
			}
			opts.DB = db
		}
	}

	if config.MaxOpenConns > 0 {
		opts.PoolSize = config.MaxOpenConns
	}
	if config.MaxIdleConns > 0 {
		opts.MinIdleConns = config.MaxIdleConns
	}
	if config.ConnMaxLifetime > 0 {
		opts.MaxConnAge = config.ConnMaxLifetime
	}
	if config.ConnMaxIdleTime > 0 {
		opts.IdleTimeout = config.ConnMaxIdleTime
	}

	redisOpts := config.Option("redis")
	if dialTimeout, ok := redisOpts["dial_timeout"].(time.Duration); ok {
		opts.DialTimeout = dialTimeout
	}
	if readTimeout, ok := redisOpts["read_timeout"].(time.Duration); ok {
		opts.ReadTimeout = readTimeout
	}
	if writeTimeout, ok := redisOpts["write_timeout"].(time.Duration); ok {
		opts.WriteTimeout = writeTimeout
	}

	return opts, nil
}

// Client returns the underlying client, to be passed to NewRepository.
func (p *Provider) Client() *redis.Client {
	return p.client
}

// Health pings the server.
func (p *Provider) Health(ctx context.Context) error {
	return convertRedisError(p.client.Ping(ctx).Err())
}

// Close closes the client.
func (p *Provider) Close() error {
	return p.client.Close()
}

// ProviderInfo returns information about this provider
func (p *Provider) ProviderInfo() criteria.ProviderInfo {
	return criteria.ProviderInfo{
		Name:         "redis",
		Version:      "1.0.0",
		DatabaseType: criteria.DatabaseTypeKV,
		Dialect:      "redis",
	}
}
