// Package redis wraps the go-redis client used for shared sessions and
// the query-embedding cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	options "github.com/mycvconnect/mhire/pkg/options/redis"
)

// Client wraps goredis.Client and namespaces keys with the configured
// prefix.
type Client struct {
	client *goredis.Client
	opts   *options.Options
}

// New builds the client and pings the server.
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, errors.New("redis options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid redis options: %w", errors.Join(errs...))
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolTimeout:  opts.PoolTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return Wrap(rdb, opts), nil
}

// Wrap adopts an existing go-redis client, mostly for tests.
func Wrap(rdb *goredis.Client, opts *options.Options) *Client {
	if opts == nil {
		opts = options.NewOptions()
	}
	return &Client{client: rdb, opts: opts}
}

// Name returns the component name.
func (c *Client) Name() string { return "redis" }

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.client.Close()
}

// Client returns the underlying go-redis client.
func (c *Client) Client() *goredis.Client { return c.client }

// Key joins parts with ":" under the configured prefix.
func (c *Client) Key(parts ...string) string {
	return c.opts.KeyPrefix + strings.Join(parts, ":")
}
