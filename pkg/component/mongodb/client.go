// Package mongodb wraps the MongoDB driver client used by the
// verification stores.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	options "github.com/mycvconnect/mhire/pkg/options/mongodb"
)

// Client wraps mongo.Client bound to the configured database.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	opts     *options.Options
}

// New connects and pings the primary. ctx bounds the connection attempt.
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, errors.New("mongodb options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid mongodb options: %w", errors.Join(errs...))
	}

	clientOpts := mongoopts.Client().ApplyURI(opts.BuildURI())
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(opts.MinPoolSize)
	}
	if opts.MaxConnIdleTime > 0 {
		clientOpts.SetMaxConnIdleTime(opts.MaxConnIdleTime)
	}
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}
	if opts.ServerSelectionTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(opts.ServerSelectionTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Client{
		client:   client,
		database: client.Database(opts.Database),
		opts:     opts,
	}, nil
}

// Name returns the component name.
func (c *Client) Name() string { return "mongodb" }

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects, waiting for in-flight operations until ctx expires.
func (c *Client) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Disconnect(ctx)
}

// Database returns the configured database.
func (c *Client) Database() *mongo.Database { return c.database }

// Collection returns a collection of the configured database.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.database.Collection(name)
}

// Options returns the options the client was built from.
func (c *Client) Options() *options.Options { return c.opts }
