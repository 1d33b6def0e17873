package db

import (
	"context"
	"errors"
	"time"

	"github.com/o2a/bapsim/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultPingTimeout = 5 * time.Second
	defaultConnMaxIdle = 2 * time.Minute
	defaultMinPoolSize = 2
	defaultMaxPoolSize = 50
	defaultConnTimeout = 10 * time.Second
	UsersCollection    = "users"
	PostsCollection    = "posts"
	ReviewsCollection  = "reviews"
)

// Open connects to MongoDB and returns the client together with the
// configured database. The client is safe for concurrent use and should
// be shared for the lifetime of the process.
func Open(ctx context.Context, cfg config.Config) (*mongo.Client, *mongo.Database, error) {
	if cfg.Mongo.URI == "" {
		return nil, nil, errors.New("mongo uri is required")
	}

	connectTimeout := cfg.Mongo.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnTimeout
	}
	maxPool := cfg.Mongo.MaxPoolSize
	if maxPool == 0 {
		maxPool = defaultMaxPoolSize
	}

	opts := options.Client().
		ApplyURI(cfg.Mongo.URI).
		SetConnectTimeout(connectTimeout).
		SetMaxConnIdleTime(defaultConnMaxIdle).
		SetMinPoolSize(defaultMinPoolSize).
		SetMaxPoolSize(maxPool)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	return client, client.Database(cfg.Mongo.Database), nil
}

// Ping reports whether the primary is reachable.
func Ping(ctx context.Context, client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	return client.Ping(ctx, readpref.Primary())
}
