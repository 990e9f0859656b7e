// Package mongostore stores payments and tokens in MongoDB. Both collections key
// documents by gateway reference so _id uniqueness gives exactly-once inserts.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DanielPopoola/powervend/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	paymentsCollection = "payments"
	tokensCollection   = "tokens"

	tokenValueIndex = "token_unique"
)

type Client struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// Connect dials MongoDB and verifies the primary is reachable.
func Connect(ctx context.Context, cfg config.MongoConfig, logger *slog.Logger) (*Client, error) {
	client, err := mongo.Connect(ctx, cfg.ClientOptions())
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Info("connected to mongo", "database", cfg.Database)

	return &Client{
		client: client,
		db:     client.Database(cfg.Database),
		logger: logger,
	}, nil
}

func (c *Client) Database() *mongo.Database {
	return c.db
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.logger.Info("closing mongo connection")
	return c.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the stores depend on. It is idempotent.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	_, err := c.db.Collection(paymentsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create payment indexes: %w", err)
	}

	_, err = c.db.Collection(tokensCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetName(tokenValueIndex).SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create token indexes: %w", err)
	}

	c.logger.Info("mongo indexes ensured")
	return nil
}

// duplicateKeyIndex reports the index a duplicate key error was raised on.
func duplicateKeyIndex(err error) (string, bool) {
	if !mongo.IsDuplicateKeyError(err) {
		return "", false
	}

	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if idx := indexFromMessage(e.Message); idx != "" {
				return idx, true
			}
		}
	}
	return indexFromMessage(err.Error()), true
}

// indexFromMessage extracts NAME from "... index: NAME dup key: ...".
func indexFromMessage(msg string) string {
	_, rest, ok := strings.Cut(msg, "index: ")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, " ")
	return name
}
