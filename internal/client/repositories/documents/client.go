// Package documents is the MongoDB adapter for the shared room: the messages
// and users collections read by the feed, and the identities collection used
// by the identity provider. Live queries are driven by a ChangeFeed, either
// MongoDB change streams or a pub/sub fallback.
package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the collections of one database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri, verifies the connection with a ping and selects database.
func Connect(ctx context.Context, uri, database string) (*Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, wrapErr("connect to MongoDB", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, wrapErr("ping MongoDB", err)
	}

	return &Client{client: client, db: client.Database(database)}, nil
}

func (c *Client) Messages() *mongo.Collection {
	return c.db.Collection(common.MessagesCollection)
}

func (c *Client) Users() *mongo.Collection {
	return c.db.Collection(common.UsersCollection)
}

func (c *Client) Identities() *mongo.Collection {
	return c.db.Collection(common.IdentitiesCollection)
}

// Database is used by the change-stream feed to resolve topics.
func (c *Client) Database() *mongo.Database {
	return c.db
}

func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the queries rely on:
// the feed window scan, the per-author stale scan, and identity lookups.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	messageIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("timestamp_asc"),
		},
		{
			Keys:    bson.D{{Key: "author_id", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("author_timestamp"),
		},
	}
	if _, err := c.Messages().Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return wrapErr("create message indexes", err)
	}

	identityIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "federated_provider", Value: 1}, {Key: "subject", Value: 1}},
			Options: options.Index().SetName("federated_subject"),
		},
	}
	if _, err := c.Identities().Indexes().CreateMany(ctx, identityIndexes); err != nil {
		return wrapErr("create identity indexes", err)
	}

	return nil
}

// Drop removes the whole database. Used by integration tests.
func (c *Client) Drop(ctx context.Context) error {
	if err := c.db.Drop(ctx); err != nil {
		return fmt.Errorf("drop database: %w", err)
	}
	return nil
}
