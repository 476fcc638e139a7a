package documents

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/logging"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ChangeFeed tells live queries when a topic (a collection name) changed.
// Watch returns a channel that receives at least one value after every change
// and is closed when the underlying stream ends; the caller re-opens it.
// Publish is called by stores after their own writes; sources that observe the
// database directly may ignore it.
type ChangeFeed interface {
	Watch(ctx context.Context, topic string) (<-chan struct{}, error)
	Publish(ctx context.Context, topic string) error
}

// StreamFeed is a ChangeFeed over MongoDB change streams. It requires a
// replica set or a sharded cluster.
type StreamFeed struct {
	db     *mongo.Database
	logger logging.Logger
}

func NewStreamFeed(db *mongo.Database, logger logging.Logger) *StreamFeed {
	return &StreamFeed{db: db, logger: logger.With("component", "changestream")}
}

func (f *StreamFeed) Watch(ctx context.Context, topic string) (<-chan struct{}, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "operationType", Value: bson.D{
			{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}},
		}}}}},
	}

	cs, err := f.db.Collection(topic).Watch(ctx, pipeline, options.ChangeStream().SetBatchSize(64))
	if err != nil {
		return nil, wrapErr("watch "+topic, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer cs.Close(context.WithoutCancel(ctx))

		for cs.Next(ctx) {
			signal(out)
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			f.logger.Warn(ctx, "change stream ended", "topic", topic, "error", err)
		}
	}()
	return out, nil
}

// Publish is a no-op: change streams see every write.
func (f *StreamFeed) Publish(context.Context, string) error {
	return nil
}

// signal performs a non-blocking send; pending signals coalesce.
func signal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
