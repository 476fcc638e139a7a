package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/client/retention"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides the message operations of the room.
type MessagesStore struct {
	coll   *mongo.Collection
	feed   ChangeFeed
	logger logging.Logger
	newID  func() string
}

func NewMessagesStore(coll *mongo.Collection, feed ChangeFeed, logger logging.Logger) *MessagesStore {
	return &MessagesStore{
		coll:   coll,
		feed:   feed,
		logger: logger.With("component", "messages"),
		newID:  uuid.NewString,
	}
}

// FindSince returns messages with timestamp >= w.Since, oldest first.
// Ties are broken by id so that repeated snapshots are stable.
func (s *MessagesStore) FindSince(ctx context.Context, w retention.Window) ([]models.Message, error) {
	filter := bson.D{{Key: fieldTimestamp, Value: bson.D{{Key: "$gte", Value: w.Since}}}}
	opts := options.Find().SetSort(bson.D{{Key: fieldTimestamp, Value: 1}, {Key: fieldID, Value: 1}})

	return s.find(ctx, "find messages", filter, opts)
}

// FindStale returns the author's messages older than s.Before.
func (s *MessagesStore) FindStale(ctx context.Context, q retention.Stale) ([]models.Message, error) {
	if q.AuthorID == "" {
		return nil, fmt.Errorf("%w: stale query without author", common.ErrValidation)
	}
	filter := bson.D{
		{Key: fieldAuthorID, Value: q.AuthorID},
		{Key: fieldTimestamp, Value: bson.D{{Key: "$lt", Value: q.Before}}},
	}
	return s.find(ctx, "find stale messages", filter, options.Find())
}

func (s *MessagesStore) find(ctx context.Context, op string, filter any, opts *options.FindOptionsBuilder) ([]models.Message, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrapErr(op, err)
	}

	out := make([]models.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

// Append creates a message. The timestamp is set by the server ($currentDate)
// and returned in the result.
func (s *MessagesStore) Append(ctx context.Context, m models.Message) (models.Message, error) {
	if err := m.Validate(); err != nil {
		return models.Message{}, err
	}

	id := s.newID()
	fields := bson.D{{Key: fieldAuthorID, Value: m.AuthorID}}
	if m.Text != "" {
		fields = append(fields, bson.E{Key: "text", Value: m.Text})
	}
	if m.Media != nil {
		fields = append(fields, bson.E{Key: "media", Value: mediaDoc{Kind: string(m.Media.Kind), URL: m.Media.URL, Hint: m.Media.Hint}})
	}

	update := bson.D{
		{Key: "$setOnInsert", Value: fields},
		{Key: "$currentDate", Value: bson.D{{Key: fieldTimestamp, Value: true}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc messageDoc
	if err := s.coll.FindOneAndUpdate(ctx, bson.D{{Key: fieldID, Value: id}}, update, opts).Decode(&doc); err != nil {
		return models.Message{}, wrapErr("append message", err)
	}

	s.publish(ctx)
	return doc.toModel(), nil
}

// DeleteOwned deletes message id only if authorID wrote it.
// A message that is gone, or belongs to someone else, reports common.ErrNotFound.
func (s *MessagesStore) DeleteOwned(ctx context.Context, id, authorID string) error {
	if authorID == "" {
		return fmt.Errorf("%w: delete without author", common.ErrValidation)
	}
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: fieldID, Value: id}, {Key: fieldAuthorID, Value: authorID}})
	if err != nil {
		return wrapErr("delete message "+id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete message %s: %w", id, common.ErrNotFound)
	}

	s.publish(ctx)
	return nil
}

func (s *MessagesStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	return s.feed.Watch(ctx, common.MessagesCollection)
}

func (s *MessagesStore) publish(ctx context.Context) {
	if err := s.feed.Publish(ctx, common.MessagesCollection); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn(ctx, "failed to publish change", "error", err)
	}
}
