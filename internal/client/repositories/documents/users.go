package documents

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/client/models"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UsersStore provides the profile directory. Every mutation is keyed by the
// caller's own id.
type UsersStore struct {
	coll   *mongo.Collection
	feed   ChangeFeed
	logger logging.Logger
}

func NewUsersStore(coll *mongo.Collection, feed ChangeFeed, logger logging.Logger) *UsersStore {
	return &UsersStore{coll: coll, feed: feed, logger: logger.With("component", "users")}
}

// FindAll returns the whole directory, unordered.
func (s *UsersStore) FindAll(ctx context.Context) ([]models.User, error) {
	cursor, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, wrapErr("find users", err)
	}
	defer cursor.Close(ctx)

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrapErr("find users", err)
	}

	out := make([]models.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (s *UsersStore) Get(ctx context.Context, id string) (models.User, error) {
	var d userDoc
	if err := s.coll.FindOne(ctx, bson.D{{Key: fieldID, Value: id}}).Decode(&d); err != nil {
		return models.User{}, wrapErr("get user "+id, err)
	}
	return d.toModel(), nil
}

// CreateProfile writes the profile of a new account, merging with any
// existing document of the same id.
func (s *UsersStore) CreateProfile(ctx context.Context, u models.User) error {
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "name", Value: u.Name},
			{Key: fieldEmail, Value: u.Email},
			{Key: fieldAvatar, Value: u.AvatarURL},
			{Key: fieldOnline, Value: u.Online},
		}},
		{Key: "$currentDate", Value: bson.D{{Key: "registered_at", Value: true}}},
	}
	_, err := s.coll.UpdateOne(ctx, bson.D{{Key: fieldID, Value: u.ID}}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return wrapErr("create profile "+u.ID, err)
	}
	s.publish(ctx)
	return nil
}

func (s *UsersStore) UpdateAvatar(ctx context.Context, id, url string) error {
	return s.set(ctx, "update avatar", id, fieldAvatar, url)
}

func (s *UsersStore) SetOnline(ctx context.Context, id string, online bool) error {
	return s.set(ctx, "set online", id, fieldOnline, online)
}

func (s *UsersStore) set(ctx context.Context, op, id, field string, value any) error {
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: fieldID, Value: id}}, bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: value}}}})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s %s: %w", op, id, common.ErrNotFound)
	}
	s.publish(ctx)
	return nil
}

// DeleteProfile removes the profile record of id.
func (s *UsersStore) DeleteProfile(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: fieldID, Value: id}})
	if err != nil {
		return wrapErr("delete profile "+id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete profile %s: %w", id, common.ErrNotFound)
	}
	s.publish(ctx)
	return nil
}

func (s *UsersStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	return s.feed.Watch(ctx, common.UsersCollection)
}

func (s *UsersStore) publish(ctx context.Context) {
	if err := s.feed.Publish(ctx, common.UsersCollection); err != nil {
		s.logger.Warn(ctx, "failed to publish change", "error", err)
	}
}
