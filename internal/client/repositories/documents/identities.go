package documents

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/client/identity"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// IdentitiesStore implements identity.Repository.
type IdentitiesStore struct {
	coll *mongo.Collection
}

func NewIdentitiesStore(coll *mongo.Collection) *IdentitiesStore {
	return &IdentitiesStore{coll: coll}
}

var _ identity.Repository = (*IdentitiesStore)(nil)

func (s *IdentitiesStore) Create(ctx context.Context, r identity.Record) error {
	if _, err := s.coll.InsertOne(ctx, identityDocFrom(r)); err != nil {
		return wrapErr("create identity", err)
	}
	return nil
}

func (s *IdentitiesStore) FindByID(ctx context.Context, id string) (identity.Record, error) {
	return s.findOne(ctx, "find identity", bson.D{{Key: fieldID, Value: id}})
}

func (s *IdentitiesStore) FindByEmail(ctx context.Context, email string) (identity.Record, error) {
	return s.findOne(ctx, "find identity by email", bson.D{{Key: fieldEmail, Value: email}})
}

func (s *IdentitiesStore) FindBySubject(ctx context.Context, provider, subject string) (identity.Record, error) {
	return s.findOne(ctx, "find identity by subject", bson.D{
		{Key: "federated_provider", Value: provider},
		{Key: "subject", Value: subject},
	})
}

func (s *IdentitiesStore) findOne(ctx context.Context, op string, filter bson.D) (identity.Record, error) {
	var d identityDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		return identity.Record{}, wrapErr(op, err)
	}
	return d.toRecord(), nil
}

func (s *IdentitiesStore) MarkEmailVerified(ctx context.Context, id string) error {
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: fieldID, Value: id}}, bson.D{{Key: "$set", Value: bson.D{{Key: "email_verified", Value: true}}}})
	if err != nil {
		return wrapErr("verify email", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("verify email %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (s *IdentitiesStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: fieldID, Value: id}})
	if err != nil {
		return wrapErr("delete identity", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete identity %s: %w", id, common.ErrNotFound)
	}
	return nil
}
