package portfolio

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo stores portfolios keyed by user id and slugs keyed by slug.
type MongoRepo struct {
	portfolios *mongo.Collection
	slugs      *mongo.Collection
}

func NewMongoRepo(portfolios, slugs *mongo.Collection) *MongoRepo {
	return &MongoRepo{portfolios: portfolios, slugs: slugs}
}

func (m *MongoRepo) Get(ctx context.Context, userID string) (*Portfolio, error) {
	var p Portfolio
	if err := m.portfolios.FindOne(ctx, bson.M{"_id": userID}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (m *MongoRepo) Save(ctx context.Context, p *Portfolio) error {
	_, err := m.portfolios.ReplaceOne(ctx, bson.M{"_id": p.UserID}, p, options.Replace().SetUpsert(true))
	return err
}

func (m *MongoRepo) ClaimSlug(ctx context.Context, owner SlugOwner) error {
	_, err := m.slugs.InsertOne(ctx, owner)
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	cur, err := m.GetSlug(ctx, owner.Slug)
	if err != nil {
		return err
	}
	if cur.UserID != owner.UserID {
		return ErrSlugTaken
	}
	return nil
}

func (m *MongoRepo) GetSlug(ctx context.Context, slug string) (*SlugOwner, error) {
	var o SlugOwner
	if err := m.slugs.FindOne(ctx, bson.M{"_id": slug}).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}
