package accounts

import (
	"context"
	"errors"

	"github.com/ninersracing/kbwiki/internal/database"
	"github.com/ninersracing/kbwiki/internal/models"
	"github.com/ninersracing/kbwiki/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StatusIndex names the index backing ordered pending queries.
const StatusIndex = "status_createdAt"

// MongoRepo stores requests in the accountRequests collection.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(ctx context.Context, col *mongo.Collection) *MongoRepo {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName(StatusIndex),
	}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		logger.Warnf("accounts: ensure index: %v", err)
	}
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Create(ctx context.Context, r *Request) (string, error) {
	cp := *r
	cp.ID = primitive.NewObjectID().Hex()
	cp.Email = models.NormalizeEmail(cp.Email)
	if _, err := m.col.InsertOne(ctx, &cp); err != nil {
		return "", err
	}
	return cp.ID, nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*Request, error) {
	var r Request
	if err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (m *MongoRepo) QueryPending(ctx context.Context, ordered bool) ([]*Request, error) {
	opts := options.Find()
	if ordered {
		opts.SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).SetHint(StatusIndex)
	}
	rs, err := m.find(ctx, bson.M{"status": StatusPending}, opts)
	if err != nil && ordered && database.IsIndexError(err) {
		return nil, ErrIndexNotReady
	}
	return rs, err
}

func (m *MongoRepo) ListAll(ctx context.Context) ([]*Request, error) {
	return m.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
}

func (m *MongoRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*Request, error) {
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*Request{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoRepo) SetStatus(ctx context.Context, id string, d Decision) error {
	set := bson.M{"status": d.Status, "note": d.Note, "decidedAt": d.At}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
