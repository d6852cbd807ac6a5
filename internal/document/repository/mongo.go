package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/database"
	"github.com/ninersracing/kbwiki/internal/document"
	"github.com/ninersracing/kbwiki/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SubteamIndex names the composite index backing ordered sub-team queries.
const SubteamIndex = "subteam_createdAt_id"

// MongoRepo implements a MongoDB-backed repository for documents.
// Ids are ObjectID hex strings stored in _id.
type MongoRepo struct {
	col *mongo.Collection
}

// NewMongoRepo wraps col and ensures the sub-team index. A failed index build
// is logged only; ordered queries then fall back to a scan.
func NewMongoRepo(ctx context.Context, col *mongo.Collection) *MongoRepo {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "subteam", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
		Options: options.Index().SetName(SubteamIndex),
	}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		logger.Warnf("documents: ensure index %s: %v", SubteamIndex, err)
	}
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Create(ctx context.Context, doc *document.Document) (string, error) {
	now := time.Now().UTC()
	if doc.ID == "" {
		doc.ID = primitive.NewObjectID().Hex()
	}
	if doc.Tags == nil {
		doc.Tags = document.Tags{}
	}
	if doc.Attachments == nil {
		doc.Attachments = []string{}
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if _, err := m.col.InsertOne(ctx, doc); err != nil {
		return "", apperr.Repository("documents.insert", err)
	}
	return doc.ID, nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, apperr.Repository("documents.get", err)
	}
	return d.Clone(), nil
}

func (m *MongoRepo) Update(ctx context.Context, id string, p document.Patch) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Content != nil {
		set["content"] = *p.Content
	}
	if p.IsPinned != nil {
		set["isPinned"] = *p.IsPinned
	}
	if p.Tags != nil {
		set["tag"] = []string(document.NormalizeTags(*p.Tags))
	}
	if p.Attachments != nil {
		set["attachments"] = *p.Attachments
	}
	if p.SerialNumber != nil {
		set["serialNumber"] = *p.SerialNumber
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return apperr.Repository("documents.update", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.Repository("documents.delete", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) QueryBySubteam(ctx context.Context, subteam string, ordered bool) ([]*document.Document, error) {
	opts := options.Find()
	if ordered {
		opts.SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).SetHint(SubteamIndex)
	}
	docs, err := m.find(ctx, bson.M{"subteam": subteam}, opts)
	if err != nil {
		if ordered && database.IsIndexError(err) {
			return nil, ErrIndexNotReady
		}
		return nil, apperr.Repository("documents.query", err)
	}
	return docs, nil
}

func (m *MongoRepo) ListAll(ctx context.Context) ([]*document.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	docs, err := m.find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, apperr.Repository("documents.list", err)
	}
	return docs, nil
}

func (m *MongoRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*document.Document, error) {
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*document.Document{}
	for cur.Next(ctx) {
		var d document.Document
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d.Clone())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
