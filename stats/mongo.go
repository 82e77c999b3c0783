package stats

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection holding one materialized document per tenant (_id = tenant id).
const collection = "precomputed_stats"

// Compile-time interface check.
var _ Store = (*MongoStore)(nil)

// MongoStore persists materialized documents in MongoDB.
type MongoStore struct {
	col *mongod.Collection
}

// NewMongoStore creates a store over the given database.
func NewMongoStore(db *mongod.Database) *MongoStore {
	return &MongoStore{col: db.Collection(collection)}
}

// Get returns one tenant's document, or ErrNotFound.
func (s *MongoStore) Get(ctx context.Context, tenantID int) (*TenantStats, error) {
	var doc TenantStats
	err := s.col.FindOne(ctx, bson.M{"_id": tenantID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongod.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stats/mongo: get tenant %d: %w", tenantID, err)
	}
	return &doc, nil
}

// GetAll returns every document in tenant order.
func (s *MongoStore) GetAll(ctx context.Context) ([]*TenantStats, error) {
	cur, err := s.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("stats/mongo: get all: %w", err)
	}
	defer cur.Close(ctx)

	var docs []*TenantStats
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("stats/mongo: decode all: %w", err)
	}
	return docs, nil
}

// Put writes or replaces one tenant's document.
func (s *MongoStore) Put(ctx context.Context, doc *TenantStats) error {
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.TenantID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("stats/mongo: put tenant %d: %w", doc.TenantID, err)
	}
	return nil
}
