// Package mongo provides a MongoDB-backed partition source. Every partition
// name maps to one collection in a single database, so all subsystems that
// agree on the tenant package's naming rule address the same physical data.
//
// MongoDB creates collections lazily on first write, which matches the
// partition contract: reads against a collection that has never been written
// return empty results. The few server operations that do fail on a missing
// namespace are mapped to shard.ErrPartitionMissing.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/abhiyaanhq/abhiyaan/shard"
)

// Compile-time interface checks.
var (
	_ shard.Source    = (*Source)(nil)
	_ shard.Partition = (*partition)(nil)
)

// Source is a MongoDB-backed partition source.
type Source struct {
	db *mongod.Database
}

// New creates a source over the given database.
func New(db *mongod.Database) *Source {
	return &Source{db: db}
}

// Partition returns a handle for the named collection. The collection is not
// created until the first write.
func (s *Source) Partition(name string) shard.Partition {
	return &partition{col: s.db.Collection(name)}
}

// Ping verifies the database connection.
func (s *Source) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (s *Source) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

type partition struct {
	col *mongod.Collection
}

func (p *partition) Name() string { return p.col.Name() }

func (p *partition) Find(ctx context.Context, q shard.Query) ([]shard.Row, error) {
	opts := options.Find()
	if len(q.Sort) > 0 {
		sort := bson.D{}
		for _, sf := range q.Sort {
			dir := 1
			if sf.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: sf.Field, Value: dir})
		}
		opts.SetSort(sort)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cur, err := p.col.Find(ctx, filterDoc(q.Filter), opts)
	if err != nil {
		return nil, p.wrap("find", err)
	}
	defer cur.Close(ctx)

	var rows []shard.Row
	if err := cur.All(ctx, &rows); err != nil {
		return nil, p.wrap("find decode", err)
	}
	return rows, nil
}

func (p *partition) Count(ctx context.Context, q shard.Query) (int64, error) {
	n, err := p.col.CountDocuments(ctx, filterDoc(q.Filter))
	if err != nil {
		return 0, p.wrap("count", err)
	}
	return n, nil
}

func (p *partition) Aggregate(ctx context.Context, pipeline []map[string]any) ([]shard.Row, error) {
	stages := make(bson.A, len(pipeline))
	for i, stage := range pipeline {
		stages[i] = bson.M(stage)
	}

	cur, err := p.col.Aggregate(ctx, stages)
	if err != nil {
		return nil, p.wrap("aggregate", err)
	}
	defer cur.Close(ctx)

	var rows []shard.Row
	if err := cur.All(ctx, &rows); err != nil {
		return nil, p.wrap("aggregate decode", err)
	}
	return rows, nil
}

func (p *partition) Insert(ctx context.Context, rows ...shard.Row) error {
	if len(rows) == 0 {
		return nil
	}
	docs := make([]any, len(rows))
	for i, r := range rows {
		docs[i] = bson.M(r)
	}
	if _, err := p.col.InsertMany(ctx, docs); err != nil {
		return p.wrap("insert", err)
	}
	return nil
}

func (p *partition) Update(ctx context.Context, filter map[string]any, set map[string]any) (int64, error) {
	res, err := p.col.UpdateMany(ctx, filterDoc(filter), bson.M{"$set": bson.M(set)})
	if err != nil {
		return 0, p.wrap("update", err)
	}
	return res.ModifiedCount, nil
}

func (p *partition) wrap(op string, err error) error {
	if isNamespaceMissing(err) {
		return fmt.Errorf("%s %s: %w", op, p.col.Name(), shard.ErrPartitionMissing)
	}
	return fmt.Errorf("mongo: %s %s: %w", op, p.col.Name(), err)
}

func filterDoc(filter map[string]any) bson.M {
	if len(filter) == 0 {
		return bson.M{}
	}
	return bson.M(filter)
}

// namespaceNotFound is the server error code for operations against a
// collection that has never been created.
const namespaceNotFound = 26

func isNamespaceMissing(err error) bool {
	var ce mongod.CommandError
	if errors.As(err, &ce) {
		return ce.Code == namespaceNotFound || ce.Name == "NamespaceNotFound"
	}
	return false
}
