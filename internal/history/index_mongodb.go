package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"genstudio/internal/core"
)

var newestFirstSort = bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}

// MongoDBIndex implements Index for MongoDB.
type MongoDBIndex struct {
	collection *mongo.Collection
}

// NewMongoDBIndex prepares the history_records collection and its indexes.
func NewMongoDBIndex(ctx context.Context, database *mongo.Database) (*MongoDBIndex, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	collection := database.Collection("history_records")

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := collection.Indexes().CreateOne(indexCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	}); err != nil {
		slog.Warn("failed to create index", "error", err)
	}

	return &MongoDBIndex{collection: collection}, nil
}

func (x *MongoDBIndex) Save(ctx context.Context, rec *core.HistoryRecord) error {
	doc := cloneRecord(rec)
	doc.ImageIDs = nonNil(doc.ImageIDs)
	_, err := x.collection.ReplaceOne(ctx, bson.D{{Key: "_id", Value: rec.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save history record %s: %w", rec.ID, err)
	}
	return nil
}

func (x *MongoDBIndex) Count(ctx context.Context) (int, error) {
	n, err := x.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count history records: %w", err)
	}
	return int(n), nil
}

func (x *MongoDBIndex) Page(ctx context.Context, offset, size int) ([]*core.HistoryRecord, error) {
	opts := options.Find().SetSort(newestFirstSort).SetSkip(int64(offset)).SetLimit(int64(size))
	return x.find(ctx, bson.D{}, opts)
}

func (x *MongoDBIndex) Search(ctx context.Context, query string) ([]*core.HistoryRecord, error) {
	filter := bson.D{}
	if query != "" {
		filter = bson.D{{Key: "prompt", Value: bson.D{
			{Key: "$regex", Value: regexp.QuoteMeta(query)},
			{Key: "$options", Value: "i"},
		}}}
	}
	return x.find(ctx, filter, options.Find().SetSort(newestFirstSort))
}

func (x *MongoDBIndex) Get(ctx context.Context, id string) (*core.HistoryRecord, error) {
	var rec core.HistoryRecord
	if err := x.collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read history record %s: %w", id, err)
	}
	normalizeDecoded(&rec)
	return &rec, nil
}

func (x *MongoDBIndex) Delete(ctx context.Context, id string) error {
	if _, err := x.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
		return fmt.Errorf("failed to delete history record %s: %w", id, err)
	}
	return nil
}

func (x *MongoDBIndex) Clear(ctx context.Context) error {
	if _, err := x.collection.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close is a no-op; the client is managed by the storage layer.
func (x *MongoDBIndex) Close() error {
	return nil
}

func (x *MongoDBIndex) find(ctx context.Context, filter bson.D, opts *options.FindOptionsBuilder) ([]*core.HistoryRecord, error) {
	cursor, err := x.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]*core.HistoryRecord, 0)
	for cursor.Next(ctx) {
		var rec core.HistoryRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode history record: %w", err)
		}
		normalizeDecoded(&rec)
		records = append(records, &rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history records: %w", err)
	}
	return records, nil
}

func normalizeDecoded(rec *core.HistoryRecord) {
	rec.Timestamp = rec.Timestamp.UTC()
	rec.ImageIDs = nonNil(rec.ImageIDs)
}
