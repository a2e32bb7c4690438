package blobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"genstudio/internal/core"
)

// MongoDBStore implements Store for MongoDB.
type MongoDBStore struct {
	collection *mongo.Collection
}

// NewMongoDBStore prepares the cached_images collection and its indexes.
func NewMongoDBStore(ctx context.Context, database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	collection := database.Collection("cached_images")

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := collection.Indexes().CreateOne(indexCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}},
	}); err != nil {
		slog.Warn("failed to create index", "error", err)
	}

	return &MongoDBStore{collection: collection}, nil
}

func (s *MongoDBStore) Put(ctx context.Context, img *core.CachedImage) error {
	doc := cloneImage(img, true)
	_, err := s.collection.ReplaceOne(ctx, bson.D{{Key: "_id", Value: img.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to write image %s: %w", img.ID, err)
	}
	return nil
}

func (s *MongoDBStore) Get(ctx context.Context, id string) (*core.CachedImage, error) {
	var img core.CachedImage
	err := s.collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&img)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read image %s: %w", id, err)
	}
	img.CreatedAt = img.CreatedAt.UTC()
	return &img, nil
}

func (s *MongoDBStore) List(ctx context.Context) ([]*core.CachedImage, error) {
	cursor, err := s.collection.Find(ctx, bson.D{}, options.Find().SetProjection(bson.D{{Key: "content", Value: 0}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*core.CachedImage
	for cursor.Next(ctx) {
		var img core.CachedImage
		if err := cursor.Decode(&img); err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		img.CreatedAt = img.CreatedAt.UTC()
		out = append(out, &img)
	}
	return out, cursor.Err()
}

func (s *MongoDBStore) Delete(ctx context.Context, id string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
		return fmt.Errorf("failed to delete image %s: %w", id, err)
	}
	return nil
}

func (s *MongoDBStore) Clear(ctx context.Context) error {
	if _, err := s.collection.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("failed to clear images: %w", err)
	}
	return nil
}

// Close is a no-op; the client is managed by the storage layer.
func (s *MongoDBStore) Close() error {
	return nil
}
