package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrRegistryNotFound = errors.New("cart registry not found")

const registryCollection = "cart_registries"

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) RegistryRepository {
	return &mongoRepository{
		collection: db.Collection(registryCollection),
	}
}

func (m *mongoRepository) GetRegistry(ctx context.Context, sessionID string) (*RegistryDocument, error) {
	var doc RegistryDocument

	filter := bson.M{"session_id": sessionID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRegistryNotFound
		}
		return nil, fmt.Errorf("failed to get cart registry: %w", err)
	}

	return &doc, nil
}

func (m *mongoRepository) SaveRegistry(ctx context.Context, doc *RegistryDocument) error {
	doc.UpdatedAt = time.Now()

	filter := bson.M{"session_id": doc.SessionID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save cart registry: %w", err)
	}
	return nil
}

func (m *mongoRepository) DeleteRegistry(ctx context.Context, sessionID string) error {
	filter := bson.M{"session_id": sessionID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart registry: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrRegistryNotFound
	}
	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // idle sessions expire after 90 days
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// EnsureIndexes creates the collection indexes when repo is backed by MongoDB.
func EnsureIndexes(ctx context.Context, repo RegistryRepository) error {
	if m, ok := repo.(*mongoRepository); ok {
		return m.CreateIndexes(ctx)
	}
	return nil
}
