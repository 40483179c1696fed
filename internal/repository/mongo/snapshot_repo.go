package mongo

import (
	"context"
	"errors"
	"time"

	"alcyxob/rehabflow/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const snapshotCollectionName = "snapshots"

// snapshotDocument is one slot. The payload is kept as the exact JSON text
// the record store produced so every backend holds the same bytes.
type snapshotDocument struct {
	Slot      string    `bson:"_id"`
	Document  string    `bson:"document"`
	Size      int       `bson:"size"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// mongoSnapshotRepository implements repository.SnapshotRepository
type mongoSnapshotRepository struct {
	collection *mongo.Collection
}

// NewMongoSnapshotRepository creates a snapshot repository backed by MongoDB.
func NewMongoSnapshotRepository(db *mongo.Database) repository.SnapshotRepository {
	return &mongoSnapshotRepository{
		collection: db.Collection(snapshotCollectionName),
	}
}

// Load fetches the slot document by its _id.
func (r *mongoSnapshotRepository) Load(ctx context.Context, slot string) ([]byte, error) {
	var doc snapshotDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": slot}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return []byte(doc.Document), nil
}

// Save upserts the slot document, replacing the previous payload in one write.
func (r *mongoSnapshotRepository) Save(ctx context.Context, slot string, data []byte) error {
	doc := snapshotDocument{
		Slot:      slot,
		Document:  string(data),
		Size:      len(data),
		UpdatedAt: time.Now().UTC(),
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": slot}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 && result.UpsertedCount == 0 {
		return repository.ErrWriteFailed
	}
	return nil
}

// EnsureSnapshotIndexes indexes updatedAt so stale slots can be listed.
// Failure is logged by the caller and is not fatal.
func EnsureSnapshotIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(snapshotCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "updatedAt", Value: -1}},
		Options: options.Index().SetName("updatedAt_desc"),
	})
	return err
}
