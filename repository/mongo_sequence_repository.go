package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/charmemo/models"
	"github.com/amirphl/charmemo/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SequenceCollection holds one document per counter: {_id: name, sequence_value: n}
const SequenceCollection = "sequences"

// MongoSequenceRepository implements SequenceRepository with findOneAndUpdate + $inc
type MongoSequenceRepository struct {
	collection *mongo.Collection
}

// NewMongoSequenceRepository creates a sequence repository on the given database
func NewMongoSequenceRepository(db *mongo.Database) SequenceRepository {
	return &MongoSequenceRepository{
		collection: db.Collection(SequenceCollection),
	}
}

// Increment upserts the counter document and returns the post-increment value
func (r *MongoSequenceRepository) Increment(ctx context.Context, name string) (int64, error) {
	now := utils.UTCNow()
	update := bson.M{
		"$inc":         bson.M{"sequence_value": int64(1)},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter models.SequenceCounter
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": name}, update, opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence %s: %w", name, err)
	}

	return counter.LastValue, nil
}

// Current returns the counter value, 0 when the document does not exist
func (r *MongoSequenceRepository) Current(ctx context.Context, name string) (int64, error) {
	var counter models.SequenceCounter
	err := r.collection.FindOne(ctx, bson.M{"_id": name}).Decode(&counter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read sequence %s: %w", name, err)
	}

	return counter.LastValue, nil
}
