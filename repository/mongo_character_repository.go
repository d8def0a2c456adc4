package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/charmemo/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CharacterCollection = "characters"
	AuditLogCollection  = "audit_log"
)

// MongoCharacterRepository implements CharacterRepository on a mongo collection.
// The character id is stored as _id and names are guarded by a unique index.
type MongoCharacterRepository struct {
	collection *mongo.Collection
}

// NewMongoCharacterRepository creates the repository and ensures the unique name index exists
func NewMongoCharacterRepository(ctx context.Context, db *mongo.Database) (CharacterRepository, error) {
	collection := db.Collection(CharacterCollection)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uk_characters_name"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_characters_created_at"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create character indexes: %w", err)
	}

	return &MongoCharacterRepository{collection: collection}, nil
}

func (r *MongoCharacterRepository) Save(ctx context.Context, entity *models.Character) error {
	if _, err := r.collection.InsertOne(ctx, entity); err != nil {
		return fmt.Errorf("failed to save character: %w", classifyMongoInsertError(err))
	}
	return nil
}

// classifyMongoInsertError tells a collision on _id apart from one on the name index
func classifyMongoInsertError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}

	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, writeErr := range we.WriteErrors {
			if writeErr.HasErrorCodeWithMessage(11000, "index: _id_ ") {
				return fmt.Errorf("%w: %w", ErrDuplicateID, err)
			}
		}
	}
	return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
}

func (r *MongoCharacterRepository) ByID(ctx context.Context, id uint64) (*models.Character, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoCharacterRepository) ByName(ctx context.Context, name string) (*models.Character, error) {
	return r.findOne(ctx, bson.M{"name": name})
}

// ByFilter supports orderBy "id ASC" (default) and "id DESC"
func (r *MongoCharacterRepository) ByFilter(ctx context.Context, filter models.CharacterFilter, orderBy string, limit, offset int) ([]*models.Character, error) {
	direction := 1
	if strings.EqualFold(strings.TrimSpace(orderBy), "id DESC") {
		direction = -1
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: direction}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}

	cursor, err := r.collection.Find(ctx, characterFilterDocument(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find characters by filter: %w", err)
	}

	characters := make([]*models.Character, 0)
	if err := cursor.All(ctx, &characters); err != nil {
		return nil, fmt.Errorf("failed to decode characters: %w", err)
	}

	return characters, nil
}

func (r *MongoCharacterRepository) Count(ctx context.Context, filter models.CharacterFilter) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, characterFilterDocument(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count characters: %w", err)
	}
	return count, nil
}

func (r *MongoCharacterRepository) Exists(ctx context.Context, filter models.CharacterFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteByID removes the document with findOneAndDelete and returns what was removed
func (r *MongoCharacterRepository) DeleteByID(ctx context.Context, id uint64) (*models.Character, error) {
	var deleted models.Character
	err := r.collection.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to delete character %d: %w", id, err)
	}
	return &deleted, nil
}

func (r *MongoCharacterRepository) findOne(ctx context.Context, query bson.M) (*models.Character, error) {
	var character models.Character
	err := r.collection.FindOne(ctx, query).Decode(&character)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find character: %w", err)
	}
	return &character, nil
}

func characterFilterDocument(filter models.CharacterFilter) bson.M {
	query := bson.M{}
	if filter.ID != nil {
		query["_id"] = *filter.ID
	}
	if filter.Name != nil {
		query["name"] = *filter.Name
	}

	if created := createdRange(filter.CreatedAfter, filter.CreatedBefore); len(created) > 0 {
		query["created_at"] = created
	}

	return query
}

// createdRange builds an inclusive created_at bound; empty when neither side is set
func createdRange(after, before *time.Time) bson.M {
	created := bson.M{}
	if after != nil {
		created["$gte"] = *after
	}
	if before != nil {
		created["$lte"] = *before
	}
	return created
}

// AuditLogCounter names the sequence document that numbers audit entries
const AuditLogCounter = "auditLogId"

// MongoAuditLogRepository stores audit entries in their own collection.
// Entries are numbered from a counter in the sequences collection so ids match the other drivers.
type MongoAuditLogRepository struct {
	collection *mongo.Collection
	ids        SequenceRepository
}

func NewMongoAuditLogRepository(db *mongo.Database) AuditLogRepository {
	return &MongoAuditLogRepository{
		collection: db.Collection(AuditLogCollection),
		ids:        NewMongoSequenceRepository(db),
	}
}

func (r *MongoAuditLogRepository) Save(ctx context.Context, entity *models.AuditLog) error {
	id, err := r.ids.Increment(ctx, AuditLogCounter)
	if err != nil {
		return fmt.Errorf("failed to number audit log: %w", err)
	}
	entity.ID = uint(id)

	if _, err := r.collection.InsertOne(ctx, entity); err != nil {
		return fmt.Errorf("failed to save audit log: %w", err)
	}
	return nil
}

// ByFilter returns entries newest first
func (r *MongoAuditLogRepository) ByFilter(ctx context.Context, filter models.AuditLogFilter, _ string, limit, offset int) ([]*models.AuditLog, error) {
	query := bson.M{}
	if filter.ID != nil {
		query["_id"] = *filter.ID
	}
	if filter.CharacterID != nil {
		query["character_id"] = *filter.CharacterID
	}
	if filter.Action != nil {
		query["action"] = *filter.Action
	}
	if filter.Success != nil {
		query["success"] = *filter.Success
	}
	if filter.RequestID != nil {
		query["request_id"] = *filter.RequestID
	}
	if created := createdRange(filter.CreatedAfter, filter.CreatedBefore); len(created) > 0 {
		query["created_at"] = created
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	logs := make([]*models.AuditLog, 0)
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode audit logs: %w", err)
	}
	return logs, nil
}
