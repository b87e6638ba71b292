package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mycvconnect/mhire/internal/mhire/model"
	"github.com/mycvconnect/mhire/pkg/component/mongodb"
)

// MongoVerificationStore persists verification records and face
// references in MongoDB. Records are only ever inserted.
type MongoVerificationStore struct {
	records    *mongo.Collection
	references *mongo.Collection
	timeout    time.Duration
}

// NewMongoVerificationStore binds the store to the configured collections.
func NewMongoVerificationStore(client *mongodb.Client) *MongoVerificationStore {
	opts := client.Options()
	return newMongoVerificationStore(client.Collection(opts.RecordCollection), client.Collection(opts.ReferenceCollection), opts.OperationTimeout)
}

func newMongoVerificationStore(records, references *mongo.Collection, timeout time.Duration) *MongoVerificationStore {
	return &MongoVerificationStore{records: records, references: references, timeout: timeout}
}

func (s *MongoVerificationStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// EnsureIndexes creates the history lookup index.
func (s *MongoVerificationStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.records.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: mongoopts.Index().SetName("user_id_created_at"),
	})
	if err != nil {
		return fmt.Errorf("create verification record index: %w", err)
	}
	return nil
}

// InsertRecord inserts rec.
func (s *MongoVerificationStore) InsertRecord(ctx context.Context, rec *model.VerificationRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.records.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert verification record: %w", err)
	}
	return nil
}

// ListRecords returns the user's records newest first. ULIDs sort by
// creation time, so _id breaks timestamp ties.
func (s *MongoVerificationStore) ListRecords(ctx context.Context, userID string, limit int) ([]*model.VerificationRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	findOpts := mongoopts.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}
	cur, err := s.records.Find(ctx, bson.M{"user_id": userID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find verification records: %w", err)
	}
	defer cur.Close(ctx)

	var out []*model.VerificationRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode verification records: %w", err)
	}
	return out, nil
}

// SaveReference upserts the user's reference.
func (s *MongoVerificationStore) SaveReference(ctx context.Context, ref *model.FaceReference) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.references.ReplaceOne(ctx, bson.M{"_id": ref.UserID}, ref, mongoopts.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save face reference: %w", err)
	}
	return nil
}

// GetReference loads the user's reference.
func (s *MongoVerificationStore) GetReference(ctx context.Context, userID string) (*model.FaceReference, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var ref model.FaceReference
	err := s.references.FindOne(ctx, bson.M{"_id": userID}).Decode(&ref)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get face reference: %w", err)
	}
	return &ref, nil
}
