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

// MongoFaceSetStore persists FaceSets and their registered face tokens.
type MongoFaceSetStore struct {
	facesets *mongo.Collection
	faces    *mongo.Collection
	timeout  time.Duration
}

// NewMongoFaceSetStore binds the store to the configured collections.
func NewMongoFaceSetStore(client *mongodb.Client) *MongoFaceSetStore {
	opts := client.Options()
	return newMongoFaceSetStore(client.Collection(opts.FaceSetCollection), client.Collection(opts.FaceCollection), opts.OperationTimeout)
}

func newMongoFaceSetStore(facesets, faces *mongo.Collection, timeout time.Duration) *MongoFaceSetStore {
	return &MongoFaceSetStore{facesets: facesets, faces: faces, timeout: timeout}
}

func (s *MongoFaceSetStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// EnsureIndexes creates the lookup index of registered faces.
func (s *MongoFaceSetStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.faces.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "faceset_id", Value: 1}},
		Options: mongoopts.Index().SetName("faceset_id"),
	})
	if err != nil {
		return fmt.Errorf("create registered face index: %w", err)
	}
	return nil
}

// ListFaceSets returns the non-empty FaceSets, oldest first.
func (s *MongoFaceSetStore) ListFaceSets(ctx context.Context) ([]*model.FaceSet, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	findOpts := mongoopts.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.facesets.Find(ctx, bson.M{"face_count": bson.M{"$gt": 0}}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find facesets: %w", err)
	}
	defer cur.Close(ctx)

	var out []*model.FaceSet
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode facesets: %w", err)
	}
	return out, nil
}

// AvailableFaceSet returns the fullest FaceSet below capacity.
func (s *MongoFaceSetStore) AvailableFaceSet(ctx context.Context, capacity int) (*model.FaceSet, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var fs model.FaceSet
	err := s.facesets.FindOne(ctx,
		bson.M{"face_count": bson.M{"$lt": capacity}},
		mongoopts.FindOne().SetSort(bson.D{{Key: "face_count", Value: -1}, {Key: "_id", Value: 1}}),
	).Decode(&fs)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find available faceset: %w", err)
	}
	return &fs, nil
}

// SaveFaceSet upserts fs.
func (s *MongoFaceSetStore) SaveFaceSet(ctx context.Context, fs *model.FaceSet) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.facesets.ReplaceOne(ctx, bson.M{"_id": fs.OuterID}, fs, mongoopts.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save faceset: %w", err)
	}
	return nil
}

// AddFace upserts the registered face; adding the same token twice keeps
// one document.
func (s *MongoFaceSetStore) AddFace(ctx context.Context, face *model.RegisteredFace) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.faces.ReplaceOne(ctx, bson.M{"_id": face.FaceToken}, face, mongoopts.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save registered face: %w", err)
	}
	return nil
}
