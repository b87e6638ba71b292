// Package store holds the persistence layer of the mhire service:
// conversation sessions, verification records and face references, and
// the vector backends queried by retrieval.
package store

import (
	"context"
	"errors"

	"github.com/mycvconnect/mhire/internal/mhire/model"
	"github.com/mycvconnect/mhire/pkg/chunker"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("store: not found")

// SessionStore 会话历史存储。
type SessionStore interface {
	// Load returns the turns of a session, oldest first. Unknown sessions
	// have no turns.
	Load(ctx context.Context, sessionID string) ([]model.Turn, error)

	// Append adds turns to a session in one operation: either all of them
	// are stored or none.
	Append(ctx context.Context, sessionID string, turns ...model.Turn) error
}

// VerificationStore 验证记录与人脸参考存储。
type VerificationStore interface {
	// InsertRecord appends one audit record.
	InsertRecord(ctx context.Context, rec *model.VerificationRecord) error

	// ListRecords returns the user's records newest first. limit <= 0
	// returns all of them.
	ListRecords(ctx context.Context, userID string, limit int) ([]*model.VerificationRecord, error)

	// SaveReference replaces the user's face reference.
	SaveReference(ctx context.Context, ref *model.FaceReference) error

	// GetReference returns ErrNotFound when the user never enrolled.
	GetReference(ctx context.Context, userID string) (*model.FaceReference, error)
}

// FaceSetStore FaceSet 与已注册人脸存储。
type FaceSetStore interface {
	// ListFaceSets returns the FaceSets holding at least one face.
	ListFaceSets(ctx context.Context) ([]*model.FaceSet, error)

	// AvailableFaceSet returns the fullest FaceSet with fewer than
	// capacity faces, ErrNotFound when there is none.
	AvailableFaceSet(ctx context.Context, capacity int) (*model.FaceSet, error)

	// SaveFaceSet creates or replaces a FaceSet.
	SaveFaceSet(ctx context.Context, fs *model.FaceSet) error

	// AddFace records a face token registered in a FaceSet.
	AddFace(ctx context.Context, face *model.RegisteredFace) error
}

// Hit is a chunk returned by a similarity search.
type Hit struct {
	Chunk chunker.Chunk
	Score float32
}

// VectorStore 向量检索后端。
type VectorStore interface {
	// Search returns at most k chunks by non-increasing score.
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// Name identifies the backend in logs.
	Name() string
}
