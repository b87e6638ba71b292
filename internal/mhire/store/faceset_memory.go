package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mycvconnect/mhire/internal/mhire/model"
)

// MemoryFaceSetStore keeps FaceSets in process. Used when MongoDB is
// disabled and in tests.
type MemoryFaceSetStore struct {
	mu       sync.RWMutex
	facesets map[string]*model.FaceSet
	faces    map[string]*model.RegisteredFace
}

// NewMemoryFaceSetStore creates an empty store.
func NewMemoryFaceSetStore() *MemoryFaceSetStore {
	return &MemoryFaceSetStore{
		facesets: make(map[string]*model.FaceSet),
		faces:    make(map[string]*model.RegisteredFace),
	}
}

// ListFaceSets returns copies ordered by creation time.
func (s *MemoryFaceSetStore) ListFaceSets(_ context.Context) ([]*model.FaceSet, error) {
	s.mu.RLock()
	out := make([]*model.FaceSet, 0, len(s.facesets))
	for _, fs := range s.facesets {
		if fs.FaceCount > 0 {
			cp := *fs
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OuterID < out[j].OuterID
	})
	return out, nil
}

// AvailableFaceSet picks the fullest FaceSet that still has room.
func (s *MemoryFaceSetStore) AvailableFaceSet(_ context.Context, capacity int) (*model.FaceSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *model.FaceSet
	for _, fs := range s.facesets {
		if fs.FaceCount >= capacity {
			continue
		}
		if best == nil || fs.FaceCount > best.FaceCount ||
			(fs.FaceCount == best.FaceCount && fs.OuterID < best.OuterID) {
			best = fs
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// SaveFaceSet stores a copy of fs.
func (s *MemoryFaceSetStore) SaveFaceSet(_ context.Context, fs *model.FaceSet) error {
	cp := *fs
	s.mu.Lock()
	s.facesets[fs.OuterID] = &cp
	s.mu.Unlock()
	return nil
}

// AddFace stores a copy of face.
func (s *MemoryFaceSetStore) AddFace(_ context.Context, face *model.RegisteredFace) error {
	cp := *face
	s.mu.Lock()
	s.faces[face.FaceToken] = &cp
	s.mu.Unlock()
	return nil
}

// Faces returns the number of registered faces.
func (s *MemoryFaceSetStore) Faces() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.faces)
}
