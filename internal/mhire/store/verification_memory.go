package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mycvconnect/mhire/internal/mhire/model"
)

// MemoryVerificationStore is the in-process VerificationStore used when
// MongoDB is disabled and in tests.
type MemoryVerificationStore struct {
	mu         sync.RWMutex
	records    []*model.VerificationRecord
	references map[string]*model.FaceReference
}

// NewMemoryVerificationStore creates an empty store.
func NewMemoryVerificationStore() *MemoryVerificationStore {
	return &MemoryVerificationStore{references: make(map[string]*model.FaceReference)}
}

// InsertRecord stores a copy of rec.
func (s *MemoryVerificationStore) InsertRecord(_ context.Context, rec *model.VerificationRecord) error {
	cp := *rec
	s.mu.Lock()
	s.records = append(s.records, &cp)
	s.mu.Unlock()
	return nil
}

// ListRecords returns copies, newest first; equal timestamps keep the
// later insert first.
func (s *MemoryVerificationStore) ListRecords(_ context.Context, userID string, limit int) ([]*model.VerificationRecord, error) {
	s.mu.RLock()
	var out []*model.VerificationRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].UserID == userID {
			cp := *s.records[i]
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveReference replaces the user's reference.
func (s *MemoryVerificationStore) SaveReference(_ context.Context, ref *model.FaceReference) error {
	cp := *ref
	s.mu.Lock()
	s.references[ref.UserID] = &cp
	s.mu.Unlock()
	return nil
}

// GetReference returns a copy of the user's reference.
func (s *MemoryVerificationStore) GetReference(_ context.Context, userID string) (*model.FaceReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.references[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ref
	return &cp, nil
}
