package vectorindex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mycvconnect/mhire/pkg/chunker"
	"github.com/mycvconnect/mhire/pkg/utils/json"
)

// ErrSidecarMismatch means the sidecar was not written by the same ingest
// run as the index file.
var ErrSidecarMismatch = errors.New("vectorindex: sidecar does not match index")

// Sidecar carries the chunk text for every vector in an index file plus
// the parameters the index was built with.
type Sidecar struct {
	ChunkSize      int                      `json:"chunk_size"`
	ChunkOverlap   int                      `json:"chunk_overlap"`
	EmbeddingModel string                   `json:"embedding_model"`
	Dimension      int                      `json:"dimension"`
	BuildID        string                   `json:"build_id,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	Chunks         map[string]chunker.Chunk `json:"chunks"`
}

// NewSidecar returns an empty sidecar stamped with the current time.
func NewSidecar(size, overlap int, model string, dim int) *Sidecar {
	return &Sidecar{
		ChunkSize:      size,
		ChunkOverlap:   overlap,
		EmbeddingModel: model,
		Dimension:      dim,
		CreatedAt:      time.Now().UTC(),
		Chunks:         make(map[string]chunker.Chunk),
	}
}

// Add records ch under its id.
func (s *Sidecar) Add(ch chunker.Chunk) {
	if s.Chunks == nil {
		s.Chunks = make(map[string]chunker.Chunk)
	}
	s.Chunks[ch.ID] = ch
}

// Lookup returns the chunk stored under id.
func (s *Sidecar) Lookup(id string) (chunker.Chunk, bool) {
	ch, ok := s.Chunks[id]
	return ch, ok
}

// Covers reports whether every id of x has chunk text.
func (s *Sidecar) Covers(x *Index) error {
	for _, id := range x.IDs() {
		if _, ok := s.Chunks[id]; !ok {
			return fmt.Errorf("vectorindex: sidecar has no chunk for %s", id)
		}
	}
	return nil
}

// WriteSidecar writes s to path through a temp file and rename.
func WriteSidecar(path string, s *Sidecar) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sidecar dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename sidecar: %w", err)
	}
	return nil
}

// ReadSidecar loads a sidecar written by WriteSidecar.
func ReadSidecar(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode sidecar: %w", err)
	}
	if s.Chunks == nil {
		s.Chunks = make(map[string]chunker.Chunk)
	}
	return &s, nil
}

// Matches checks that s and x come from the same ingest run: equal build
// ids and dimension, and exactly one chunk per stored vector.
func (s *Sidecar) Matches(x *Index) error {
	if s.BuildID != x.BuildID() {
		return fmt.Errorf("%w: build id %q, index has %q", ErrSidecarMismatch, s.BuildID, x.BuildID())
	}
	if s.Dimension != 0 && x.Dim() != 0 && s.Dimension != x.Dim() {
		return fmt.Errorf("%w: dimension %d, index has %d", ErrSidecarMismatch, s.Dimension, x.Dim())
	}
	if err := s.Covers(x); err != nil {
		return err
	}
	if len(s.Chunks) != x.Len() {
		return fmt.Errorf("%w: %d chunks, index has %d", ErrSidecarMismatch, len(s.Chunks), x.Len())
	}
	return nil
}

// LoadWithSidecar loads both files and checks they describe the same chunks.
func LoadWithSidecar(indexPath, sidecarPath string) (*Index, *Sidecar, error) {
	x, err := Load(indexPath)
	if err != nil {
		return nil, nil, err
	}
	s, err := ReadSidecar(sidecarPath)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Matches(x); err != nil {
		return nil, nil, err
	}
	return x, s, nil
}
