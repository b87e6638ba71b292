// Package vectorindex is an exact, in-process cosine similarity index
// with a checksummed on-disk format.
package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
)

var (
	ErrDimensionMismatch = errors.New("vectorindex: dimension mismatch")
	ErrDuplicateID       = errors.New("vectorindex: duplicate id")
	ErrEmptyID           = errors.New("vectorindex: empty id")
	ErrEmptyVector       = errors.New("vectorindex: empty vector")
)

// Result is one query hit.
type Result struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

type entry struct {
	id   string
	vec  []float32
	norm float64
}

// Index stores vectors in insertion order. It is safe for concurrent use;
// serving loads it once and only queries it afterwards.
type Index struct {
	mu      sync.RWMutex
	dim     int
	buildID string
	entries []entry
	ids     map[string]int
}

// New creates an empty index. dim <= 0 lets the first Insert fix it.
func New(dim int) *Index {
	if dim < 0 {
		dim = 0
	}
	return &Index{dim: dim, ids: make(map[string]int)}
}

// Dim returns the vector dimension, 0 while unset.
func (x *Index) Dim() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// BuildID returns the id of the ingest run that produced the index, empty
// for indexes written before build ids existed.
func (x *Index) BuildID() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.buildID
}

// SetBuildID stamps the index with the ingest run id Persist writes out.
func (x *Index) SetBuildID(id string) {
	x.mu.Lock()
	x.buildID = id
	x.mu.Unlock()
}

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// IDs returns the stored ids in insertion order.
func (x *Index) IDs() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, len(x.entries))
	for i, e := range x.entries {
		out[i] = e.id
	}
	return out
}

// Vector returns a copy of the vector stored under id.
func (x *Index) Vector(id string) ([]float32, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	i, ok := x.ids[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(x.entries[i].vec), true
}

// Insert appends vector under id. The vector is copied.
func (x *Index) Insert(id string, vector []float32) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(vector) == 0 {
		return ErrEmptyVector
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dim == 0 {
		x.dim = len(vector)
	}
	if len(vector) != x.dim {
		return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(vector), x.dim)
	}
	if _, ok := x.ids[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	x.ids[id] = len(x.entries)
	x.entries = append(x.entries, entry{id: id, vec: slices.Clone(vector), norm: norm(vector)})
	return nil
}

// Query returns the k vectors most similar to vector, best first. Equal
// scores keep insertion order. k larger than Len returns every vector,
// k <= 0 returns none.
func (x *Index) Query(vector []float32, k int) ([]Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if k <= 0 || len(x.entries) == 0 {
		return []Result{}, nil
	}
	if len(vector) != x.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vector), x.dim)
	}

	qn := norm(vector)
	results := make([]Result, len(x.entries))
	for i, e := range x.entries {
		results[i] = Result{ID: e.id, Score: cosine(vector, qn, e.vec, e.norm)}
	}
	// stable: ties keep insertion order
	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func norm(v []float32) float64 {
	var s float64
	for _, f := range v {
		s += float64(f) * float64(f)
	}
	return math.Sqrt(s)
}

func cosine(a []float32, an float64, b []float32, bn float64) float32 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (an * bn))
}
