// Package chunker splits document text into fixed-size, overlapping
// chunks measured in runes.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mycvconnect/mhire/pkg/document"
)

const (
	// DefaultChunkSize is the default number of runes per chunk.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the default number of runes shared by neighbours.
	DefaultChunkOverlap = 200
)

// ErrInvalidConfiguration is returned when size and overlap cannot produce
// forward progress.
var ErrInvalidConfiguration = errors.New("chunker: invalid configuration")

// Chunk is an immutable slice of a document. Start and End are rune
// offsets into the document text, End exclusive.
type Chunk struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	SourcePath   string `json:"source"`
	Seq          int    `json:"seq"`
	Start        int    `json:"start"`
	End          int    `json:"end"`
	Text         string `json:"text"`
}

// Chunker holds a validated size/overlap pair.
type Chunker struct {
	size    int
	overlap int
}

// New validates the configuration. overlap must satisfy 0 <= overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be within [0, %d), got %d", ErrInvalidConfiguration, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the chunk size in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts doc into chunks. Chunk i starts at i*(size-overlap); the last
// chunk ends at the end of the text and may be shorter than size. Text of
// at most size runes yields one chunk, empty text yields none.
func (c *Chunker) Split(doc document.Document) []Chunk {
	runes := []rune(doc.Text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]Chunk, 0, (n+step-1)/step)
	for start, seq := 0, 0; ; start, seq = start+step, seq+1 {
		end := min(start+c.size, n)
		chunks = append(chunks, Chunk{
			ID:           ChunkID(doc.ID, seq),
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			SourcePath:   doc.SourcePath,
			Seq:          seq,
			Start:        start,
			End:          end,
			Text:         string(runes[start:end]),
		})
		if end == n {
			break
		}
	}
	return chunks
}

// ChunkID builds the id of chunk seq of document docID.
func ChunkID(docID string, seq int) string {
	return fmt.Sprintf("%s-%d", docID, seq)
}

// Reconstruct reverses Split for chunks of one document in Seq order: the
// leading overlap runes of every chunk but the first are dropped.
func Reconstruct(chunks []Chunk, overlap int) string {
	var b strings.Builder
	for i, ch := range chunks {
		if i == 0 {
			b.WriteString(ch.Text)
			continue
		}
		r := []rune(ch.Text)
		if overlap < len(r) {
			b.WriteString(string(r[overlap:]))
		}
	}
	return b.String()
}
