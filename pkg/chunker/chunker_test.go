package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycvconnect/mhire/pkg/document"
)

func doc(text string) document.Document {
	return document.Document{ID: "d1", Name: "faq.md", SourcePath: "kb/faq.md", Text: text}
}

func TestNew_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.overlap)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestSplit_Boundaries(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	chunks := c.Split(doc(strings.Repeat("x", 2500)))
	require.Len(t, chunks, 3)

	want := [][2]int{{0, 1000}, {800, 1800}, {1600, 2500}}
	for i, ch := range chunks {
		assert.Equal(t, want[i][0], ch.Start, "chunk %d start", i)
		assert.Equal(t, want[i][1], ch.End, "chunk %d end", i)
		assert.Equal(t, i, ch.Seq)
		assert.Equal(t, fmt.Sprintf("d1-%d", i), ch.ID)
		assert.Equal(t, "faq.md", ch.DocumentName)
	}
	assert.Len(t, []rune(chunks[2].Text), 900)
}

func TestSplit_ShortAndEmpty(t *testing.T) {
	c, _ := New(100, 20)

	chunks := c.Split(doc("short"))
	require.Len(t, chunks, 1)
	assert.Equal(t, "short", chunks[0].Text)
	assert.Equal(t, 5, chunks[0].End)

	exact := strings.Repeat("y", 100)
	require.Len(t, c.Split(doc(exact)), 1)

	assert.Empty(t, c.Split(doc("")))
}

func TestSplit_RuneBoundaries(t *testing.T) {
	c, _ := New(3, 1)
	text := "héllo wörld ✓"
	chunks := c.Split(doc(text))
	for _, ch := range chunks {
		assert.Equal(t, ch.End-ch.Start, len([]rune(ch.Text)))
	}
	assert.Equal(t, text, Reconstruct(chunks, 1))
}

func TestReconstruct(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 37) + "Ünïcödé tail"
	for _, size := range []int{1, 2, 7, 50, 333, 1000, 5000} {
		for _, overlap := range []int{0, 1, size / 2, size - 1} {
			if overlap < 0 || overlap >= size {
				continue
			}
			t.Run(fmt.Sprintf("size=%d/overlap=%d", size, overlap), func(t *testing.T) {
				c, err := New(size, overlap)
				require.NoError(t, err)
				chunks := c.Split(doc(text))
				assert.Equal(t, text, Reconstruct(chunks, overlap))

				for i := 1; i < len(chunks); i++ {
					prev, cur := []rune(chunks[i-1].Text), []rune(chunks[i].Text)
					if overlap > 0 {
						assert.Equal(t, string(prev[len(prev)-overlap:]), string(cur[:overlap]))
					}
				}
			})
		}
	}
}
