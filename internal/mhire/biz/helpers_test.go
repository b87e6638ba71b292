package biz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mycvconnect/mhire/internal/mhire/store"
	"github.com/mycvconnect/mhire/pkg/chunker"
	"github.com/mycvconnect/mhire/pkg/document"
	"github.com/mycvconnect/mhire/pkg/llm"
	"github.com/mycvconnect/mhire/pkg/llm/hashing"
	"github.com/mycvconnect/mhire/pkg/vectorindex"
)

var errUpstream = errors.New("upstream unavailable")

// fakeChat answers through fn and records every call.
type fakeChat struct {
	mu    sync.Mutex
	fn    func(messages []llm.Message, o llm.ChatOptions) (string, error)
	calls [][]llm.Message
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.mu.Unlock()
	return f.fn(messages, llm.ApplyChatOptions(opts...))
}

func (f *fakeChat) Name() string { return "fake" }

func (f *fakeChat) Calls() [][]llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]llm.Message(nil), f.calls...)
}

func replyWith(answer string) *fakeChat {
	return &fakeChat{fn: func([]llm.Message, llm.ChatOptions) (string, error) { return answer, nil }}
}

// fakeEmbedder returns a constant vector and fails any batch containing
// one of the poison texts.
type fakeEmbedder struct {
	mu     sync.Mutex
	poison map[string]bool
	sizes  []int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.sizes = append(f.sizes, len(texts))
	f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.poison[t] {
			return nil, errUpstream
		}
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

// newTestRetriever indexes docs (name -> text) with the hashing embedder.
func newTestRetriever(t *testing.T, docs map[string]string) *Retriever {
	t.Helper()
	emb, err := hashing.New(256)
	require.NoError(t, err)
	be := NewBatchEmbedder(emb, nil, 8)

	ck, err := chunker.New(1000, 200)
	require.NoError(t, err)
	idx := vectorindex.New(256)
	sc := vectorindex.NewSidecar(1000, 200, emb.Name(), 256)
	for name, text := range docs {
		doc := document.Document{
			ID:         document.IDFor("/docs/" + name),
			SourcePath: "/docs/" + name,
			Name:       name,
			Kind:       document.KindText,
			Text:       text,
		}
		chunks := ck.Split(doc)
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vecs, err := be.Embed(context.Background(), texts)
		require.NoError(t, err)
		for i, c := range chunks {
			require.NoError(t, idx.Insert(c.ID, vecs[i]))
			sc.Add(c)
		}
	}
	return NewRetriever(be, store.NewFileVectorStore(idx, sc), 2)
}

func words(w string, n int) string {
	return strings.TrimSpace(strings.Repeat(w+" ", n))
}
