//go:build cgo

package retrieval

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/store"
)

// fixedEmbedder embeds every text to the same vector.
type fixedEmbedder struct {
	vec []float32
	err error
}

func (f fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func newSQLiteStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "idx.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSQLiteRequiresVectors(t *testing.T) {
	s := newSQLiteStore(t)
	lazy := NewLazy(OpenSQLite(s, fixedEmbedder{vec: []float32{1, 0, 0, 0}}), 0)

	_, err := lazy.Get(context.Background())
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.Contains(t, err.Error(), "run seed first")
}

func TestSQLiteIndexSearch(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	rows, err := s.InsertChunks(ctx, []store.Chunk{
		{ChunkID: "BNS_Sec_103_chunk_0", SourceKind: "section", SourceID: "BNS_Sec_103", Text: "murder"},
		{ChunkID: "2019_SC_12_chunk_0", SourceKind: "case", SourceID: "2019_SC_12", Text: "appeal"},
	})
	require.NoError(t, err)
	require.NoError(t, s.InsertEmbedding(ctx, rows[0], []float32{1, 0, 0, 0}))
	require.NoError(t, s.InsertEmbedding(ctx, rows[1], []float32{0, 1, 0, 0}))

	idx, err := OpenSQLite(s, fixedEmbedder{vec: []float32{1, 0, 0, 0}})(ctx)
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "punishment for murder", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "BNS_Sec_103_chunk_0", hits[0].ID)
	assert.Equal(t, graph.KindSection, hits[0].SourceKind)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

	bySource, err := idx.ChunksBySource(ctx, []string{"2019_SC_12"}, 10)
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, "appeal", bySource[0].Text)

	n, err := idx.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteIndexEmbedFailure(t *testing.T) {
	s := newSQLiteStore(t)
	idx := NewSQLiteIndex(s, fixedEmbedder{err: errors.New("ollama down")})
	_, err := idx.Search(context.Background(), "q", 3)
	assert.ErrorContains(t, err, "ollama down")

	_, err = NewSQLiteIndex(s, nil).Search(context.Background(), "q", 3)
	assert.Error(t, err)
}
