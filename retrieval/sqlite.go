package retrieval

import (
	"context"
	"fmt"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/store"
)

// SQLiteIndex searches the sqlite-vec chunk table.
type SQLiteIndex struct {
	store    *store.Store
	embedder Embedder
}

var _ Index = (*SQLiteIndex)(nil)

// NewSQLiteIndex returns an index over s. Queries are embedded with e.
func NewSQLiteIndex(s *store.Store, e Embedder) *SQLiteIndex {
	return &SQLiteIndex{store: s, embedder: e}
}

// OpenSQLite returns a Loader that fails while the store holds no vectors,
// so an unseeded database reports itself unavailable instead of answering
// from nothing.
func OpenSQLite(s *store.Store, e Embedder) Loader {
	return func(ctx context.Context) (Index, error) {
		n, err := s.ChunkCount(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting vectors: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("no embedded chunks in %s; run seed first", s.Path())
		}
		return NewSQLiteIndex(s, e), nil
	}
}

// Search embeds query and runs a KNN search.
func (x *SQLiteIndex) Search(ctx context.Context, query string, k int) ([]Chunk, error) {
	vec, err := embedQuery(ctx, x.embedder, query)
	if err != nil {
		return nil, err
	}
	hits, err := x.store.VectorSearch(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	out := make([]Chunk, len(hits))
	for i, h := range hits {
		out[i] = fromStore(h.Chunk)
		out[i].Score = h.Score
	}
	return out, nil
}

// ChunksBySource returns chunks owned by any of ids, in insertion order.
func (x *SQLiteIndex) ChunksBySource(ctx context.Context, ids []string, limit int) ([]Chunk, error) {
	rows, err := x.store.ChunksBySource(ctx, ids, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Chunk, len(rows))
	for i, c := range rows {
		out[i] = fromStore(c)
	}
	return out, nil
}

// Size returns the number of embedded chunks.
func (x *SQLiteIndex) Size(ctx context.Context) (int, error) {
	return x.store.ChunkCount(ctx)
}

func fromStore(c store.Chunk) Chunk {
	return Chunk{
		ID:         c.ChunkID,
		SourceKind: graph.Kind(c.SourceKind),
		SourceID:   c.SourceID,
		Text:       c.Text,
	}
}

func embedQuery(ctx context.Context, e Embedder, query string) ([]float32, error) {
	if e == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	vecs, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return vecs[0], nil
}
