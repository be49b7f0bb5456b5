package retrieval

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"
)

// memIndex is an in-memory Index with fixed similarity scores.
type memIndex struct {
	chunks    []Chunk
	searchErr error

	mu       sync.Mutex
	searches []int
}

func (m *memIndex) Search(_ context.Context, _ string, k int) ([]Chunk, error) {
	m.mu.Lock()
	m.searches = append(m.searches, k)
	m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	out := append([]Chunk(nil), m.chunks...)
	byScore(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *memIndex) ChunksBySource(_ context.Context, ids []string, limit int) ([]Chunk, error) {
	var out []Chunk
	for _, c := range m.chunks {
		if slices.Contains(ids, c.SourceID) {
			c.Score = 0
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memIndex) Size(context.Context) (int, error) { return len(m.chunks), nil }

func chunk(id string, kind graph.Kind, source string, score float64) Chunk {
	return Chunk{ID: id, SourceKind: kind, SourceID: source, Text: "text of " + id, Score: score}
}

// caseHeavy has ten strong case chunks and weak statute chunks.
func caseHeavy() *memIndex {
	m := &memIndex{}
	for i := 0; i < 10; i++ {
		m.chunks = append(m.chunks, chunk(fmt.Sprintf("case_%d_chunk_0", i), graph.KindCase, fmt.Sprintf("case_%d", i), 0.95-float64(i)*0.01))
	}
	m.chunks = append(m.chunks,
		chunk("BNS_Sec_103_chunk_0", graph.KindSection, "BNS_Sec_103", 0.40),
		chunk("BNS_Sec_103_chunk_1", graph.KindSection, "BNS_Sec_103", 0.35),
		chunk("BNS_Sec_101_chunk_0", graph.KindSection, "BNS_Sec_101", 0.30),
		chunk("Constitution_Art_21_chunk_0", graph.KindArticle, "Constitution_Art_21", 0.38),
		chunk("Constitution_Art_14_chunk_0", graph.KindArticle, "Constitution_Art_14", 0.20),
		chunk("Constitution_Art_14_chunk_1", graph.KindArticle, "Constitution_Art_14", 0.10),
	)
	return m
}

func newRetriever(idx Index) *Retriever {
	return New(Ready(idx), DefaultConfig())
}

func ids(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.ID
	}
	return out
}

func countKind(chunks []Chunk, k graph.Kind) int {
	n := 0
	for _, c := range chunks {
		if c.SourceKind == k {
			n++
		}
	}
	return n
}

func TestUnconstrainedDiversifies(t *testing.T) {
	idx := caseHeavy()
	res := newRetriever(idx).Retrieve(context.Background(), "punishment for murder", 6, nil)

	require.Empty(t, res.Error)
	assert.False(t, res.UsedConstraints)
	assert.False(t, res.UsedFallback)
	require.Len(t, res.Chunks, 6)
	assert.Equal(t, 2, countKind(res.Chunks, graph.KindSection))
	assert.Equal(t, 2, countKind(res.Chunks, graph.KindArticle))
	assert.Equal(t, []string{
		"BNS_Sec_103_chunk_0", "BNS_Sec_103_chunk_1",
		"Constitution_Art_21_chunk_0", "Constitution_Art_14_chunk_0",
		"case_0_chunk_0", "case_1_chunk_0",
	}, ids(res.Chunks))
	assert.InDelta(t, 0.95, res.TopSimilarity, 1e-9)

	// Over-retrieval is capped at the index size.
	assert.Equal(t, []int{16}, idx.searches)
	assert.Equal(t, "unconstrained", res.Trace.Policy)
}

func TestUnconstrainedOverRetrieveFloorIsK(t *testing.T) {
	idx := &memIndex{chunks: []Chunk{chunk("a", graph.KindCase, "A", 0.5)}}
	res := newRetriever(idx).Retrieve(context.Background(), "q", 5, nil)
	require.Empty(t, res.Error)
	assert.Equal(t, []int{5}, idx.searches)
	assert.Len(t, res.Chunks, 1)
}

func TestEmptyConstraintsMatchNil(t *testing.T) {
	r := newRetriever(caseHeavy())
	ctx := context.Background()

	withNil := r.Retrieve(ctx, "q", 6, nil)
	withEmpty := r.Retrieve(ctx, "q", 6, &graph.ConstraintSet{})

	assert.Equal(t, ids(withNil.Chunks), ids(withEmpty.Chunks))
	assert.Equal(t, withNil.UsedConstraints, withEmpty.UsedConstraints)
	assert.Equal(t, withNil.TopSimilarity, withEmpty.TopSimilarity)
}

func TestConstrainedMustIncludeFirst(t *testing.T) {
	idx := caseHeavy()
	cs := &graph.ConstraintSet{
		CaseIDs:    []string{"case_7"},
		ArticleIDs: []string{"Constitution_Art_14"},
	}
	res := newRetriever(idx).Retrieve(context.Background(), "equality before law", 4, cs)

	require.Empty(t, res.Error)
	assert.True(t, res.UsedConstraints)
	assert.False(t, res.UsedFallback)
	require.Len(t, res.Chunks, 4)

	// Literal article text leads with the sentinel score despite ranking last.
	assert.Equal(t, "Constitution_Art_14_chunk_0", res.Chunks[0].ID)
	assert.Equal(t, "Constitution_Art_14_chunk_1", res.Chunks[1].ID)
	assert.Equal(t, MaxScore, res.Chunks[0].Score)
	assert.Equal(t, MaxScore, res.Chunks[1].Score)

	// Sections are unrestricted because no section was resolved; only the
	// allowed case passes the case list.
	assert.Equal(t, "case_7_chunk_0", res.Chunks[2].ID)
	assert.Equal(t, "BNS_Sec_103_chunk_0", res.Chunks[3].ID)
	for _, c := range res.Chunks {
		if c.SourceKind == graph.KindCase {
			assert.Equal(t, "case_7", c.SourceID)
		}
	}
	assert.InDelta(t, 0.95, res.TopSimilarity, 1e-9, "top similarity comes from the raw search")
	assert.Equal(t, []int{12}, idx.searches)
}

func TestConstrainedNoDuplicateWithMustInclude(t *testing.T) {
	idx := &memIndex{chunks: []Chunk{
		chunk("BNS_Sec_103_chunk_0", graph.KindSection, "BNS_Sec_103", 0.9),
		chunk("case_1_chunk_0", graph.KindCase, "case_1", 0.8),
	}}
	cs := &graph.ConstraintSet{CaseIDs: []string{"case_1"}, SectionIDs: []string{"BNS_Sec_103"}}
	res := newRetriever(idx).Retrieve(context.Background(), "q", 5, cs)

	assert.Equal(t, []string{"BNS_Sec_103_chunk_0", "case_1_chunk_0"}, ids(res.Chunks))
	assert.Equal(t, MaxScore, res.Chunks[0].Score)
	assert.InDelta(t, 0.8, res.Chunks[1].Score, 1e-9)
}

func TestConstrainedTruncatesMustInclude(t *testing.T) {
	m := &memIndex{}
	for i := 0; i < 6; i++ {
		m.chunks = append(m.chunks, chunk(fmt.Sprintf("BNS_Sec_103_chunk_%d", i), graph.KindSection, "BNS_Sec_103", 0.1))
	}
	cs := &graph.ConstraintSet{SectionIDs: []string{"BNS_Sec_103"}}
	res := newRetriever(m).Retrieve(context.Background(), "q", 3, cs)
	require.Len(t, res.Chunks, 3)
	assert.Equal(t, "BNS_Sec_103_chunk_0", res.Chunks[0].ID)
}

func TestConstrainedFallback(t *testing.T) {
	idx := caseHeavy()
	cs := &graph.ConstraintSet{
		CaseIDs:    []string{"missing_case"},
		SectionIDs: []string{"BNS_Sec_999"},
		ArticleIDs: []string{"Constitution_Art_999"},
	}
	res := newRetriever(idx).Retrieve(context.Background(), "q", 3, cs)

	require.Empty(t, res.Error)
	assert.True(t, res.UsedConstraints)
	assert.True(t, res.UsedFallback)
	assert.Equal(t, []string{"case_0_chunk_0", "case_1_chunk_0", "case_2_chunk_0"}, ids(res.Chunks))
	assert.InDelta(t, 0.95, res.TopSimilarity, 1e-9)
	assert.Equal(t, []int{9, 3}, idx.searches, "one constrained search, one fallback at k")
	assert.Equal(t, "fallback", res.Trace.Policy)
}

func TestIndexUnavailable(t *testing.T) {
	var loads atomic.Int32
	lazy := NewLazy(func(context.Context) (Index, error) {
		if loads.Add(1) == 1 {
			return nil, errors.New("index file missing")
		}
		return caseHeavy(), nil
	}, 0)
	r := New(lazy, DefaultConfig())

	res := r.Retrieve(context.Background(), "q", 4, nil)
	assert.Empty(t, res.Chunks)
	assert.Contains(t, res.Error, "vector store not available")
	assert.Contains(t, res.Error, "index file missing")
	assert.False(t, res.UsedConstraints)

	loaded, err := lazy.Status()
	assert.False(t, loaded)
	assert.Error(t, err)

	// A later request retries the load.
	res = r.Retrieve(context.Background(), "q", 4, nil)
	assert.Empty(t, res.Error)
	assert.Len(t, res.Chunks, 4)
	loaded, err = lazy.Status()
	assert.True(t, loaded)
	assert.NoError(t, err)
}

func TestSearchErrorIsReported(t *testing.T) {
	idx := &memIndex{searchErr: errors.New("embedding model offline")}
	res := newRetriever(idx).Retrieve(context.Background(), "q", 4, &graph.ConstraintSet{CaseIDs: []string{"x"}})
	assert.Empty(t, res.Chunks)
	assert.Contains(t, res.Error, "embedding model offline")
}

func TestLazyLoadsOnce(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	lazy := NewLazy(func(context.Context) (Index, error) {
		loads.Add(1)
		<-release
		return &memIndex{}, nil
	}, 0)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := lazy.Get(context.Background())
			errs <- err
		}()
	}
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), loads.Load())

	_, err := lazy.Get(context.Background())
	require.NoError(t, err)
	before := loads.Load()
	_, _ = lazy.Get(context.Background())
	assert.Equal(t, before, loads.Load(), "a loaded index is reused")
}

func TestLazyGetHonorsCallerDeadline(t *testing.T) {
	release := make(chan struct{})
	lazy := NewLazy(func(ctx context.Context) (Index, error) {
		select {
		case <-release:
			return &memIndex{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := lazy.Get(ctx)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The shared load outlives the caller that started it.
	close(release)
	idx, err := lazy.Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, idx)
}

func TestLazyLoadIsBounded(t *testing.T) {
	var hadDeadline atomic.Bool
	lazy := NewLazy(func(ctx context.Context) (Index, error) {
		_, ok := ctx.Deadline()
		hadDeadline.Store(ok)
		<-ctx.Done()
		return nil, ctx.Err()
	}, 30*time.Millisecond)

	start := time.Now()
	_, err := lazy.Get(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.Contains(t, err.Error(), "deadline exceeded")
	assert.True(t, hadDeadline.Load())

	loaded, lastErr := lazy.Status()
	assert.False(t, loaded)
	assert.Error(t, lastErr)
}

func TestLazyWithoutLoader(t *testing.T) {
	_, err := (&Lazy{}).Get(context.Background())
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestDiversifyQuotaShortfall(t *testing.T) {
	in := []Chunk{
		chunk("c1", graph.KindCase, "C1", 0.9),
		chunk("s1", graph.KindSection, "S1", 0.2),
		chunk("c2", graph.KindCase, "C2", 0.8),
		chunk("c3", "", "C3", 0.7),
	}
	out := diversify(in, 3, 2, 2)
	assert.Equal(t, []string{"s1", "c1", "c2"}, ids(out))

	assert.Nil(t, diversify(in, 0, 2, 2))
	assert.Len(t, diversify(in, 10, 2, 2), 4)
}

func TestDiversifyDropsDuplicateIDs(t *testing.T) {
	in := []Chunk{
		chunk("s1", graph.KindSection, "S1", 0.9),
		chunk("s1", graph.KindSection, "S1", 0.9),
		chunk("a1", graph.KindArticle, "A1", 0.5),
	}
	assert.Equal(t, []string{"s1", "a1"}, ids(diversify(in, 5, 2, 2)))
}

func TestConfigNormalizedClampsMultipliers(t *testing.T) {
	r := New(Ready(&memIndex{}), Config{TopK: 5, ConstrainedMultiplier: 1, DiversityMultiplier: 2})
	cfg := r.Config()
	assert.Equal(t, 3, cfg.ConstrainedMultiplier)
	assert.Equal(t, 4, cfg.DiversityMultiplier)
	assert.Equal(t, 10, cfg.MustIncludeLimit)
	assert.Equal(t, DefaultConfig().Timeout, cfg.Timeout)
}
