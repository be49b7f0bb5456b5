package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/metrics"
)

// Config holds retriever configuration.
type Config struct {
	TopK                  int
	ConstrainedMultiplier int // over-retrieval factor when constraints apply, at least 3
	DiversityMultiplier   int // over-retrieval factor for diversification, at least 4
	MinSections           int
	MinArticles           int
	MustIncludeLimit      int
	Timeout               time.Duration
}

// DefaultConfig returns the retriever defaults.
func DefaultConfig() Config {
	return Config{
		TopK:                  8,
		ConstrainedMultiplier: 3,
		DiversityMultiplier:   4,
		MinSections:           2,
		MinArticles:           2,
		MustIncludeLimit:      10,
		Timeout:               30 * time.Second,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	c.ConstrainedMultiplier = max(c.ConstrainedMultiplier, 3)
	c.DiversityMultiplier = max(c.DiversityMultiplier, 4)
	c.MinSections = max(c.MinSections, 0)
	c.MinArticles = max(c.MinArticles, 0)
	if c.MustIncludeLimit <= 0 {
		c.MustIncludeLimit = d.MustIncludeLimit
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// Trace records how a retrieval was served.
type Trace struct {
	Policy       string `json:"policy"`
	Requested    int    `json:"requested"`
	OverRetrieve int    `json:"over_retrieve"`
	Candidates   int    `json:"candidates"`
	MustInclude  int    `json:"must_include"`
	Filtered     int    `json:"filtered"`
	ElapsedMs    int64  `json:"elapsed_ms"`
}

// Result is the outcome of one retrieval. Failures are reported in Error,
// never as a Go error, so the caller can still answer.
type Result struct {
	Chunks          []Chunk `json:"chunks"`
	UsedConstraints bool    `json:"used_constraints"`
	UsedFallback    bool    `json:"used_fallback_unconstrained"`
	TopSimilarity   float64 `json:"top_similarity"`
	Error           string  `json:"error,omitempty"`
	Trace           *Trace  `json:"trace,omitempty"`
}

// Retriever applies the constrained, unconstrained and fallback policies
// over a lazily loaded Index.
type Retriever struct {
	index *Lazy
	cfg   Config
}

// New creates a retriever.
func New(index *Lazy, cfg Config) *Retriever {
	return &Retriever{index: index, cfg: cfg.normalized()}
}

// Config returns the effective configuration.
func (r *Retriever) Config() Config { return r.cfg }

// Retrieve returns up to k chunks for query. k <= 0 uses the configured
// TopK. A non-empty constraint set switches to the constrained policy.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, cs *graph.ConstraintSet) Result {
	if k <= 0 {
		k = r.cfg.TopK
	}
	ctx, span := otel.Tracer("legalrag/retrieval").Start(ctx, "retrieval.Retrieve")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	trace := &Trace{Requested: k}

	res, err := r.retrieve(ctx, query, k, cs, trace)
	trace.ElapsedMs = time.Since(start).Milliseconds()
	if err != nil {
		trace.Policy = metrics.PolicyError
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval failed")
		metrics.RecordRetrieval(metrics.PolicyError, 0)
		slog.Warn("retrieval: vector store not available", "error", err)
		return Result{
			Error: fmt.Sprintf("vector store not available: %v", err),
			Trace: trace,
		}
	}
	res.Trace = trace

	span.SetAttributes(
		attribute.String("policy", trace.Policy),
		attribute.Int("chunks", len(res.Chunks)),
		attribute.Float64("top_similarity", res.TopSimilarity),
	)
	metrics.RecordRetrieval(trace.Policy, res.TopSimilarity)
	slog.Debug("retrieval: complete",
		"policy", trace.Policy, "chunks", len(res.Chunks),
		"must_include", trace.MustInclude, "filtered", trace.Filtered,
		"top_similarity", res.TopSimilarity, "elapsed_ms", trace.ElapsedMs)
	return res
}

func (r *Retriever) retrieve(ctx context.Context, query string, k int, cs *graph.ConstraintSet, trace *Trace) (Result, error) {
	idx, err := r.index.Get(ctx)
	if err != nil {
		return Result{}, err
	}
	if cs.IsEmpty() {
		trace.Policy = metrics.PolicyUnconstrained
		return r.unconstrained(ctx, idx, query, k, trace)
	}
	return r.constrained(ctx, idx, query, k, cs, trace)
}

func (r *Retriever) unconstrained(ctx context.Context, idx Index, query string, k int, trace *Trace) (Result, error) {
	kOver := k * r.cfg.DiversityMultiplier
	if size, err := idx.Size(ctx); err != nil {
		slog.Debug("retrieval: index size unknown", "error", err)
	} else {
		kOver = min(kOver, size)
	}
	kOver = max(kOver, k)
	trace.OverRetrieve = kOver

	base, err := idx.Search(ctx, query, kOver)
	if err != nil {
		return Result{}, fmt.Errorf("search: %w", err)
	}
	trace.Candidates = len(base)

	return Result{
		Chunks:        diversify(base, k, r.cfg.MinSections, r.cfg.MinArticles),
		TopSimilarity: maxScore(base),
	}, nil
}

func (r *Retriever) constrained(ctx context.Context, idx Index, query string, k int, cs *graph.ConstraintSet, trace *Trace) (Result, error) {
	res := Result{UsedConstraints: true}
	seen := make(map[string]bool)

	var must []Chunk
	if ids := cs.ProvisionIDs(); len(ids) > 0 {
		got, err := idx.ChunksBySource(ctx, ids, r.cfg.MustIncludeLimit)
		if err != nil {
			return Result{}, fmt.Errorf("must-include chunks: %w", err)
		}
		for i := range got {
			got[i].Score = MaxScore
		}
		must = dedupe(got, seen)
	}
	trace.MustInclude = len(must)

	kBase := max(k*r.cfg.ConstrainedMultiplier, k)
	trace.OverRetrieve = kBase
	base, err := idx.Search(ctx, query, kBase)
	if err != nil {
		return Result{}, fmt.Errorf("search: %w", err)
	}
	trace.Candidates = len(base)
	res.TopSimilarity = maxScore(base)

	allow := cs.Filter()
	var filtered []Chunk
	for _, c := range base {
		if allow(c.SourceKind, c.SourceID) && !seen[c.ID] {
			filtered = append(filtered, c)
		}
	}
	trace.Filtered = len(filtered)

	if len(must) > 0 || len(filtered) > 0 {
		trace.Policy = metrics.PolicyConstrained
		byScore(filtered)
		filtered = dedupe(filtered, seen)
		room := max(0, k-len(must))
		if len(filtered) > room {
			filtered = filtered[:room]
		}
		res.Chunks = truncate(append(must, filtered...), k)
		return res, nil
	}

	trace.Policy = metrics.PolicyFallback
	fallback, err := idx.Search(ctx, query, k)
	if err != nil {
		return Result{}, fmt.Errorf("fallback search: %w", err)
	}
	slog.Info("retrieval: constraints matched nothing, using unconstrained fallback",
		"constraint_cases", len(cs.CaseIDs), "constraint_sections", len(cs.SectionIDs),
		"constraint_articles", len(cs.ArticleIDs))
	res.UsedFallback = true
	res.TopSimilarity = max(res.TopSimilarity, maxScore(fallback))
	res.Chunks = truncate(append(must, dedupe(fallback, seen)...), k)
	return res, nil
}

func truncate(chunks []Chunk, k int) []Chunk {
	if len(chunks) > k {
		return chunks[:k]
	}
	return chunks
}
