// Package legalrag answers legal questions over a statutory knowledge graph
// and a chunk index of provisions and judgments. Explicit Article and
// Section references in a question are resolved against the graph and
// narrow the vector search; everything degrades to unconstrained retrieval
// when the graph cannot help.
package legalrag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/chunker"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/evidence"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/llm"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/parser"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/pipeline"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/reasoning"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/retrieval"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/store"
)

// Engine is the main entry point for legal question answering.
type Engine interface {
	// Ask runs a question through reference parsing, graph resolution,
	// constrained retrieval and generation. Concern failures are reported
	// on the Answer; only a blank query or a closed engine return an error.
	Ask(ctx context.Context, query string, opts ...AskOption) (*Answer, error)

	// Seed loads a fixture into the SQLite graph tables and indexes its
	// texts.
	Seed(ctx context.Context, f *Fixture) (*SeedReport, error)

	// Status checks the graph store and the vector index.
	Status(ctx context.Context) Status

	// Store returns the underlying SQLite store for diagnostic access.
	Store() *store.Store

	// Close releases every backend connection.
	Close() error
}

// Answer is the final request state. Concern failures are strings on the
// embedded state; Err converts them to sentinel errors.
type Answer struct {
	pipeline.State
}

// Err joins ErrGraphUnavailable, ErrVectorUnavailable and
// ErrGenerationUnavailable for each concern that failed, or returns nil.
func (a *Answer) Err() error {
	var errs []error
	if a.GraphError != "" {
		errs = append(errs, fmt.Errorf("%w: %s", ErrGraphUnavailable, a.GraphError))
	}
	if a.VectorError != "" {
		errs = append(errs, fmt.Errorf("%w: %s", ErrVectorUnavailable, a.VectorError))
	}
	if a.GenerationError != "" {
		errs = append(errs, fmt.Errorf("%w: %s", ErrGenerationUnavailable, a.GenerationError))
	}
	return errors.Join(errs...)
}

// AskOption configures a single Ask call.
type AskOption func(*askOptions)

type askOptions struct {
	topK     int
	rephrase bool
}

// WithTopK sets the number of chunks to retrieve.
func WithTopK(n int) AskOption {
	return func(o *askOptions) { o.topK = n }
}

// WithoutRephrase searches with the raw question.
func WithoutRephrase() AskOption {
	return func(o *askOptions) { o.rephrase = false }
}

// WithRephrase rewrites the question into a formal legal query before
// retrieval, overriding Config.Rephrase.
func WithRephrase() AskOption {
	return func(o *askOptions) { o.rephrase = true }
}

// closer is implemented by graph stores that hold connections.
type closer interface {
	Close(ctx context.Context) error
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg       Config
	store     *store.Store
	graph     graph.Store
	embedLLM  llm.Provider
	index     *retrieval.Lazy
	chunkr    *chunker.Chunker
	pipeline  *pipeline.Pipeline
	generator *reasoning.Generator
	closed    atomic.Bool
}

// New creates an engine. Backends are not contacted: the graph is reached
// per request and the vector index loads on first use.
func New(cfg Config) (Engine, error) {
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s, err := store.New(cfg.resolveDBPath(), cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	chatLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Chat.Provider,
		Model:    cfg.Chat.Model,
		BaseURL:  cfg.Chat.BaseURL,
		APIKey:   cfg.Chat.APIKey,
		Timeout:  cfg.Timeouts.Generation,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: chat provider: %v", ErrInvalidConfig, err)
	}

	embedLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
		Timeout:  cfg.Timeouts.Vector,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: embedding provider: %v", ErrInvalidConfig, err)
	}

	var g graph.Store = s
	backend := "graph"
	if cfg.GraphBackend == "neo4j" {
		g = graph.NewNeo4jStore(graph.Neo4jConfig{
			URI:      cfg.Neo4j.URI,
			User:     cfg.Neo4j.User,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
		backend = "neo4j"
	}

	var loader retrieval.Loader
	switch cfg.VectorBackend {
	case "weaviate":
		loader = retrieval.OpenWeaviate(cfg.weaviate(), embedLLM)
	default:
		loader = retrieval.OpenSQLite(s, embedLLM)
	}
	index := retrieval.NewLazy(loader, cfg.Timeouts.Vector)

	generator := reasoning.New(chatLLM, reasoning.Config{Model: cfg.Chat.Model})
	p, err := pipeline.New(pipeline.Deps{
		Registry: parser.DefaultRegistry(),
		Graph:    g,
		Resolver: graph.NewResolver(g, cfg.Timeouts.Graph),
		Retriever: retrieval.New(index, retrieval.Config{
			TopK:                  cfg.Retrieval.TopK,
			ConstrainedMultiplier: cfg.Retrieval.ConstrainedMultiplier,
			DiversityMultiplier:   cfg.Retrieval.DiversityMultiplier,
			MinSections:           cfg.Retrieval.MinSections,
			MinArticles:           cfg.Retrieval.MinArticles,
			MustIncludeLimit:      cfg.Retrieval.MustIncludeLimit,
			Timeout:               cfg.Timeouts.Vector,
		}),
		Assembler: evidence.New(evidence.Config{
			MaxSnippets:     cfg.Evidence.MaxSnippets,
			MaxSnippetChars: cfg.Evidence.MaxSnippetChars,
			MaxGraphChars:   cfg.Evidence.MaxGraphChars,
		}),
		Generator:    generator,
		GraphBackend: backend,
		GraphTimeout: cfg.Timeouts.Graph,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	slog.Info("legalrag: engine ready",
		"db", s.Path(),
		"graph_backend", cfg.GraphBackend,
		"vector_backend", cfg.VectorBackend,
		"model", cfg.Chat.Model)

	return &engine{
		cfg:       cfg,
		store:     s,
		graph:     g,
		embedLLM:  embedLLM,
		index:     index,
		chunkr:    chunker.New(chunker.Config{MaxTokens: cfg.MaxChunkTokens, Overlap: cfg.ChunkOverlap}),
		pipeline:  p,
		generator: generator,
	}, nil
}

func (c *Config) weaviate() retrieval.WeaviateConfig {
	return retrieval.WeaviateConfig{
		Host:   c.Weaviate.Host,
		Scheme: c.Weaviate.Scheme,
		Class:  c.Weaviate.Class,
	}
}

// Ask answers one question.
func (e *engine) Ask(ctx context.Context, query string, opts ...AskOption) (*Answer, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	options := &askOptions{
		topK:     e.cfg.Retrieval.TopK,
		rephrase: e.cfg.Rephrase,
	}
	for _, o := range opts {
		o(options)
	}

	st := e.pipeline.Run(ctx, query, pipeline.Options{
		TopK:     options.topK,
		Rephrase: options.rephrase,
	})

	entry := store.QueryLog{
		RequestID:       st.RequestID,
		Query:           st.UserQuery,
		Answer:          st.Answer,
		UsedConstraints: st.UsedConstraints,
		UsedFallback:    st.UsedFallback,
		TopSimilarity:   st.TopSimilarity,
		GraphError:      st.GraphError,
		VectorError:     st.VectorError,
		ModelUsed:       e.generator.Model(),
		Elapsed:         time.Duration(st.ElapsedMs) * time.Millisecond,
	}
	if st.LegalQuery != st.UserQuery {
		entry.LegalQuery = st.LegalQuery
	}
	// The caller's context may already be done; the log write is bounded
	// on its own.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.store.LogQuery(logCtx, entry); err != nil {
		slog.Warn("legalrag: query log write failed", "request_id", st.RequestID, "error", err)
	}

	return &Answer{State: *st}, nil
}

// Store returns the SQLite store.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close shuts the engine down. Later calls return ErrClosed.
func (e *engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	var errs []error
	if c, ok := e.graph.(closer); ok {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Timeouts.Graph)
		errs = append(errs, c.Close(ctx))
		cancel()
	}
	errs = append(errs, e.store.Close())
	return errors.Join(errs...)
}
