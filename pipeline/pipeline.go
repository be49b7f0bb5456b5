// Package pipeline runs a legal query through parsing, graph resolution,
// query rewriting, retrieval and generation. Each request gets a fresh
// State; nothing is carried between requests.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/evidence"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/metrics"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/parser"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/reasoning"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/retrieval"
)

// Stage names, in execution order.
const (
	StageParse    = "parse"
	StageResolve  = "resolve"
	StageRephrase = "rephrase"
	StageRetrieve = "retrieve"
	StageGenerate = "generate"
)

// Deps are the components a pipeline runs. Graph and Resolver may be nil,
// in which case every request runs unconstrained.
type Deps struct {
	Registry  *parser.Registry
	Graph     graph.Store
	Resolver  *graph.Resolver
	Retriever *retrieval.Retriever
	Assembler *evidence.Assembler
	Generator *reasoning.Generator

	// GraphBackend names the graph store in error text, e.g. "neo4j".
	GraphBackend string

	// GraphTimeout bounds the case-details lookup made while citing.
	GraphTimeout time.Duration
}

const defaultGraphTimeout = 15 * time.Second

// Options configure one request.
type Options struct {
	TopK     int  // 0 uses the retriever default
	Rephrase bool // rewrite the query before retrieval
}

type stage struct {
	name string
	run  func(ctx context.Context, st *State, opts Options) error
}

// Pipeline is safe for concurrent use; it holds no per-request state.
type Pipeline struct {
	deps   Deps
	stages []stage
}

// New validates deps and builds the stage list.
func New(deps Deps) (*Pipeline, error) {
	if deps.Retriever == nil || deps.Generator == nil {
		return nil, errors.New("pipeline: retriever and generator are required")
	}
	if deps.Registry == nil {
		deps.Registry = parser.DefaultRegistry()
	}
	if deps.Assembler == nil {
		deps.Assembler = evidence.New(evidence.DefaultConfig())
	}
	if deps.GraphBackend == "" {
		deps.GraphBackend = "graph"
	}
	if deps.GraphTimeout <= 0 {
		deps.GraphTimeout = defaultGraphTimeout
	}
	p := &Pipeline{deps: deps}
	p.stages = []stage{
		{StageParse, p.parse},
		{StageResolve, p.resolve},
		{StageRephrase, p.rephrase},
		{StageRetrieve, p.retrieve},
		{StageGenerate, p.generate},
	}
	return p, nil
}

// Run executes every stage in order and returns the final state. It never
// fails; per-concern errors are recorded on the state.
func (p *Pipeline) Run(ctx context.Context, query string, opts Options) *State {
	st := &State{
		RequestID: uuid.NewString(),
		UserQuery: strings.TrimSpace(query),
	}
	ctx, span := otel.Tracer("legalrag/pipeline").Start(ctx, "pipeline.Run")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", st.RequestID))

	log := slog.With("request_id", st.RequestID)
	start := time.Now()
	for _, s := range p.stages {
		stageStart := time.Now()
		sctx, sspan := otel.Tracer("legalrag/pipeline").Start(ctx, "pipeline."+s.name)
		err := s.run(sctx, st, opts)
		sspan.End()
		metrics.RecordStage(s.name, err, time.Since(stageStart))
		if err != nil {
			log.Warn("pipeline: stage degraded", "stage", s.name, "error", err)
		}
	}
	st.ElapsedMs = time.Since(start).Milliseconds()
	metrics.RecordAnswer(st.Outcome)

	span.SetAttributes(
		attribute.String("outcome", st.Outcome),
		attribute.Bool("used_fallback", st.UsedFallback),
	)
	log.Info("pipeline: request complete",
		"outcome", st.Outcome,
		"chunks", len(st.Chunks),
		"fallback", st.UsedFallback,
		"graph_error", st.GraphError != "",
		"elapsed", time.Since(start).Round(time.Millisecond))
	return st
}

func (p *Pipeline) parse(_ context.Context, st *State, _ Options) error {
	st.Parsed = p.deps.Registry.Parse(st.UserQuery)
	return nil
}

func (p *Pipeline) resolve(ctx context.Context, st *State, _ Options) error {
	if p.deps.Resolver == nil {
		return nil
	}
	res, err := p.deps.Resolver.Resolve(ctx, st.Parsed)
	if err != nil {
		st.GraphError = fmt.Sprintf("%s_unavailable: %v", p.deps.GraphBackend, err)
		metrics.RecordDegraded(metrics.ConcernGraph)
		return err
	}
	st.Resolution = res
	st.Constraints = res.Constraints
	st.ApplicableActs = res.Instruments
	return nil
}

func (p *Pipeline) rephrase(ctx context.Context, st *State, opts Options) error {
	st.LegalQuery = st.UserQuery
	if !opts.Rephrase || st.UserQuery == "" {
		return nil
	}
	legal, step, err := p.deps.Generator.Rephrase(ctx, st.UserQuery)
	st.LegalQuery = legal
	st.Steps = append(st.Steps, step)
	if err != nil {
		st.RephraseError = err.Error()
		metrics.RecordDegraded(metrics.ConcernRephrase)
		return err
	}
	return nil
}

func (p *Pipeline) retrieve(ctx context.Context, st *State, opts Options) error {
	query := st.LegalQuery
	if query == "" {
		query = st.UserQuery
	}
	res := p.deps.Retriever.Retrieve(ctx, query, opts.TopK, st.Constraints)
	st.TopSimilarity = res.TopSimilarity
	st.UsedConstraints = res.UsedConstraints
	st.UsedFallback = res.UsedFallback
	st.Retrieval = res.Trace
	if res.Error != "" {
		st.VectorError = res.Error
		st.Grouped = evidence.GroupBySource(nil)
		metrics.RecordDegraded(metrics.ConcernVector)
		return errors.New(res.Error)
	}
	st.Chunks = res.Chunks
	st.Grouped = evidence.GroupBySource(res.Chunks)
	st.Groups = st.Grouped.All()
	return nil
}

func (p *Pipeline) generate(ctx context.Context, st *State, _ Options) error {
	store := p.deps.Graph
	if st.GraphError != "" {
		store = nil
	}
	cctx, cancel := context.WithTimeout(ctx, p.deps.GraphTimeout)
	st.References = evidence.Cite(cctx, store, st.Resolution, st.Grouped)
	cancel()

	if st.VectorError != "" {
		st.Answer = reasoning.VectorUnavailableAnswer(st.VectorError)
		st.Outcome = OutcomeVectorUnavailable
		return nil
	}

	contextBlock := p.deps.Assembler.Assemble(st.Resolution, st.Grouped)
	ans, err := p.deps.Generator.Generate(ctx, st.UserQuery, contextBlock, st.ReferenceIDs())
	if err != nil {
		st.GenerationError = err.Error()
		st.Answer = reasoning.GenerationUnavailableAnswer(err.Error(), p.deps.Generator.Model())
		st.Outcome = OutcomeGenerationUnavailable
		metrics.RecordDegraded(metrics.ConcernGeneration)
		return err
	}
	st.Generation = ans
	st.Answer = ans.Text
	st.NoApplicableLaws = ans.NoApplicableLaws
	st.NoRelevantCases = ans.NoRelevantCases
	st.Steps = append(st.Steps, ans.Steps...)
	st.Outcome = OutcomeAnswered
	return nil
}
