package legalrag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/retrieval"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/store"
)

// Fixture is a seed file: graph records plus the texts to index.
type Fixture struct {
	Instruments []graph.Instrument `yaml:"instruments"`
	Provisions  []graph.Provision  `yaml:"provisions"`
	Cases       []graph.Case       `yaml:"cases"`
	Citations   []graph.Citation   `yaml:"citations"`
}

// LoadFixture reads a YAML fixture.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes and validates a YAML fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return &f, f.Validate()
}

// Validate checks every record. Cases without a year get graph.UnknownYear.
func (f *Fixture) Validate() error {
	var errs []error
	for _, r := range f.Instruments {
		errs = append(errs, r.Validate())
	}
	for _, r := range f.Provisions {
		errs = append(errs, r.Validate())
	}
	for i, r := range f.Cases {
		if r.Year == 0 {
			f.Cases[i].Year = graph.UnknownYear
		}
		errs = append(errs, r.Validate())
	}
	for _, r := range f.Citations {
		errs = append(errs, r.Validate())
	}
	return errors.Join(errs...)
}

// SeedReport summarises a Seed call.
type SeedReport struct {
	Instruments int           `json:"instruments"`
	Provisions  int           `json:"provisions"`
	Cases       int           `json:"cases"`
	Citations   int           `json:"citations"`
	Chunks      int           `json:"chunks"`
	Embedded    int           `json:"embedded"`
	Failed      int           `json:"failed"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Seed writes the fixture's records to the SQLite graph tables, chunks
// every provision and case text, embeds the chunks and stores the vectors
// in the configured index. Chunks previously stored for the fixture's
// provisions and cases are removed first, so re-seeding replaces them.
func (e *engine) Seed(ctx context.Context, f *Fixture) (*SeedReport, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	rep := &SeedReport{}

	for _, r := range f.Instruments {
		if err := e.store.UpsertInstrument(ctx, r); err != nil {
			return rep, fmt.Errorf("seeding instrument %s: %w", r.ID, err)
		}
		rep.Instruments++
	}
	for _, r := range f.Provisions {
		if err := e.store.UpsertProvision(ctx, r); err != nil {
			return rep, fmt.Errorf("seeding provision %s: %w", r.ID, err)
		}
		rep.Provisions++
	}
	for _, r := range f.Cases {
		if err := e.store.UpsertCase(ctx, r); err != nil {
			return rep, fmt.Errorf("seeding case %s: %w", r.ID, err)
		}
		rep.Cases++
	}
	for _, r := range f.Citations {
		if err := e.store.InsertCitation(ctx, r); err != nil {
			return rep, fmt.Errorf("seeding citation %s -> %s: %w", r.CaseID, r.TargetID, err)
		}
		rep.Citations++
	}
	slog.Info("seed: graph records written",
		"instruments", rep.Instruments, "provisions", rep.Provisions,
		"cases", rep.Cases, "citations", rep.Citations)

	var remote *retrieval.WeaviateIndex
	if e.cfg.VectorBackend == "weaviate" {
		var err error
		if remote, err = retrieval.NewWeaviateIndex(e.cfg.weaviate(), e.embedLLM); err != nil {
			return rep, fmt.Errorf("%w: %v", ErrVectorUnavailable, err)
		}
	}
	if err := e.clearSources(ctx, remote, f.sourceIDs()); err != nil {
		return rep, err
	}

	chunks := e.chunkFixture(f)
	rep.Chunks = len(chunks)
	if len(chunks) == 0 {
		rep.Elapsed = time.Since(start)
		return rep, nil
	}
	rowIDs, err := e.store.InsertChunks(ctx, chunks)
	if err != nil {
		return rep, fmt.Errorf("storing chunks: %w", err)
	}

	sink := e.vectorSink(remote, chunks, rowIDs)
	embedStart := time.Now()
	rep.Embedded, rep.Failed = e.embedChunks(ctx, chunks, sink)
	slog.Info("seed: embeddings complete",
		"chunks", len(chunks), "failed", rep.Failed,
		"elapsed", time.Since(embedStart).Round(time.Millisecond))

	rep.Elapsed = time.Since(start)
	if rep.Embedded == 0 {
		return rep, fmt.Errorf("%w: all %d chunks failed embedding", ErrVectorUnavailable, len(chunks))
	}
	return rep, nil
}

func (e *engine) chunkFixture(f *Fixture) []store.Chunk {
	var chunks []store.Chunk
	for _, p := range f.Provisions {
		chunks = append(chunks, e.chunkr.Chunk(string(p.Kind), p.ID, p.FullText)...)
	}
	for _, c := range f.Cases {
		chunks = append(chunks, e.chunkr.Chunk(string(graph.KindCase), c.ID, c.Text)...)
	}
	return chunks
}

// sourceIDs lists every provision and case the fixture chunks.
func (f *Fixture) sourceIDs() []string {
	ids := make([]string, 0, len(f.Provisions)+len(f.Cases))
	for _, p := range f.Provisions {
		ids = append(ids, p.ID)
	}
	for _, c := range f.Cases {
		ids = append(ids, c.ID)
	}
	return ids
}

// clearSources drops the stored chunks of ids, so a shortened text leaves
// no stale tail chunks behind. remote may be nil.
func (e *engine) clearSources(ctx context.Context, remote *retrieval.WeaviateIndex, ids []string) error {
	removed, err := e.store.DeleteChunksBySource(ctx, ids)
	if err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	if remote != nil {
		if _, err := remote.DeleteBySource(ctx, ids); err != nil {
			return fmt.Errorf("%w: %v", ErrVectorUnavailable, err)
		}
	}
	slog.Debug("seed: previous chunks cleared", "sources", len(ids), "removed", removed)
	return nil
}

// vectorSink stores the vector for chunks[i]. The SQLite vec table is
// always written; Weaviate additionally when remote is set.
type vectorSink func(ctx context.Context, i int, vec []float32) error

func (e *engine) vectorSink(remote *retrieval.WeaviateIndex, chunks []store.Chunk, rowIDs []int64) vectorSink {
	local := func(ctx context.Context, i int, vec []float32) error {
		return e.store.InsertEmbedding(ctx, rowIDs[i], vec)
	}
	if remote == nil {
		return local
	}
	return func(ctx context.Context, i int, vec []float32) error {
		if err := local(ctx, i, vec); err != nil {
			return err
		}
		c := chunks[i]
		return remote.Put(ctx, retrieval.Chunk{
			ID:         c.ChunkID,
			SourceKind: graph.Kind(c.SourceKind),
			SourceID:   c.SourceID,
			Text:       c.Text,
		}, c.Position, vec)
	}
}

const (
	embedBatchSize = 32
	maxEmbedChars  = 24000
)

// embedChunks embeds chunks in batches. A failed batch falls back to one
// request per text so a single oversized text does not lose the batch.
func (e *engine) embedChunks(ctx context.Context, chunks []store.Chunk, sink vectorSink) (embedded, failed int) {
	keep := func(i int, vec []float32) {
		if len(vec) == 0 {
			failed++
			return
		}
		if err := sink(ctx, i, vec); err != nil {
			slog.Warn("seed: storing embedding failed", "chunk_id", chunks[i].ChunkID, "error", err)
			failed++
			return
		}
		embedded++
	}

	for i := 0; i < len(chunks); i += embedBatchSize {
		end := min(i+embedBatchSize, len(chunks))
		texts := make([]string, end-i)
		for j := i; j < end; j++ {
			texts[j-i] = truncateForEmbed(chunks[j].Text)
		}

		vecs, err := e.embedLLM.Embed(ctx, texts)
		if err == nil && len(vecs) != len(texts) {
			err = fmt.Errorf("got %d embeddings for %d texts", len(vecs), len(texts))
		}
		if err != nil {
			if ctx.Err() != nil {
				return embedded, failed + len(chunks) - i
			}
			slog.Warn("seed: embedding batch failed, falling back to individual",
				"batch_start", i, "batch_end", end, "error", err)
			for j, text := range texts {
				single, serr := e.embedLLM.Embed(ctx, []string{text})
				if serr != nil || len(single) == 0 {
					slog.Warn("seed: embedding single text failed", "chunk_id", chunks[i+j].ChunkID, "error", serr)
					failed++
					continue
				}
				keep(i+j, single[0])
			}
			continue
		}
		for j, vec := range vecs {
			keep(i+j, vec)
		}
	}
	return embedded, failed
}

// truncateForEmbed caps text at maxEmbedChars, cutting on a rune boundary.
func truncateForEmbed(s string) string {
	if len(s) <= maxEmbedChars {
		return s
	}
	cut := maxEmbedChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
