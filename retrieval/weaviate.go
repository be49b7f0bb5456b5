package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"
)

// chunkNamespace derives stable Weaviate object ids from chunk ids, so
// re-seeding overwrites instead of duplicating.
var chunkNamespace = uuid.MustParse("6f1c8a52-3d5e-4b7a-9c1f-2e8d4a6b0c37")

// WeaviateConfig locates the chunk class.
type WeaviateConfig struct {
	Host   string
	Scheme string
	Class  string
}

// WeaviateIndex searches chunks stored in a Weaviate class. Vectors are
// supplied by the caller; the class needs no vectorizer module.
type WeaviateIndex struct {
	client   *weaviate.Client
	class    string
	embedder Embedder
}

var _ Index = (*WeaviateIndex)(nil)

// NewWeaviateIndex connects to Weaviate. No request is made.
func NewWeaviateIndex(cfg WeaviateConfig, e Embedder) (*WeaviateIndex, error) {
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if cfg.Class == "" {
		cfg.Class = "LegalChunk"
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: cfg.Host, Scheme: cfg.Scheme})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &WeaviateIndex{client: client, class: cfg.Class, embedder: e}, nil
}

// OpenWeaviate returns a Loader that checks the server is live.
func OpenWeaviate(cfg WeaviateConfig, e Embedder) Loader {
	return func(ctx context.Context) (Index, error) {
		idx, err := NewWeaviateIndex(cfg, e)
		if err != nil {
			return nil, err
		}
		live, err := idx.client.Misc().LiveChecker().Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("weaviate liveness: %w", err)
		}
		if !live {
			return nil, fmt.Errorf("weaviate at %s is not live", cfg.Host)
		}
		return idx, nil
	}
}

func chunkFields() []graphql.Field {
	return []graphql.Field{
		{Name: "chunkId"},
		{Name: "sourceType"},
		{Name: "sourceId"},
		{Name: "position"},
		{Name: "text"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}
}

// Search runs a nearVector query. Score is Weaviate certainty.
func (x *WeaviateIndex) Search(ctx context.Context, query string, k int) ([]Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := embedQuery(ctx, x.embedder, query)
	if err != nil {
		return nil, err
	}
	nearVector := x.client.GraphQL().NearVectorArgBuilder().WithVector(vec)
	result, err := x.client.GraphQL().Get().
		WithClassName(x.class).
		WithFields(chunkFields()...).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search: %w", err)
	}
	hits, err := x.parseChunks(result)
	if err != nil {
		return nil, err
	}
	byScore(hits)
	return hits, nil
}

// ChunksBySource filters the class by source id. Results follow the order
// of ids, then chunk position.
func (x *WeaviateIndex) ChunksBySource(ctx context.Context, ids []string, limit int) ([]Chunk, error) {
	if len(ids) == 0 || limit <= 0 {
		return nil, nil
	}
	result, err := x.client.GraphQL().Get().
		WithClassName(x.class).
		WithFields(chunkFields()...).
		WithWhere(sourceFilter(ids)).
		WithLimit(limit * len(ids)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate source filter: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate query error: %s", result.Errors[0].Message)
	}
	rows := parseObjects(result.Data, x.class)

	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, ok := rank[id]; !ok {
			rank[id] = i
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rank[rows[i].SourceID], rank[rows[j].SourceID]
		if ri != rj {
			return ri < rj
		}
		return rows[i].position < rows[j].position
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	chunks := make([]Chunk, len(rows))
	for i, r := range rows {
		chunks[i] = r.Chunk
		chunks[i].Score = 0
	}
	return chunks, nil
}

// sourceFilter matches objects owned by any of ids.
func sourceFilter(ids []string) *filters.WhereBuilder {
	operands := make([]*filters.WhereBuilder, 0, len(ids))
	for _, id := range ids {
		operands = append(operands, filters.Where().
			WithPath([]string{"sourceId"}).
			WithOperator(filters.Equal).
			WithValueString(id))
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().WithOperator(filters.Or).WithOperands(operands)
}

const deleteBatch = 100

// DeleteBySource removes every object owned by any of ids and returns the
// number deleted.
func (x *WeaviateIndex) DeleteBySource(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	for start := 0; start < len(ids); start += deleteBatch {
		batch := ids[start:min(start+deleteBatch, len(ids))]
		resp, err := x.client.Batch().ObjectsBatchDeleter().
			WithClassName(x.class).
			WithOutput("minimal").
			WithWhere(sourceFilter(batch)).
			Do(ctx)
		if err != nil {
			return deleted, fmt.Errorf("weaviate delete by source: %w", err)
		}
		if resp != nil && resp.Results != nil {
			deleted += int(resp.Results.Successful)
		}
	}
	return deleted, nil
}

// Size returns the object count of the class.
func (x *WeaviateIndex) Size(ctx context.Context) (int, error) {
	result, err := x.client.GraphQL().Aggregate().
		WithClassName(x.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("aggregate query failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("aggregate error: %s", result.Errors[0].Message)
	}
	agg, _ := result.Data["Aggregate"].(map[string]interface{})
	rows, _ := agg[x.class].([]interface{})
	if len(rows) == 0 {
		return 0, nil
	}
	row, _ := rows[0].(map[string]interface{})
	meta, _ := row["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

// Put stores a chunk with its vector under an id derived from the chunk id,
// replacing any previous object for that chunk.
func (x *WeaviateIndex) Put(ctx context.Context, c Chunk, position int, vec []float32) error {
	id := uuid.NewSHA1(chunkNamespace, []byte(c.ID)).String()
	exists, err := x.client.Data().Checker().WithClassName(x.class).WithID(id).Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate check %s: %w", c.ID, err)
	}
	if exists {
		if err := x.client.Data().Deleter().WithClassName(x.class).WithID(id).Do(ctx); err != nil {
			return fmt.Errorf("weaviate replace %s: %w", c.ID, err)
		}
	}
	_, err = x.client.Data().Creator().
		WithClassName(x.class).
		WithID(id).
		WithProperties(map[string]interface{}{
			"chunkId":    c.ID,
			"sourceType": string(c.SourceKind),
			"sourceId":   c.SourceID,
			"position":   position,
			"text":       c.Text,
		}).
		WithVector(vec).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate put %s: %w", c.ID, err)
	}
	return nil
}

type positioned struct {
	Chunk
	position int
}

func (x *WeaviateIndex) parseChunks(result *models.GraphQLResponse) ([]Chunk, error) {
	if result == nil {
		return nil, nil
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate query error: %s", result.Errors[0].Message)
	}
	rows := parseObjects(result.Data, x.class)
	out := make([]Chunk, len(rows))
	for i, r := range rows {
		out[i] = r.Chunk
	}
	return out, nil
}

// parseObjects decodes Get.<class> into chunks. Malformed objects are
// skipped.
func parseObjects(data map[string]models.JSONObject, class string) []positioned {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := get[class].([]interface{})
	if !ok {
		return nil
	}
	out := make([]positioned, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		p := positioned{Chunk: Chunk{
			ID:         getString(m, "chunkId"),
			SourceKind: graph.Kind(getString(m, "sourceType")),
			SourceID:   getString(m, "sourceId"),
			Text:       getString(m, "text"),
		}}
		if f, ok := m["position"].(float64); ok {
			p.position = int(f)
		}
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				p.Score = certainty
			}
		}
		if p.ID == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func getString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
