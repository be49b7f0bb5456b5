package graph

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jConfig holds connection settings for Neo4jStore.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
}

// Neo4jStore reads the knowledge graph from Neo4j. Nodes are labelled
// Act, Section, Article and Case; provisions link to acts with IN_ACT and
// cases to provisions with CITES.
//
// The driver is created on first use and shared across requests.
type Neo4jStore struct {
	cfg Neo4jConfig

	mu     sync.Mutex
	driver neo4j.DriverWithContext
}

func NewNeo4jStore(cfg Neo4jConfig) *Neo4jStore {
	return &Neo4jStore{cfg: cfg}
}

func (s *Neo4jStore) getDriver() (neo4j.DriverWithContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver != nil {
		return s.driver, nil
	}
	d, err := neo4j.NewDriverWithContext(s.cfg.URI, neo4j.BasicAuth(s.cfg.User, s.cfg.Password, ""))
	if err != nil {
		return nil, Unavailable(fmt.Errorf("creating driver: %w", err))
	}
	s.driver = d
	return d, nil
}

// Close releases the driver. A later call reconnects.
func (s *Neo4jStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	return err
}

func (s *Neo4jStore) Ping(ctx context.Context) error {
	d, err := s.getDriver()
	if err != nil {
		return err
	}
	if err := d.VerifyConnectivity(ctx); err != nil {
		return Unavailable(err)
	}
	return nil
}

func (s *Neo4jStore) run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	d, err := s.getDriver()
	if err != nil {
		return nil, err
	}
	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if s.cfg.Database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.cfg.Database))
	}
	res, err := neo4j.ExecuteQuery(ctx, d, cypher, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, Unavailable(err)
	}
	return res.Records, nil
}

const sectionsByNumberCypher = `
MATCH (p:Section)-[:IN_ACT]->(a:Act)
WHERE toUpper(toString(p.section_number)) IN $nums
  AND ($act_id = '' OR a.act_id = $act_id)
RETURN p.section_id AS id,
       p.section_number AS number,
       a.act_id AS act_id,
       a.act_name AS act_name,
       p.full_text AS full_text`

const articlesByNumberCypher = `
MATCH (p:Article)-[:IN_ACT]->(a:Act)
WHERE toUpper(toString(p.article_number)) IN $nums
  AND ($act_id = '' OR a.act_id = $act_id)
RETURN p.article_id AS id,
       p.article_number AS number,
       a.act_id AS act_id,
       a.act_name AS act_name,
       p.full_text AS full_text`

func (s *Neo4jStore) ProvisionsByNumber(ctx context.Context, kind Kind, numbers []string, instrumentID string) ([]Provision, error) {
	nums := Designators(numbers)
	if len(nums) == 0 {
		return nil, nil
	}
	var cypher string
	switch kind {
	case KindSection:
		cypher = sectionsByNumberCypher
	case KindArticle:
		cypher = articlesByNumberCypher
	default:
		return nil, fmt.Errorf("provisions by number: unsupported kind %q", kind)
	}

	recs, err := s.run(ctx, cypher, map[string]any{"nums": nums, "act_id": instrumentID})
	if err != nil {
		return nil, err
	}
	out := make([]Provision, 0, len(recs))
	for _, rec := range recs {
		p := Provision{
			ID:             recString(rec, "id"),
			Kind:           kind,
			Number:         recString(rec, "number"),
			InstrumentID:   recString(rec, "act_id"),
			InstrumentName: recString(rec, "act_name"),
			FullText:       recString(rec, "full_text"),
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Neo4jStore) CasesCiting(ctx context.Context, targetIDs []string) ([]Case, error) {
	ids := UniqueNonEmpty(targetIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	const cypher = `
MATCH (c:Case)-[:CITES]->(t)
WHERE coalesce(t.section_id, t.article_id) IN $ids
RETURN DISTINCT c.case_id AS case_id, c.year AS year`

	recs, err := s.run(ctx, cypher, map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}
	out := make([]Case, 0, len(recs))
	for _, rec := range recs {
		c := Case{ID: recString(rec, "case_id"), Year: recYear(rec, "year")}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Neo4jStore) InstrumentsByID(ctx context.Context, ids []string) ([]Instrument, error) {
	ids = UniqueNonEmpty(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	const cypher = `
MATCH (a:Act)
WHERE a.act_id IN $ids
RETURN a.act_id AS act_id, a.act_name AS act_name, a.act_type AS act_type`

	recs, err := s.run(ctx, cypher, map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}
	out := make([]Instrument, 0, len(recs))
	for _, rec := range recs {
		inst := Instrument{
			ID:       recString(rec, "act_id"),
			Name:     recString(rec, "act_name"),
			Category: recString(rec, "act_type"),
		}
		if err := inst.Validate(); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func (s *Neo4jStore) CaseDetails(ctx context.Context, ids []string, snippetLen int) ([]Case, error) {
	ids = UniqueNonEmpty(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	const cypher = `
MATCH (c:Case)
WHERE c.case_id IN $ids
RETURN c.case_id AS case_id, c.year AS year, c.judgment_text AS judgment_text`

	recs, err := s.run(ctx, cypher, map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}
	out := make([]Case, 0, len(recs))
	for _, rec := range recs {
		c := Case{
			ID:   recString(rec, "case_id"),
			Year: recYear(rec, "year"),
			Text: Snippet(recString(rec, "judgment_text"), snippetLen),
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func recString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}

func recYear(rec *neo4j.Record, key string) int {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return UnknownYear
	}
	switch t := v.(type) {
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return UnknownYear
}
