package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/parser"
)

const defaultResolveTimeout = 15 * time.Second

// Resolution is everything the resolver learned about a query's explicit
// references.
type Resolution struct {
	// Constraints is nil when nothing was resolved.
	Constraints *ConstraintSet `json:"constraints,omitempty"`

	Sections    []Provision  `json:"sections"`
	Articles    []Provision  `json:"articles"`
	Cases       []Case       `json:"cases"`
	Instruments []Instrument `json:"applicable_acts"`
}

// Resolver turns parsed references into a ConstraintSet.
type Resolver struct {
	store   Store
	timeout time.Duration
}

// NewResolver returns a resolver bounding each resolution by timeout.
func NewResolver(s Store, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	return &Resolver{store: s, timeout: timeout}
}

// Resolve looks up the referenced provisions, the cases citing them and
// their instruments. Any store failure fails the whole resolution with an
// error wrapping ErrUnavailable; no partial set is returned.
func (r *Resolver) Resolve(ctx context.Context, pq parser.ParsedQuery) (*Resolution, error) {
	if !pq.HasExplicitRefs() {
		return &Resolution{}, nil
	}

	ctx, span := otel.Tracer("legalrag/graph").Start(ctx, "graph.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.Int("sections.requested", len(pq.SectionNumbers)),
		attribute.Int("articles.requested", len(pq.ArticleNumbers)),
	)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	res, err := r.resolve(ctx, pq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "graph resolution failed")
		return nil, fmt.Errorf("resolving references: %w", Unavailable(err))
	}

	span.SetAttributes(
		attribute.Int("sections.resolved", len(res.Sections)),
		attribute.Int("articles.resolved", len(res.Articles)),
		attribute.Int("cases.resolved", len(res.Cases)),
	)
	slog.Debug("graph: references resolved",
		"sections", len(res.Sections), "articles", len(res.Articles),
		"cases", len(res.Cases), "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, pq parser.ParsedQuery) (*Resolution, error) {
	res := &Resolution{}

	var err error
	if nums := lookupNumbers(pq.SectionNumbers); len(nums) > 0 {
		res.Sections, err = r.store.ProvisionsByNumber(ctx, KindSection, nums, pq.SectionInstrument)
		if err != nil {
			return nil, fmt.Errorf("sections: %w", err)
		}
	}
	if nums := lookupNumbers(pq.ArticleNumbers); len(nums) > 0 {
		res.Articles, err = r.store.ProvisionsByNumber(ctx, KindArticle, nums, pq.ArticleInstrument)
		if err != nil {
			return nil, fmt.Errorf("articles: %w", err)
		}
	}

	sectionIDs := provisionIDs(res.Sections)
	articleIDs := provisionIDs(res.Articles)

	targets := append(append([]string(nil), sectionIDs...), articleIDs...)
	if len(targets) > 0 {
		res.Cases, err = r.store.CasesCiting(ctx, targets)
		if err != nil {
			return nil, fmt.Errorf("citing cases: %w", err)
		}
	}

	res.Instruments, err = r.applicableInstruments(ctx, res.Sections, res.Articles)
	if err != nil {
		return nil, fmt.Errorf("instruments: %w", err)
	}

	caseIDs := make([]string, 0, len(res.Cases))
	for _, c := range res.Cases {
		caseIDs = append(caseIDs, c.ID)
	}
	cs := &ConstraintSet{
		CaseIDs:    UniqueNonEmpty(caseIDs),
		SectionIDs: sectionIDs,
		ArticleIDs: articleIDs,
	}
	if !cs.IsEmpty() {
		res.Constraints = cs
	}
	return res, nil
}

// applicableInstruments lists the instruments owning the resolved sections
// then articles, in first-seen order, enriched from the store.
func (r *Resolver) applicableInstruments(ctx context.Context, sections, articles []Provision) ([]Instrument, error) {
	var ids []string
	names := make(map[string]string)
	for _, p := range append(append([]Provision(nil), sections...), articles...) {
		if p.InstrumentID == "" {
			continue
		}
		ids = append(ids, p.InstrumentID)
		if _, ok := names[p.InstrumentID]; !ok && p.InstrumentName != "" {
			names[p.InstrumentID] = p.InstrumentName
		}
	}
	ids = UniqueNonEmpty(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	found, err := r.store.InstrumentsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Instrument, len(found))
	for _, inst := range found {
		byID[inst.ID] = inst
	}

	out := make([]Instrument, 0, len(ids))
	for _, id := range ids {
		inst, ok := byID[id]
		if !ok {
			inst = Instrument{ID: id}
		}
		if inst.Name == "" {
			inst.Name = names[id]
		}
		out = append(out, inst)
	}
	return out, nil
}

// lookupNumbers dedupes designators and adds the base number of any
// sub-indexed designator so "41(1)" also finds "41".
func lookupNumbers(nums []string) []string {
	out := make([]string, 0, len(nums)*2)
	for _, n := range nums {
		out = append(out, n)
		if base := parser.BaseNumber(n); base != n {
			out = append(out, base)
		}
	}
	return UniqueNonEmpty(out)
}

func provisionIDs(ps []Provision) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return UniqueNonEmpty(ids)
}
