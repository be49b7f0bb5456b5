package evidence

import (
	"context"
	"log/slog"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"
)

const (
	provisionSnippetLen = 200
	caseSnippetLen      = 300
	maxCitedCases       = 5
)

// ProvisionRef is an article or section shown as a citation.
type ProvisionRef struct {
	ID         string           `json:"id"`
	Number     string           `json:"number,omitempty"`
	Instrument graph.Instrument `json:"act"`
	Snippet    string           `json:"snippet,omitempty"`
	FromGraph  bool             `json:"from_graph"`
}

// CaseRef is a judgment shown as a citation. Year is graph.UnknownYear when
// not recorded.
type CaseRef struct {
	ID      string `json:"case_id"`
	Year    int    `json:"year"`
	Snippet string `json:"snippet,omitempty"`
}

// References lists what an answer may cite.
type References struct {
	Acts     []graph.Instrument `json:"acts"`
	Articles []ProvisionRef     `json:"articles"`
	Sections []ProvisionRef     `json:"sections"`
	Cases    []CaseRef          `json:"cases"`
}

// Cite collects references from resolved graph records first, then from
// retrieved groups. Case snippets are loaded from store when it is non-nil;
// a store failure only loses those snippets.
func Cite(ctx context.Context, store graph.Store, res *graph.Resolution, groups *Grouped) References {
	if res == nil {
		res = &graph.Resolution{}
	}
	refs := References{Acts: res.Instruments}

	refs.Articles = provisionRefs(res.Articles, groups.ByKind(graph.KindArticle))
	refs.Sections = provisionRefs(res.Sections, groups.ByKind(graph.KindSection))
	refs.Cases = caseRefs(ctx, store, res.Cases, groups.ByKind(graph.KindCase))
	return refs
}

func provisionRefs(resolved []graph.Provision, retrieved []Group) []ProvisionRef {
	seen := make(map[string]bool)
	var out []ProvisionRef
	for _, p := range resolved {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, ProvisionRef{
			ID:         p.ID,
			Number:     p.Number,
			Instrument: p.Instrument(),
			Snippet:    graph.Snippet(p.FullText, provisionSnippetLen),
			FromGraph:  true,
		})
	}
	for _, g := range retrieved {
		if seen[g.SourceID] {
			continue
		}
		seen[g.SourceID] = true
		ref := ProvisionRef{ID: g.SourceID}
		if len(g.Chunks) > 0 {
			ref.Snippet = graph.Snippet(g.Chunks[0].Text, provisionSnippetLen)
		}
		out = append(out, ref)
	}
	return out
}

func caseRefs(ctx context.Context, store graph.Store, resolved []graph.Case, retrieved []Group) []CaseRef {
	ids := make([]string, 0, len(resolved)+len(retrieved))
	years := make(map[string]int)
	fallback := make(map[string]string)
	for _, c := range resolved {
		ids = append(ids, c.ID)
		years[c.ID] = c.Year
	}
	for _, g := range retrieved {
		ids = append(ids, g.SourceID)
		if len(g.Chunks) > 0 {
			fallback[g.SourceID] = graph.Snippet(g.Chunks[0].Text, caseSnippetLen)
		}
	}
	ids = graph.UniqueNonEmpty(ids)
	if len(ids) > maxCitedCases {
		ids = ids[:maxCitedCases]
	}
	if len(ids) == 0 {
		return nil
	}

	details := make(map[string]graph.Case)
	if store != nil {
		got, err := store.CaseDetails(ctx, ids, caseSnippetLen)
		if err != nil {
			slog.Warn("evidence: case details unavailable", "error", err)
		}
		for _, c := range got {
			details[c.ID] = c
		}
	}

	out := make([]CaseRef, 0, len(ids))
	for _, id := range ids {
		ref := CaseRef{ID: id, Year: graph.UnknownYear, Snippet: fallback[id]}
		if y, ok := years[id]; ok {
			ref.Year = y
		}
		if d, ok := details[id]; ok {
			ref.Year = d.Year
			if d.Text != "" {
				ref.Snippet = d.Text
			}
		}
		out = append(out, ref)
	}
	return out
}
