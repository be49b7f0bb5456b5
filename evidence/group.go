// Package evidence turns retrieved chunks and resolved graph records into
// the bounded context block handed to generation, and into the reference
// lists shown next to an answer.
package evidence

import (
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/retrieval"
)

// Group is every retrieved chunk of one source.
type Group struct {
	Kind     graph.Kind        `json:"source_type"`
	SourceID string            `json:"source_id"`
	Chunks   []retrieval.Chunk `json:"chunks"`
	MaxScore float64           `json:"max_score"`
}

// Grouped holds groups keyed by kind then source id, both in first-seen
// order.
type Grouped struct {
	kinds  []graph.Kind
	byKind map[graph.Kind][]*Group
	index  map[graph.Kind]map[string]*Group
}

// GroupBySource groups chunks by (kind, source id). A chunk without a kind
// or source id is filed under "unknown".
func GroupBySource(chunks []retrieval.Chunk) *Grouped {
	g := &Grouped{
		byKind: make(map[graph.Kind][]*Group),
		index:  make(map[graph.Kind]map[string]*Group),
	}
	for _, c := range chunks {
		kind, id := c.SourceKind, c.SourceID
		if kind == "" {
			kind = "unknown"
		}
		if id == "" {
			id = "unknown"
		}
		ids, ok := g.index[kind]
		if !ok {
			ids = make(map[string]*Group)
			g.index[kind] = ids
			g.kinds = append(g.kinds, kind)
		}
		grp, ok := ids[id]
		if !ok {
			grp = &Group{Kind: kind, SourceID: id, MaxScore: c.Score}
			ids[id] = grp
			g.byKind[kind] = append(g.byKind[kind], grp)
		}
		grp.Chunks = append(grp.Chunks, c)
		grp.MaxScore = max(grp.MaxScore, c.Score)
	}
	return g
}

// Kinds returns the kinds present, in first-seen order.
func (g *Grouped) Kinds() []graph.Kind {
	if g == nil {
		return nil
	}
	return g.kinds
}

// ByKind returns the groups of one kind in first-seen order.
func (g *Grouped) ByKind(k graph.Kind) []Group {
	if g == nil {
		return nil
	}
	out := make([]Group, len(g.byKind[k]))
	for i, grp := range g.byKind[k] {
		out[i] = *grp
	}
	return out
}

// All returns every group, kind by kind.
func (g *Grouped) All() []Group {
	var out []Group
	for _, k := range g.Kinds() {
		out = append(out, g.ByKind(k)...)
	}
	return out
}

// Len returns the number of groups.
func (g *Grouped) Len() int {
	n := 0
	if g == nil {
		return 0
	}
	for _, grps := range g.byKind {
		n += len(grps)
	}
	return n
}

// Lookup returns the group for one source.
func (g *Grouped) Lookup(k graph.Kind, id string) (Group, bool) {
	if g == nil {
		return Group{}, false
	}
	grp, ok := g.index[k][id]
	if !ok {
		return Group{}, false
	}
	return *grp, true
}
