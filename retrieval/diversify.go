package retrieval

import "github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"

// diversify picks up to k chunks from candidates. The best minSections
// section chunks and minArticles article chunks are taken first so statutes
// are not crowded out by case law; remaining slots go to the highest scores
// overall. No chunk id appears twice.
func diversify(candidates []Chunk, k, minSections, minArticles int) []Chunk {
	if k <= 0 {
		return nil
	}
	byKind := make(map[graph.Kind][]Chunk)
	for _, c := range candidates {
		kind := c.SourceKind
		if kind == "" {
			kind = graph.KindCase
		}
		byKind[kind] = append(byKind[kind], c)
	}

	chosen := make([]Chunk, 0, k)
	seen := make(map[string]bool, k)
	take := func(pool []Chunk, quota int) {
		sorted := append([]Chunk(nil), pool...)
		byScore(sorted)
		n := 0
		for _, c := range sorted {
			if n >= quota || len(chosen) >= k {
				return
			}
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			chosen = append(chosen, c)
			n++
		}
	}

	take(byKind[graph.KindSection], minSections)
	take(byKind[graph.KindArticle], minArticles)
	take(candidates, k)
	return chosen
}
