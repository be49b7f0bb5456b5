package retrieval

import (
	"sort"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"
)

// MaxScore is the sentinel score given to must-include chunks.
const MaxScore = 1.0

// Chunk is a retrievable span of a case, section or article.
type Chunk struct {
	ID         string     `json:"chunk_id"`
	SourceKind graph.Kind `json:"source_type"`
	SourceID   string     `json:"source_id"`
	Text       string     `json:"text"`
	Score      float64    `json:"score"`
}

// dedupe drops chunks whose id was already seen, in either the slice itself
// or seen. seen is updated.
func dedupe(chunks []Chunk, seen map[string]bool) []Chunk {
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

// byScore sorts chunks by descending score, keeping index order for ties.
func byScore(chunks []Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
}

func maxScore(chunks []Chunk) float64 {
	best := 0.0
	for i, c := range chunks {
		if i == 0 || c.Score > best {
			best = c.Score
		}
	}
	return best
}
