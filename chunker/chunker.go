// Package chunker splits provision and judgment texts into overlapping
// word windows ready for embedding.
package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/store"
)

// Config controls the chunking behaviour. A token is one whitespace
// separated word.
type Config struct {
	MaxTokens int // Window size.
	Overlap   int // Tokens shared by consecutive windows.
}

// Chunker converts source texts into store-ready chunks.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// Zero-value fields are replaced with the corpus defaults (500/100). The
// overlap is kept below the window size so windows always advance.
func New(cfg Config) *Chunker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Overlap <= 0 {
		cfg.Overlap = 100
	}
	if cfg.Overlap >= cfg.MaxTokens {
		cfg.Overlap = cfg.MaxTokens / 5
	}
	return &Chunker{cfg: cfg}
}

// Chunk splits text into windows of MaxTokens words advancing by
// MaxTokens-Overlap. Chunk ids are "{sanitized source id}_chunk_{i}".
// Blank text yields no chunks; text that fits one window is kept verbatim
// (trimmed).
func (c *Chunker) Chunk(kind, sourceID, text string) []store.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	prefix := SanitizeID(sourceID)

	words := strings.Fields(text)
	if len(words) <= c.cfg.MaxTokens {
		return []store.Chunk{newChunk(kind, sourceID, prefix, 0, text, len(words))}
	}

	stride := c.cfg.MaxTokens - c.cfg.Overlap
	var chunks []store.Chunk
	for start := 0; start < len(words); start += stride {
		end := min(start+c.cfg.MaxTokens, len(words))
		window := strings.Join(words[start:end], " ")
		chunks = append(chunks, newChunk(kind, sourceID, prefix, len(chunks), window, end-start))
		if end == len(words) {
			break
		}
	}
	return chunks
}

func newChunk(kind, sourceID, prefix string, i int, text string, tokens int) store.Chunk {
	return store.Chunk{
		ChunkID:    fmt.Sprintf("%s_chunk_%d", prefix, i),
		SourceKind: kind,
		SourceID:   sourceID,
		Position:   i,
		Text:       text,
		TokenCount: tokens,
	}
}

// SanitizeID replaces every character other than letters, digits, '_',
// '-' and '.' with '_'.
func SanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
			return r
		}
		return '_'
	}, id)
}

// Unique renames chunks whose id was already used earlier in the slice by
// appending "_0", "_1", ... to the original id until it is free. Distinct
// source ids can sanitize to the same prefix.
func Unique(chunks []store.Chunk) {
	seen := make(map[string]bool, len(chunks))
	for i := range chunks {
		base := chunks[i].ChunkID
		for n := 0; seen[chunks[i].ChunkID]; n++ {
			chunks[i].ChunkID = fmt.Sprintf("%s_%d", base, n)
		}
		seen[chunks[i].ChunkID] = true
	}
}
