package evidence

import (
	"fmt"
	"strings"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"
)

// NoContext is the snippet block emitted when nothing was retrieved.
const NoContext = "No legal context was retrieved."

// Labels marking graph-sourced provision text. Generation is told not to
// repeat them and answers are scrubbed of them.
const (
	ArticleLabel = "[ARTICLE FROM KNOWLEDGE GRAPH]"
	SectionLabel = "[SECTION FROM KNOWLEDGE GRAPH]"
)

// Config bounds the assembled context.
type Config struct {
	MaxSnippets     int // snippet groups emitted
	MaxSnippetChars int // per retrieved snippet
	MaxGraphChars   int // per graph provision
}

func DefaultConfig() Config {
	return Config{MaxSnippets: 10, MaxSnippetChars: 600, MaxGraphChars: 2000}
}

// Assembler builds context blocks.
type Assembler struct {
	cfg Config
}

func New(cfg Config) *Assembler {
	d := DefaultConfig()
	if cfg.MaxSnippets <= 0 {
		cfg.MaxSnippets = d.MaxSnippets
	}
	if cfg.MaxSnippetChars <= 0 {
		cfg.MaxSnippetChars = d.MaxSnippetChars
	}
	if cfg.MaxGraphChars <= 0 {
		cfg.MaxGraphChars = d.MaxGraphChars
	}
	return &Assembler{cfg: cfg}
}

// Assemble returns the graph block, when there is one, followed by the
// snippet block.
func (a *Assembler) Assemble(res *graph.Resolution, groups *Grouped) string {
	snippets := a.SnippetBlock(groups)
	if g := a.GraphBlock(res); g != "" {
		return strings.TrimSpace(g + "\n\n" + snippets)
	}
	return snippets
}

// GraphBlock renders the full text of resolved articles then sections.
// Provisions without text are skipped.
func (a *Assembler) GraphBlock(res *graph.Resolution) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	write := func(label string, p graph.Provision) {
		text := strings.TrimSpace(p.FullText)
		if text == "" {
			return
		}
		id := p.ID
		if id == "" {
			id = "?"
		}
		fmt.Fprintf(&b, "%s %s\n", label, id)
		if act := p.Instrument().DisplayName(); act != "" {
			fmt.Fprintf(&b, "Applicable Act: %s\n", act)
		}
		b.WriteString(graph.Snippet(text, a.cfg.MaxGraphChars))
		b.WriteString("\n\n")
	}
	for _, p := range res.Articles {
		write(ArticleLabel, p)
	}
	for _, p := range res.Sections {
		write(SectionLabel, p)
	}
	return strings.TrimSpace(b.String())
}

// SnippetBlock renders the first chunk of each group in grouping order,
// up to MaxSnippets groups.
func (a *Assembler) SnippetBlock(groups *Grouped) string {
	var b strings.Builder
	count := 0
	for _, grp := range groups.All() {
		if count >= a.cfg.MaxSnippets {
			break
		}
		if len(grp.Chunks) == 0 {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s (max_score=%.3f)\n", strings.ToUpper(string(grp.Kind)), grp.SourceID, grp.MaxScore)
		b.WriteString(graph.Snippet(grp.Chunks[0].Text, a.cfg.MaxSnippetChars))
		b.WriteString("\n\n")
		count++
	}
	if count == 0 {
		return NoContext
	}
	return strings.TrimRight(b.String(), "\n")
}
