package reasoning

import (
	"regexp"
	"slices"
	"strings"
)

// Citation is a reference found in an answer.
type Citation struct {
	Text     string `json:"text"`                // as written in the answer
	SourceID string `json:"source_id,omitempty"` // matched context id
	Verified bool   `json:"verified"`            // the id was in the context
}

var (
	// Identifier style: BNS_Sec_103, Constitution_Art_14, BNSS_Sec_41(1).
	provisionIDRe = regexp.MustCompile(`\b[A-Za-z][A-Za-z0-9]*_(?:Sec|Art)_[0-9]+[A-Za-z]?(?:\([0-9A-Za-z]+\))?`)

	// Prose style: Section 103, Sec. 41(1), Article 21A.
	proseRefRe = regexp.MustCompile(`(?i)\b(section|sec\.|article|art\.)\s*([0-9]+[A-Za-z]?(?:\([0-9A-Za-z]+\))?)`)
)

// ExtractCitations finds provision and case references in answer. Context
// ids that appear verbatim are verified; identifier-style references
// missing from references are reported unverified. Prose references are
// matched to a context id by designator and kind.
func ExtractCitations(answer string, references []string) []Citation {
	var citations []Citation
	seen := make(map[string]bool)
	add := func(c Citation) {
		if seen[c.Text] {
			return
		}
		seen[c.Text] = true
		citations = append(citations, c)
	}

	for _, id := range references {
		if id != "" && strings.Contains(answer, id) {
			add(Citation{Text: id, SourceID: id, Verified: true})
		}
	}

	for _, m := range provisionIDRe.FindAllString(answer, -1) {
		add(Citation{Text: m, Verified: slices.Contains(references, m)})
	}

	for _, m := range proseRefRe.FindAllStringSubmatch(answer, -1) {
		ref := strings.TrimSpace(m[0])
		id, ok := matchDesignator(m[1], m[2], references)
		add(Citation{Text: ref, SourceID: id, Verified: ok})
	}
	return citations
}

// matchDesignator finds the context id ending in _Sec_<number> or
// _Art_<number>.
func matchDesignator(kindWord, number string, references []string) (string, bool) {
	infix := "_Sec_"
	if strings.HasPrefix(strings.ToLower(kindWord), "art") {
		infix = "_Art_"
	}
	suffix := strings.ToLower(infix + number)
	for _, id := range references {
		if strings.HasSuffix(strings.ToLower(id), suffix) {
			return id, true
		}
	}
	return "", false
}
