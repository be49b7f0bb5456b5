// Package parser extracts explicit statutory references (Section and
// Article designators plus instrument mentions) from free-text queries.
package parser

import (
	"regexp"
	"strings"
)

// ParsedQuery is the structured view of a user query. It is created once per
// request and never mutated afterwards.
type ParsedQuery struct {
	Raw            string   `json:"raw_query"`
	SectionNumbers []string `json:"section_numbers"`
	ArticleNumbers []string `json:"article_numbers"`

	// Instrument hints are empty unless a number of that kind was found.
	SectionInstrument string `json:"section_instrument,omitempty"`
	ArticleInstrument string `json:"article_instrument,omitempty"`
}

// HasExplicitRefs reports whether any designator was found.
func (p ParsedQuery) HasExplicitRefs() bool {
	return len(p.SectionNumbers) > 0 || len(p.ArticleNumbers) > 0
}

// Equal reports structural equality.
func (p ParsedQuery) Equal(o ParsedQuery) bool {
	return p.Raw == o.Raw &&
		p.SectionInstrument == o.SectionInstrument &&
		p.ArticleInstrument == o.ArticleInstrument &&
		equalStrings(p.SectionNumbers, o.SectionNumbers) &&
		equalStrings(p.ArticleNumbers, o.ArticleNumbers)
}

var (
	sectionPattern = regexp.MustCompile(`(?i)\b(?:sections?|sec\.)\s*(\d+[a-z]?(?:\(\d+\))?)`)
	articlePattern = regexp.MustCompile(`(?i)\b(?:articles?|art\.)\s*(\d+[a-z]?(?:\(\d+\))?)`)
)

// proximity bounds how far from a designator an instrument mention may sit
// and still be attributed to it ("Section 302 of the BNS", "BNS Section 302").
const (
	proximityAfter  = 80
	proximityBefore = 40
)

var defaultRegistry = DefaultRegistry()

// Parse extracts references using the built-in instrument registry.
func Parse(text string) ParsedQuery {
	return defaultRegistry.Parse(text)
}

// reference is one designator occurrence in the query.
type reference struct {
	number     string
	start, end int
}

// Parse extracts Section/Article designators and attaches instrument hints.
// Empty or reference-free input yields a ParsedQuery with only Raw set.
func (r *Registry) Parse(text string) ParsedQuery {
	pq := ParsedQuery{Raw: text}
	if strings.TrimSpace(text) == "" {
		return pq
	}

	sections := findRefs(sectionPattern, text)
	articles := findRefs(articlePattern, text)
	for _, ref := range sections {
		pq.SectionNumbers = append(pq.SectionNumbers, ref.number)
	}
	for _, ref := range articles {
		pq.ArticleNumbers = append(pq.ArticleNumbers, ref.number)
	}
	if len(sections) == 0 && len(articles) == 0 {
		return pq
	}

	mentions := r.mentions(text)
	all := append(append([]reference(nil), sections...), articles...)
	if len(sections) > 0 {
		pq.SectionInstrument = r.hint(text, sections, all, mentions)
	}
	if len(articles) > 0 {
		pq.ArticleInstrument = r.hint(text, articles, all, mentions)
	}
	return pq
}

// hint picks the instrument mentioned closest to the first reference of a
// kind that has one nearby, else any instrument mentioned in the text.
func (r *Registry) hint(text string, refs, all []reference, mentions []mention) string {
	for _, ref := range refs {
		lo := max(0, ref.start-proximityBefore)
		hi := min(len(text), ref.end+proximityAfter)
		// Do not reach past a neighbouring designator.
		for _, other := range all {
			if other.start >= ref.end && other.start < hi {
				hi = other.start
			}
			if other.end <= ref.start && other.end > lo {
				lo = other.end
			}
		}
		if id := nearest(mentions, lo, hi, ref); id != "" {
			return id
		}
	}
	return r.Detect(text)
}

// nearest prefers a mention following the designator ("Section 302 of BNS")
// and only then one preceding it ("BNS Section 302").
func nearest(mentions []mention, lo, hi int, ref reference) string {
	for _, m := range mentions {
		if m.end > ref.start && m.start < hi {
			return m.id
		}
	}
	best := ""
	for _, m := range mentions {
		if m.end <= ref.start && m.end > lo {
			best = m.id
		}
	}
	return best
}

func findRefs(re *regexp.Regexp, text string) []reference {
	var refs []reference
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		refs = append(refs, reference{
			number: strings.ToUpper(text[loc[2]:loc[3]]),
			start:  loc[0],
			end:    loc[1],
		})
	}
	return refs
}

// BaseNumber strips a parenthesized sub-index: "41(1)" becomes "41".
func BaseNumber(n string) string {
	if i := strings.IndexByte(n, '('); i > 0 {
		return n[:i]
	}
	return n
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
