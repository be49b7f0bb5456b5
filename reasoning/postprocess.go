package reasoning

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/evidence"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
	headingSplit  = regexp.MustCompile(`(?i)##\s+`)
	headingRe     = regexp.MustCompile(`##\s+[^\n#]+`)
	summaryLeadRe = regexp.MustCompile(`(?i)^Summary\s+`)
	nonePhraseRe  = regexp.MustCompile(`(?i)\b(none found|no relevant|do not relate|do not address|provided cases? do not)\b`)
)

// noneWindow is how much of a section body is checked for a none-phrase.
const noneWindow = 600

// Cleaned is a post-processed answer.
type Cleaned struct {
	Text             string
	NoApplicableLaws bool
	NoRelevantCases  bool
}

// Clean removes context labels, flags empty law and case-law sections,
// repairs heading layout and drops the sections that say nothing was found.
func Clean(raw string) Cleaned {
	text := stripLabels(raw)
	noLaws, noCases := indicatesNoRelevant(text)
	text = fixLayout(text)
	text = removeEmptySections(text)
	return Cleaned{Text: text, NoApplicableLaws: noLaws, NoRelevantCases: noCases}
}

// stripLabels also flattens all whitespace to single spaces; fixLayout
// restores heading breaks.
func stripLabels(text string) string {
	text = strings.ReplaceAll(text, evidence.ArticleLabel, "")
	text = strings.ReplaceAll(text, evidence.SectionLabel, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func indicatesNoRelevant(answer string) (noLaws, noCases bool) {
	var laws, cases string
	for _, part := range headingSplit.Split(answer, -1) {
		lower := strings.ToLower(part)
		switch {
		case strings.HasPrefix(lower, "applicable laws"):
			laws = prefixRunes(part, noneWindow)
		case strings.HasPrefix(lower, "relevant case law"):
			cases = prefixRunes(part, noneWindow)
		}
	}
	return laws != "" && nonePhraseRe.MatchString(laws),
		cases != "" && nonePhraseRe.MatchString(cases)
}

func fixLayout(text string) string {
	if summaryLeadRe.MatchString(text) {
		text = "## " + text
	}
	text = breakAfterHeadings(text)
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// breakAfterHeadings ends each "## Heading" at the first whitespace run that
// is followed by an uppercase ASCII letter, replacing that run with a blank
// line. A heading whose title reaches a newline or '#' first is left alone.
func breakAfterHeadings(text string) string {
	var b strings.Builder
	i := 0
	for {
		j := strings.Index(text[i:], "##")
		if j < 0 {
			break
		}
		start := i + j
		end, ok := headingBreak(text, start)
		if !ok {
			b.WriteString(text[i : start+1])
			i = start + 1
			continue
		}
		b.WriteString(text[i:end])
		b.WriteString("\n\n")
		i = skipSpace(text, end)
	}
	b.WriteString(text[i:])
	return b.String()
}

// headingBreak returns where the title of the heading at start ends.
func headingBreak(text string, start int) (int, bool) {
	p := start + 2
	q := skipSpace(text, p)
	if q == p || q >= len(text) {
		return 0, false
	}
	// The title needs at least one character before the break.
	for k := q + 1; k < len(text); k++ {
		c := text[k-1]
		if c == '\n' || c == '#' {
			return 0, false
		}
		if !isSpace(text[k]) || isSpace(c) {
			continue
		}
		after := skipSpace(text, k)
		if after < len(text) && text[after] >= 'A' && text[after] <= 'Z' {
			return k, true
		}
	}
	return 0, false
}

func skipSpace(text string, i int) int {
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c < 0x80 && unicode.IsSpace(rune(c))
}

// removeEmptySections drops each "## heading" block whose body contains a
// none-phrase.
func removeEmptySections(text string) string {
	locs := headingRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return strings.TrimSpace(text)
	}
	var b strings.Builder
	b.WriteString(text[:locs[0][0]])
	for n, loc := range locs {
		bodyEnd := len(text)
		if n+1 < len(locs) {
			bodyEnd = locs[n+1][0]
		}
		if nonePhraseRe.MatchString(text[loc[1]:bodyEnd]) {
			continue
		}
		b.WriteString(text[loc[0]:bodyEnd])
	}
	out := strings.TrimSpace(b.String())
	return blankLinesRe.ReplaceAllString(out, "\n\n")
}

func prefixRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
