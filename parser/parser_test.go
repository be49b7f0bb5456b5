package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Designator extraction
// ---------------------------------------------------------------------------

func TestParseDesignators(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantSections []string
		wantArticles []string
		wantSecInst  string
		wantArtInst  string
	}{
		{
			name:         "article of the constitution",
			query:        "Explain Article 14 of the Constitution",
			wantArticles: []string{"14"},
			wantArtInst:  InstrumentConstitution,
		},
		{
			name:         "section of BNS",
			query:        "What is the punishment under Section 302 of BNS?",
			wantSections: []string{"302"},
			wantSecInst:  InstrumentBNS,
		},
		{
			name:         "instrument before designator",
			query:        "bns section 103 murder",
			wantSections: []string{"103"},
			wantSecInst:  InstrumentBNS,
		},
		{
			name:         "sub-index",
			query:        "Is arrest without warrant allowed under Section 41(1) of the Bharatiya Nagarik Suraksha Sanhita",
			wantSections: []string{"41(1)"},
			wantSecInst:  InstrumentBNSS,
		},
		{
			name:         "alphanumeric article uppercased",
			query:        "scope of article 21a",
			wantArticles: []string{"21A"},
		},
		{
			name:         "case insensitive keyword",
			query:        "SECTION 63 bsa electronic records",
			wantSections: []string{"63"},
			wantSecInst:  InstrumentBSA,
		},
		{
			name:         "repeated numbers kept in order",
			query:        "Section 302 and Section 101 and Section 302",
			wantSections: []string{"302", "101", "302"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pq := Parse(tt.query)
			assert.Equal(t, tt.query, pq.Raw)
			assert.Equal(t, tt.wantSections, pq.SectionNumbers)
			assert.Equal(t, tt.wantArticles, pq.ArticleNumbers)
			assert.Equal(t, tt.wantSecInst, pq.SectionInstrument)
			assert.Equal(t, tt.wantArtInst, pq.ArticleInstrument)
		})
	}
}

func TestParseEmptyInput(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t"} {
		pq := Parse(q)
		assert.Equal(t, q, pq.Raw)
		assert.Empty(t, pq.SectionNumbers)
		assert.Empty(t, pq.ArticleNumbers)
		assert.Empty(t, pq.SectionInstrument)
		assert.Empty(t, pq.ArticleInstrument)
		assert.False(t, pq.HasExplicitRefs())
	}
}

func TestParseInstrumentWithoutNumberIsNotHinted(t *testing.T) {
	pq := Parse("What does the BNS say about theft?")
	assert.False(t, pq.HasExplicitRefs())
	assert.Empty(t, pq.SectionInstrument)
	assert.Empty(t, pq.ArticleInstrument)
}

// ---------------------------------------------------------------------------
// Instrument attribution
// ---------------------------------------------------------------------------

func TestParsePrefersNearbyInstrument(t *testing.T) {
	// BNS has higher whole-text priority but BSA sits next to the designator.
	pq := Parse("Explain Section 63 of the BSA, not the BNS")
	assert.Equal(t, InstrumentBSA, pq.SectionInstrument)
}

func TestParseMixedKinds(t *testing.T) {
	pq := Parse("Compare Section 302 of BNS with Article 21 of the Constitution")
	assert.Equal(t, []string{"302"}, pq.SectionNumbers)
	assert.Equal(t, []string{"21"}, pq.ArticleNumbers)
	assert.Equal(t, InstrumentBNS, pq.SectionInstrument)
	assert.Equal(t, InstrumentConstitution, pq.ArticleInstrument)
}

func TestParseFallsBackToAnyMention(t *testing.T) {
	q := "Section 302 deals with a serious offence and courts have discussed it many times over the years; " +
		"I read about it in the Bharatiya Nyaya Sanhita"
	pq := Parse(q)
	assert.Equal(t, InstrumentBNS, pq.SectionInstrument)
}

func TestParseNoInstrument(t *testing.T) {
	pq := Parse("Section 420 cheating")
	assert.Equal(t, []string{"420"}, pq.SectionNumbers)
	assert.Empty(t, pq.SectionInstrument)
}

func TestParseIdempotent(t *testing.T) {
	queries := []string{
		"",
		"Explain Article 14 of the Constitution",
		"Section 41(1) BNSS and Article 22",
		"theft of a mobile phone",
	}
	for _, q := range queries {
		a, b := Parse(q), Parse(q)
		assert.True(t, a.Equal(b), "parse(%q) not stable: %+v vs %+v", q, a, b)
	}
}

func TestBaseNumber(t *testing.T) {
	assert.Equal(t, "41", BaseNumber("41(1)"))
	assert.Equal(t, "302", BaseNumber("302"))
	assert.Equal(t, "21A", BaseNumber("21A"))
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistryDetect(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		text string
		want string
	}{
		{"bharatiya nyaya sanhita", InstrumentBNS},
		{"Bharatiya Nagrik Suraksha Sanhita procedure", InstrumentBNSS},
		{"the BNSS", InstrumentBNSS},
		{"bharatiya sakshya adhiniyam", InstrumentBSA},
		{"Constitution of India", InstrumentConstitution},
		{"indian constitution", InstrumentConstitution},
		{"nothing here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.Detect(tt.text))
		})
	}
}

func TestRegistryCustomInstrument(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("IT_ACT", "Information Technology Act", `\bIT\s+Act\b`, `information\s+technology\s+act`))

	pq := reg.Parse("Section 66A of the IT Act")
	assert.Equal(t, []string{"66A"}, pq.SectionNumbers)
	assert.Equal(t, "IT_ACT", pq.SectionInstrument)
	require.Len(t, reg.Instruments(), 1)
}

func TestRegistryRejectsBadAlias(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register("X", "X", `(`))
	assert.Error(t, reg.Register("", "X", `x`))
	assert.Error(t, reg.Register("X", "X"))
}
