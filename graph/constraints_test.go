package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstraintSetIsEmpty(t *testing.T) {
	var nilSet *ConstraintSet
	assert.True(t, nilSet.IsEmpty())
	assert.True(t, (&ConstraintSet{}).IsEmpty())
	assert.True(t, (&ConstraintSet{CaseIDs: []string{}}).IsEmpty())
	assert.False(t, (&ConstraintSet{CaseIDs: []string{"c1"}}).IsEmpty())
}

func TestConstraintSetFilterPerKind(t *testing.T) {
	cs := &ConstraintSet{SectionIDs: []string{"BNS_Sec_103"}}

	tests := []struct {
		kind Kind
		id   string
		want bool
	}{
		{KindSection, "BNS_Sec_103", true},
		{KindSection, "BNS_Sec_101", false},
		// Kinds with an empty list are unrestricted.
		{KindArticle, "Constitution_Art_14", true},
		{KindCase, "2019_SC_12", true},
		{Kind("statute"), "x", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cs.Allows(tt.kind, tt.id), "%s/%s", tt.kind, tt.id)
	}
}

func TestConstraintSetEmptyAllowsEverything(t *testing.T) {
	var cs *ConstraintSet
	f := cs.Filter()
	assert.True(t, f(KindCase, "any"))
	assert.True(t, f(KindArticle, "any"))
}

func TestConstraintSetProvisionIDs(t *testing.T) {
	cs := &ConstraintSet{
		CaseIDs:    []string{"c"},
		SectionIDs: []string{"s1", "s2"},
		ArticleIDs: []string{"a1"},
	}
	assert.Equal(t, []string{"a1", "s1", "s2"}, cs.ProvisionIDs())

	var nilSet *ConstraintSet
	assert.Empty(t, nilSet.ProvisionIDs())
}

func TestRecordValidation(t *testing.T) {
	assert.NoError(t, Provision{ID: "p", Kind: KindSection, Number: "1"}.Validate())
	assert.ErrorIs(t, Provision{Kind: KindSection, Number: "1"}.Validate(), ErrInvalidRecord)
	assert.ErrorIs(t, Provision{ID: "p", Kind: KindCase, Number: "1"}.Validate(), ErrInvalidRecord)
	assert.ErrorIs(t, Provision{ID: "p", Kind: KindArticle}.Validate(), ErrInvalidRecord)
	assert.ErrorIs(t, Case{}.Validate(), ErrInvalidRecord)
	assert.ErrorIs(t, Instrument{}.Validate(), ErrInvalidRecord)
	assert.ErrorIs(t, Citation{CaseID: "c"}.Validate(), ErrInvalidRecord)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("article")
	assert.NoError(t, err)
	assert.Equal(t, KindArticle, k)

	_, err = ParseKind("chapter")
	assert.Error(t, err)
}

func TestInstrumentDisplayName(t *testing.T) {
	assert.Equal(t, "Bharatiya Nyaya Sanhita (BNS)", Instrument{ID: "BNS", Name: "Bharatiya Nyaya Sanhita"}.DisplayName())
	assert.Equal(t, "BNS", Instrument{ID: "BNS"}.DisplayName())
}

func TestSnippetIsRuneSafe(t *testing.T) {
	assert.Equal(t, "abc", Snippet("abc", 5))
	assert.Equal(t, "ab...", Snippet("abcdef", 2))
	assert.Equal(t, "धा...", Snippet("धारा", 2))
}

func TestUnavailableWrapping(t *testing.T) {
	err := Unavailable(errors.New("dial tcp: refused"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Same(t, err, Unavailable(err))
	assert.NoError(t, Unavailable(nil))
}

func TestDesignators(t *testing.T) {
	assert.Equal(t, []string{"21A", "14", "41(1)"}, Designators([]string{"21a", "14", " 21A", "", "41(1)"}))
	assert.Empty(t, Designators(nil))
}
