package graph

// ConstraintSet is the allow-list derived from explicit query references.
//
// Each kind is restricted independently: a chunk passes when its kind's
// list is empty or contains its source id. A nil set, or one with every
// list empty, means unconstrained retrieval.
type ConstraintSet struct {
	CaseIDs    []string `json:"allowed_case_ids"`
	SectionIDs []string `json:"allowed_section_ids"`
	ArticleIDs []string `json:"allowed_article_ids"`
}

// IsEmpty reports whether the set restricts nothing. Safe on nil.
func (c *ConstraintSet) IsEmpty() bool {
	return c == nil || (len(c.CaseIDs) == 0 && len(c.SectionIDs) == 0 && len(c.ArticleIDs) == 0)
}

// ProvisionIDs returns article ids then section ids: the sources whose text
// must be present in the result.
func (c *ConstraintSet) ProvisionIDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.ArticleIDs)+len(c.SectionIDs))
	out = append(out, c.ArticleIDs...)
	return append(out, c.SectionIDs...)
}

// Filter compiles the set into a predicate over (kind, source id).
func (c *ConstraintSet) Filter() func(Kind, string) bool {
	if c.IsEmpty() {
		return func(Kind, string) bool { return true }
	}
	lists := map[Kind]map[string]bool{
		KindCase:    toSet(c.CaseIDs),
		KindSection: toSet(c.SectionIDs),
		KindArticle: toSet(c.ArticleIDs),
	}
	return func(k Kind, id string) bool {
		allowed, ok := lists[k]
		if !ok {
			return false
		}
		return len(allowed) == 0 || allowed[id]
	}
}

// Allows reports whether a single chunk source passes the set.
func (c *ConstraintSet) Allows(k Kind, id string) bool {
	return c.Filter()(k, id)
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
