package pipeline

import (
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/evidence"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/graph"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/parser"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/reasoning"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/retrieval"
)

// Answer outcomes.
const (
	OutcomeAnswered              = "answered"
	OutcomeVectorUnavailable     = "vector_unavailable"
	OutcomeGenerationUnavailable = "generation_unavailable"
)

// State is the record one request accumulates as it moves through the
// stages. A stage that fails for its concern sets the matching error field
// and leaves its outputs empty; later stages still run.
type State struct {
	RequestID  string `json:"request_id"`
	UserQuery  string `json:"user_query"`
	LegalQuery string `json:"legal_query"`

	Parsed         parser.ParsedQuery   `json:"parsed_query"`
	Resolution     *graph.Resolution    `json:"graph_metadata,omitempty"`
	Constraints    *graph.ConstraintSet `json:"graph_constraints,omitempty"`
	ApplicableActs []graph.Instrument   `json:"applicable_acts"`

	Chunks          []retrieval.Chunk `json:"retrieved_chunks"`
	Grouped         *evidence.Grouped `json:"-"`
	Groups          []evidence.Group  `json:"grouped_sources"`
	UsedConstraints bool              `json:"used_constraints"`
	UsedFallback    bool              `json:"used_fallback_unconstrained"`
	TopSimilarity   float64           `json:"top_similarity"`
	Retrieval       *retrieval.Trace  `json:"retrieval_trace,omitempty"`

	Answer           string              `json:"answer"`
	NoApplicableLaws bool                `json:"answer_no_applicable_laws"`
	NoRelevantCases  bool                `json:"answer_no_relevant_cases"`
	Generation       *reasoning.Answer   `json:"generation,omitempty"`
	References       evidence.References `json:"references"`
	Steps            []reasoning.Step    `json:"steps,omitempty"`
	Outcome          string              `json:"outcome"`

	GraphError      string `json:"graph_error,omitempty"`
	VectorError     string `json:"vector_error,omitempty"`
	GenerationError string `json:"generation_error,omitempty"`
	RephraseError   string `json:"rephrase_error,omitempty"`

	ElapsedMs int64 `json:"elapsed_ms"`
}

// Degraded reports whether any concern failed.
func (s *State) Degraded() bool {
	return s.GraphError != "" || s.VectorError != "" || s.GenerationError != ""
}

// ReferenceIDs lists every provision and case id the answer may cite.
func (s *State) ReferenceIDs() []string {
	var ids []string
	for _, p := range s.References.Articles {
		ids = append(ids, p.ID)
	}
	for _, p := range s.References.Sections {
		ids = append(ids, p.ID)
	}
	for _, c := range s.References.Cases {
		ids = append(ids, c.ID)
	}
	for _, g := range s.Groups {
		ids = append(ids, g.SourceID)
	}
	return graph.UniqueNonEmpty(ids)
}
