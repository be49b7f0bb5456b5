package reasoning

import (
	"fmt"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/evidence"
)

const rephrasePrompt = `You are an expert in Indian criminal law, Bharatiya Nyaya Sanhita (BNS), and Indian Constitution. ` +
	`Rewrite the user's informal question or incident description into a concise, formal legal query ` +
	`using appropriate legal terminology. Do not answer the question, only rewrite it. ` +
	`Keep any explicit references to Article or Section numbers unchanged.

User input:
%s

Formal legal query:`

var systemPrompt = `You are a legal research assistant for Indian law. ` +
	`Answer the user's question using ONLY the provided context (cases, sections, constitutional articles). ` +
	`Cite the relevant section_id, article_id, or case_id in your answer. ` +
	`Always include the parent Act name when citing sections or articles ` +
	`(e.g. 'Section 302, BNS (Bharatiya Nyaya Sanhita)' or 'Article 14, Constitution of India'). ` +
	`Under 'Applicable laws / provisions', you MUST list and cite every section_id and article_id from the context ` +
	`that is relevant to the question, with their Act name. ` +
	`Do not say 'none stated' or 'none explicitly stated' if the context contains any SECTION or ARTICLE text; ` +
	`identify and cite the applicable ones. ` +
	`Only if the context truly contains no sections or articles may you state that no applicable laws were provided. ` +
	`Do not fabricate citations or legal provisions not present in the context. ` +
	`Structure your answer with these markdown headings: ## Summary, ## Applicable laws / provisions, ` +
	`## Relevant case law (if any), ## Recommendation / next steps. ` +
	`Use brief bullets or short paragraphs under each. ` +
	`Do not include or repeat internal labels like ` + evidence.ArticleLabel + ` or ` + evidence.SectionLabel + ` in your answer; ` +
	`cite sources by article_id, section_id, or case_id with their Act (e.g. BNS_Sec_41, Constitution_Art_14).
`

func buildRephrasePrompt(query string) string {
	return fmt.Sprintf(rephrasePrompt, query)
}

func buildAnswerPrompt(question, context string) string {
	return fmt.Sprintf(`User question:
%s

Relevant legal context (cases, sections, articles):
%s

Reply using ONLY the context above, in the structured format with the four headings. `+
		`Cite the section_id, article_id, or case_id you relied on.`, question, context)
}

// VectorUnavailableAnswer is the answer text when retrieval failed.
func VectorUnavailableAnswer(reason string) string {
	return "Vector retrieval is not available right now:\n" + reason +
		"\nPlease ensure the chunk index is seeded (legalrag seed) and try again."
}

// GenerationUnavailableAnswer is the answer text when the model call failed.
func GenerationUnavailableAnswer(reason, model string) string {
	return "The language model is not available or returned an error:\n" + reason +
		"\nPlease ensure Ollama is running and the model is pulled (e.g. `ollama pull " + model + "`)."
}
