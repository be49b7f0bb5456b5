// Package reasoning runs the generation steps of a legal query: rewriting
// the user question into a formal legal query and answering it from the
// assembled context.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/llm"
	"github.com/AtharvTrivedi21/LegalRAG-KnowledgeGraph/metrics"
)

// Config holds generation settings.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Answer is the output of a generation call.
type Answer struct {
	Text             string     `json:"text"`
	NoApplicableLaws bool       `json:"no_applicable_laws"`
	NoRelevantCases  bool       `json:"no_relevant_cases"`
	Citations        []Citation `json:"citations,omitempty"`
	ModelUsed        string     `json:"model_used"`
	PromptTokens     int        `json:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens"`
	TotalTokens      int        `json:"total_tokens"`
	Steps            []Step     `json:"steps"`
}

// Step records one model call.
type Step struct {
	Action    string `json:"action"`
	Input     string `json:"input,omitempty"`
	Output    string `json:"output,omitempty"`
	Prompt    string `json:"prompt,omitempty"`   // full prompt sent to LLM (for replay)
	Response  string `json:"response,omitempty"` // raw LLM response
	Tokens    int    `json:"tokens,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms,omitempty"`
}

// Generator wraps the chat provider with the legal prompts.
type Generator struct {
	chat llm.Provider
	cfg  Config
}

// New creates a generator.
func New(chat llm.Provider, cfg Config) *Generator {
	return &Generator{chat: chat, cfg: cfg}
}

// Model returns the configured chat model name.
func (g *Generator) Model() string { return g.cfg.Model }

// Rephrase rewrites query as a formal legal query. The raw query is
// returned, together with the cause, when the model fails or returns
// nothing, so the result is always usable.
func (g *Generator) Rephrase(ctx context.Context, query string) (string, Step, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", Step{Action: "rephrase"}, nil
	}

	ctx, span := otel.Tracer("legalrag/reasoning").Start(ctx, "reasoning.Rephrase")
	defer span.End()

	start := time.Now()
	prompt := buildRephrasePrompt(query)
	resp, err := g.chat.Chat(ctx, llm.ChatRequest{
		Model:    g.cfg.Model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	step := Step{Action: "rephrase", Input: query, Prompt: prompt, ElapsedMs: time.Since(start).Milliseconds()}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rephrase failed")
		step.Output = query
		return query, step, fmt.Errorf("rephrasing query: %w", err)
	}
	g.recordUsage(resp)

	step.Response = resp.Content
	step.Tokens = resp.TotalTokens
	legal := strings.TrimSpace(resp.Content)
	if legal == "" {
		legal = query
	}
	step.Output = legal
	slog.Debug("reasoning: query rephrased", "input_len", len(query), "output_len", len(legal))
	return legal, step, nil
}

// Generate answers question from the assembled context. references lists
// the ids the context made available; citations in the answer are checked
// against them. Errors wrap llm.ErrUnavailable for model failures.
func (g *Generator) Generate(ctx context.Context, question, contextBlock string, references []string) (*Answer, error) {
	ctx, span := otel.Tracer("legalrag/reasoning").Start(ctx, "reasoning.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.Int("context.chars", len(contextBlock)),
	)

	slog.Info("reasoning: generation starting", "question_len", len(question), "context_len", len(contextBlock))
	start := time.Now()
	prompt := buildAnswerPrompt(question, contextBlock)

	resp, err := g.chat.Chat(ctx, llm.ChatRequest{
		Model: g.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		if !errors.Is(err, llm.ErrUnavailable) && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
		}
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	elapsed := time.Since(start)
	g.recordUsage(resp)
	slog.Info("reasoning: generation complete",
		"tokens", resp.TotalTokens, "elapsed", elapsed.Round(time.Millisecond))

	cleaned := Clean(resp.Content)
	model := resp.Model
	if model == "" {
		model = g.cfg.Model
	}
	return &Answer{
		Text:             cleaned.Text,
		NoApplicableLaws: cleaned.NoApplicableLaws,
		NoRelevantCases:  cleaned.NoRelevantCases,
		Citations:        ExtractCitations(cleaned.Text, references),
		ModelUsed:        model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TotalTokens,
		Steps: []Step{{
			Action:    "answer",
			Input:     question,
			Output:    cleaned.Text,
			Prompt:    prompt,
			Response:  resp.Content,
			Tokens:    resp.TotalTokens,
			ElapsedMs: elapsed.Milliseconds(),
		}},
	}, nil
}

func (g *Generator) recordUsage(resp *llm.ChatResponse) {
	model := resp.Model
	if model == "" {
		model = g.cfg.Model
	}
	metrics.RecordTokens(model, resp.PromptTokens, resp.CompletionTokens)
}
