// Package metrics holds the Prometheus collectors for the legal QA pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Retrieval policies.
const (
	PolicyUnconstrained = "unconstrained"
	PolicyConstrained   = "constrained"
	PolicyFallback      = "fallback"
	PolicyError         = "error"
)

// Degraded concerns.
const (
	ConcernGraph      = "graph"
	ConcernVector     = "vector"
	ConcernGeneration = "generation"
	ConcernRephrase   = "rephrase"
)

var (
	// stageLatency measures each pipeline stage.
	// Labels: stage (parse, resolve, rephrase, retrieve, generate), status (ok, error)
	stageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "legalrag",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Pipeline stage latency in seconds",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60, 180},
	}, []string{"stage", "status"})

	// retrievals counts which retrieval policy served a request.
	retrievals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "legalrag",
		Subsystem: "retrieval",
		Name:      "requests_total",
		Help:      "Retrievals by policy",
	}, []string{"policy"})

	// topSimilarity tracks the best similarity seen per retrieval.
	topSimilarity = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "legalrag",
		Subsystem: "retrieval",
		Name:      "top_similarity",
		Help:      "Maximum similarity observed across searches of one retrieval",
		Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})

	// degraded counts requests that lost a concern.
	degraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "legalrag",
		Subsystem: "pipeline",
		Name:      "degraded_total",
		Help:      "Requests that continued without a concern",
	}, []string{"concern"})

	// answers counts completed requests.
	answers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "legalrag",
		Subsystem: "pipeline",
		Name:      "answers_total",
		Help:      "Completed requests by outcome",
	}, []string{"outcome"})

	// llmTokens counts tokens reported by the generation provider.
	llmTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "legalrag",
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "Tokens consumed by model and direction",
	}, []string{"model", "direction"})
)

// RecordStage records how long a stage took.
func RecordStage(stage string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	stageLatency.WithLabelValues(stage, status).Observe(d.Seconds())
}

// RecordRetrieval records the serving policy and top similarity.
func RecordRetrieval(policy string, top float64) {
	retrievals.WithLabelValues(policy).Inc()
	if policy != PolicyError {
		topSimilarity.Observe(top)
	}
}

// RecordDegraded counts a request that continued without concern.
func RecordDegraded(concern string) {
	degraded.WithLabelValues(concern).Inc()
}

// RecordAnswer counts a completed request.
func RecordAnswer(outcome string) {
	answers.WithLabelValues(outcome).Inc()
}

// RecordTokens adds prompt and completion token counts.
func RecordTokens(model string, prompt, completion int) {
	if prompt > 0 {
		llmTokens.WithLabelValues(model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		llmTokens.WithLabelValues(model, "completion").Add(float64(completion))
	}
}
