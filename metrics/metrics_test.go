package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRetrieval(t *testing.T) {
	before := testutil.ToFloat64(retrievals.WithLabelValues(PolicyFallback))
	RecordRetrieval(PolicyFallback, 0.31)
	assert.Equal(t, before+1, testutil.ToFloat64(retrievals.WithLabelValues(PolicyFallback)))
}

func TestRecordDegraded(t *testing.T) {
	before := testutil.ToFloat64(degraded.WithLabelValues(ConcernGraph))
	RecordDegraded(ConcernGraph)
	RecordDegraded(ConcernGraph)
	assert.Equal(t, before+2, testutil.ToFloat64(degraded.WithLabelValues(ConcernGraph)))
}

func TestRecordTokensSkipsZero(t *testing.T) {
	before := testutil.ToFloat64(llmTokens.WithLabelValues("m", "prompt"))
	RecordTokens("m", 0, 5)
	assert.Equal(t, before, testutil.ToFloat64(llmTokens.WithLabelValues("m", "prompt")))
	RecordTokens("m", 7, 0)
	assert.Equal(t, before+7, testutil.ToFloat64(llmTokens.WithLabelValues("m", "prompt")))
}

func TestRecordStageLabelsErrors(t *testing.T) {
	RecordStage("retrieve", errors.New("boom"), 20*time.Millisecond)
	RecordStage("retrieve", nil, 10*time.Millisecond)
	assert.Equal(t, 2, testutil.CollectAndCount(stageLatency, "legalrag_pipeline_stage_duration_seconds"))
}
