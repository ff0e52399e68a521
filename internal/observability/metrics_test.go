package observability

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordQueryMetrics(t *testing.T) {
	before := testutil.ToFloat64(QuestionsResolved.WithLabelValues(OutcomeValidationError))
	rejectedBefore := testutil.ToFloat64(UnsafeSQLRejected)

	RecordQueryMetrics(20*time.Millisecond, OutcomeValidationError, 1)

	assert.Equal(t, before+1, testutil.ToFloat64(QuestionsResolved.WithLabelValues(OutcomeValidationError)))
	assert.Equal(t, rejectedBefore+1, testutil.ToFloat64(UnsafeSQLRejected))
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookups.WithLabelValues("hit"))
	misses := testutil.ToFloat64(CacheLookups.WithLabelValues("miss"))

	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(CacheLookups.WithLabelValues("miss")))
}

func TestRecordLLMMetrics(t *testing.T) {
	errs := testutil.ToFloat64(LLMRequests.WithLabelValues("test-provider", "error"))
	tokens := testutil.ToFloat64(LLMTokens.WithLabelValues("test-provider", "input"))

	RecordLLMMetrics("test-provider", time.Second, 120, 0, fmt.Errorf("rate limit exceeded"))

	assert.Equal(t, errs+1, testutil.ToFloat64(LLMRequests.WithLabelValues("test-provider", "error")))
	assert.Equal(t, tokens+120, testutil.ToFloat64(LLMTokens.WithLabelValues("test-provider", "input")))
}

func TestRecordHTTPMetricsUsesNumericStatus(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("POST", "/api/ask", "400"))
	RecordHTTPMetrics("POST", "/api/ask", 400, time.Millisecond, 10)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequests.WithLabelValues("POST", "/api/ask", "400")))
}
