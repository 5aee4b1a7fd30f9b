package httpx

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordableAfterConstruction(t *testing.T) {
	router, _ := newTestRouter(t)

	before := testutil.ToFloat64(router.rateLimitHits.WithLabelValues("/users", "ip"))
	router.recordRequestMetrics("GET", "/users", 200, 5*time.Millisecond)
	router.recordRateLimitHit("/users", "ip")

	after := testutil.ToFloat64(router.rateLimitHits.WithLabelValues("/users", "ip"))
	if after != before+1 {
		t.Fatalf("rate limit hit not recorded: before=%v after=%v", before, after)
	}
}
