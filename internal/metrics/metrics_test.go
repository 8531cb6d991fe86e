package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	c := New()
	c.DetectorRan("OutlierDetector", 2, time.Millisecond)
	c.FindingStored("created")
	c.FindingStored("already_recorded")
	c.Escalated("high")
	c.Enriched("skipped", 0.4)
	c.Enriched("error", 0.4)
	c.Enriched("ok", 0.9)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.findingsProduced.WithLabelValues("OutlierDetector")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.findingsStored.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.escalations.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.enrichments.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.enrichments.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.enrichments.WithLabelValues("ok")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.DetectorRan("x", 1, time.Second)
	c.Enriched("ok", 1)
	c.HTTPRequest("GET", "/", 200, time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.HTTPRequest("POST", "/v1/detections", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "anomalyguard_http_requests_total")
}
