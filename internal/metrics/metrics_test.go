package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagegest/internal/metrics"
)

func TestCrawlStopsByReason(t *testing.T) {
	before := testutil.ToFloat64(metrics.CrawlStops.WithLabelValues("page_limit"))
	metrics.CrawlStops.WithLabelValues("page_limit").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CrawlStops.WithLabelValues("page_limit")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	metrics.PagesCrawled.Inc()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "pagegest_pages_crawled_total"))
}
