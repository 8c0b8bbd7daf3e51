package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/items/:id", "418"))
	missBefore := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "unmatched", "404"))

	for _, path := range []string{"/items/1", "/items/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, before+2, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/items/:id", "418")))
	assert.Equal(t, missBefore+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestRecorders(t *testing.T) {
	hits := testutil.ToFloat64(poolCacheLookups.WithLabelValues("hit"))
	misses := testutil.ToFloat64(poolCacheLookups.WithLabelValues("miss"))
	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)
	assert.Equal(t, hits+1, testutil.ToFloat64(poolCacheLookups.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(poolCacheLookups.WithLabelValues("miss")))

	RecordRating("topic-metrics")
	RecordComment("topic-metrics")
	RecordSessionEvent("topic-metrics", "started")
	RecordPoolBuild("built")
	RecordTranslation("fake", "success", 1500*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(ratingsSubmitted.WithLabelValues("topic-metrics")))
	assert.Equal(t, 1.0, testutil.ToFloat64(commentsSubmitted.WithLabelValues("topic-metrics")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sessionEvents.WithLabelValues("topic-metrics", "started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(translations.WithLabelValues("fake", "success")))
}

func TestHandler_ExposesNamespace(t *testing.T) {
	RecordRating("topic-exposed")

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `hypothesis_rating_recorder_ratings_total{topic="topic-exposed"} 1`))
}
