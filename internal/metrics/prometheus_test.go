package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportCounters(t *testing.T) {
	m := NewManager(WithRegistry(prometheus.NewRegistry()), WithNamespace("test"))

	done := m.ImportStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.importsInFlight))
	done("success")
	m.ImportStarted()("not_found")
	m.RecordSnapshot(3, 1, 2)
	m.RecordSaved(25, 50)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.importsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.importsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.importsTotal.WithLabelValues("not_found")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.pagesFetched))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.eventsInserted))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.gamesInserted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsDropped))
}

func TestHandlerAndMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewManager(WithRegistry(prometheus.NewRegistry()))

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/subjects/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/subjects/5", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `gomafia_http_requests_total{method="GET",route="/api/subjects/:id",status="204"} 1`), body)
}
