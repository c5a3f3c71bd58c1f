package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/soleron/sessiond/internal/config"
	"github.com/soleron/sessiond/internal/infrastructure/monitoring"
	"github.com/soleron/sessiond/pkg/constants"
	"github.com/soleron/sessiond/pkg/logger"
)

func TestTracingMiddlewarePropagatesTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	provider := sdktrace.NewTracerProvider()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tm, err := monitoring.NewTracingManager(&config.TracingConfig{ServiceName: "sessiond-test"}, logger.NewNoopLogger())
	require.NoError(t, err)

	var traceID string
	r := gin.New()
	r.Use(Tracing(tm))
	r.GET("/ping", func(c *gin.Context) {
		traceID, _ = c.Request.Context().Value(constants.ContextKeyTraceID).(string)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, traceID, "handlers must see the request's trace ID")
}

func TestTracingMiddlewareWithoutProviderStillServes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tm, err := monitoring.NewTracingManager(&config.TracingConfig{ServiceName: "sessiond-test"}, logger.NewNoopLogger())
	require.NoError(t, err)

	r := gin.New()
	r.Use(Tracing(tm))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
