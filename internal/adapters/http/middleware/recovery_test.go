package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Haleralex/marketbridge/internal/adapters/http/common"
	"github.com/Haleralex/marketbridge/internal/pkg/logger"
)

func panicRouter(cfg *RecoveryConfig, value any) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery(cfg))
	router.POST("/api/v1/orders/:id/cancel", func(c *gin.Context) {
		panic(value)
	})
	return router
}

func TestRecovery_RespondsWithEnvelope(t *testing.T) {
	router := panicRouter(DefaultRecoveryConfig(), "nil map in settlement")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/42/cancel", nil)
	req.Header.Set(RequestIDHeader, "req-cancel-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp common.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	assert.Equal(t, "req-cancel-1", resp.RequestID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.Equal(t, "An unexpected error occurred", resp.Error.Message)
	assert.NotContains(t, w.Body.String(), "nil map in settlement")
}

func TestRecovery_LogsRequestContext(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		withStack bool
		wantError string
	}{
		{name: "string with stack", value: "ledger exploded", withStack: true, wantError: "ledger exploded"},
		{name: "error without stack", value: assert.AnError, withStack: false, wantError: assert.AnError.Error()},
		{name: "int", value: 42, withStack: false, wantError: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.New(&logger.Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "marketbridge"})
			router := panicRouter(&RecoveryConfig{Logger: log, EnableStackTrace: tt.withStack}, tt.value)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/7/cancel", nil)
			req.Header.Set(RequestIDHeader, "req-panic")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusInternalServerError, w.Code)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, "Panic recovered", entry["msg"])
			assert.Equal(t, "ERROR", entry["level"])
			assert.Equal(t, tt.wantError, entry["error"])
			assert.Equal(t, "/api/v1/orders/7/cancel", entry["path"])
			assert.Equal(t, http.MethodPost, entry["method"])
			assert.Equal(t, "req-panic", entry["request_id"])
			assert.Equal(t, "marketbridge", entry["service"])
			_, hasStack := entry["stack"]
			assert.Equal(t, tt.withStack, hasStack)
		})
	}
}

func TestRecovery_MarksSpanFailed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanRecorder(recorder))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		ctx, span := provider.Tracer("test").Start(c.Request.Context(), "POST /api/v1/webhooks/sepay")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.End()
	})
	router.Use(Recovery(nil))
	router.POST("/api/v1/webhooks/sepay", func(c *gin.Context) {
		panic("reconcile failed")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/sepay", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "panic", spans[0].Status().Description)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestRecovery_PassesThroughHandledRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery(nil))
	router.GET("/api/v1/wallet", func(c *gin.Context) {
		common.Success(c, http.StatusOK, gin.H{"balance": "259.00"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp common.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}
