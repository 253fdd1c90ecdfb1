package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/intervita/sessiond/internal/app"
	"github.com/intervita/sessiond/internal/middleware"
	"github.com/intervita/sessiond/internal/token"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := token.NewService(token.Config{
		APIKey:          "api-key",
		APISecret:       "api-secret",
		RequireDocument: true,
	})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"

	router, err := NewRouter(svc, cfg, middleware.NewMemoryRateStore())
	require.NoError(t, err)
	return router
}

func TestRouterServesHealth(t *testing.T) {
	router := newTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), `"status":"ok"`)
}

func TestRouterServesMetrics(t *testing.T) {
	router := newTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRouterWiresBothTokenCallStyles(t *testing.T) {
	router := newTestRouter(t)

	get := httptest.NewRecorder()
	router.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/api/token", nil))
	require.Equal(t, http.StatusBadRequest, get.Code)

	post := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/token",
		strings.NewReader(`{"participantName":"alice","resumeData":{"skills":["python"]}}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(post, req)
	require.Equal(t, http.StatusOK, post.Code)
	require.Contains(t, post.Body.String(), `"identity":"alice"`)
}

func TestRouterRejectsNilService(t *testing.T) {
	_, err := NewRouter(nil, &app.Config{}, nil)
	require.Error(t, err)
}
