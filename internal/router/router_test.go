package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"engagehub/internal/response"
	"engagehub/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(sc *services.ServiceCollection, perMinute int) http.Handler {
	return SetupRouter(sc, response.NewBuilder(nil, nil), Options{RateLimitPerMinute: perMinute}, zap.NewNop())
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter_Health(t *testing.T) {
	sc := &services.ServiceCollection{}
	h := newTestRouter(sc, 0)

	rec := serve(h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	sc.RegisterHealthChecker(services.NewHealthChecker("database", func(ctx context.Context) error {
		return errors.New("connection refused")
	}))

	rec = serve(h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Data services.ServiceHealth `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Data.Status)
	assert.Equal(t, "unhealthy", body.Data.Dependencies["database"].Status)
}

func TestRouter_UnknownRoutesUseEnvelope(t *testing.T) {
	h := newTestRouter(&services.ServiceCollection{}, 0)

	rec := serve(h, http.MethodGet, "/api/v1/nothing-here")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"NOT_FOUND"`)

	rec = serve(h, http.MethodDelete, "/health")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	h := newTestRouter(&services.ServiceCollection{}, 2)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health").Code)
	rec := serve(h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}
