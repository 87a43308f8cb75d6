package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"engagehub/internal/contextutils"
	"engagehub/internal/models"
	"engagehub/internal/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.APIResponse {
	t.Helper()
	var body response.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen string
	handler := RequestID(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextutils.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "upstream-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-1", seen)
}

func TestActor(t *testing.T) {
	builder := response.NewBuilder(nil, nil)
	var got models.Actor
	var present bool
	handler := Actor(builder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, present = contextutils.GetActor(r.Context())
	}))

	tests := []struct {
		name       string
		id, role   string
		wantStatus int
		wantActor  bool
	}{
		{"anonymous", "", "", http.StatusOK, false},
		{"admin", "100", "Admin", http.StatusOK, true},
		{"bad id", "abc", "teacher", http.StatusBadRequest, false},
		{"bad role", "3", "principal", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			present = false
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.id != "" {
				req.Header.Set(HeaderXUserID, tt.id)
				req.Header.Set(HeaderXUserRole, tt.role)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantActor, present)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXUserID, "100")
	req.Header.Set(HeaderXUserRole, "admin")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, got.IsAdmin())
}

func TestRequireActor(t *testing.T) {
	builder := response.NewBuilder(nil, nil)
	handler := RequireActor(builder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeEnvelope(t, rec).Error.Type)
}

func TestRecovery_MasksPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	builder := response.NewBuilder(nil, nil)
	handler := RequestID(zap.New(core))(Recovery(builder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("ledger exploded")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "An internal error occurred", body.Error.Message)
	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestRateLimiter_PerClient(t *testing.T) {
	limiter := NewRateLimiter(4, response.NewBuilder(nil, nil))
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// burst is half the per-minute rate
	assert.Equal(t, http.StatusOK, call("203.0.113.5"))
	assert.Equal(t, http.StatusOK, call("203.0.113.5"))
	assert.Equal(t, http.StatusTooManyRequests, call("203.0.113.5"))
	assert.Equal(t, http.StatusOK, call("198.51.100.7"), "other clients keep their own bucket")

	now = now.Add(15 * time.Second)
	assert.Equal(t, http.StatusOK, call("203.0.113.5"), "one token refills every 15s")

	now = now.Add(limiterIdleTTL + time.Second)
	call("192.0.2.1")
	assert.Equal(t, 1, limiter.Clients(), "idle buckets are dropped")
}

func TestStructuredLogging_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := RequestID(zap.New(core))(StructuredLogging(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, 1, logs.FilterMessage("HTTP request completed").Len())
	assert.Equal(t, 1, logs.FilterMessage("HTTP request completed with warning").Len())
	assert.Equal(t, 2, logs.Len(), "health checks are not logged")
}
