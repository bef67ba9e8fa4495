package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	mw "github.com/orbitalscope/terralens/internal/api/middleware"
	"github.com/orbitalscope/terralens/internal/api/response"
	"github.com/stretchr/testify/assert"
)

type passCache struct{}

func (passCache) Ping(context.Context) error { return nil }
func (passCache) SetJobStatus(context.Context, uuid.UUID, string, time.Duration) error {
	return nil
}
func (passCache) GetJobStatus(context.Context, uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (passCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

func testDeps() Dependencies {
	// No request below carries credentials, so auth never touches its store.
	return Dependencies{
		Auth:      mw.NewAuth(nil),
		RateLimit: mw.NewRateLimit(passCache{}, 100),
		HealthHandler: func(w http.ResponseWriter, r *http.Request) {
			response.JSON(w, map[string]string{"status": "ok"})
		},
	}
}

func TestRouter_HealthIsPublic(t *testing.T) {
	router := NewRouter(testDeps())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_UnwiredRouteIs501(t *testing.T) {
	router := NewRouter(testDeps())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats/trends", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRouter_UnknownRouteIs404(t *testing.T) {
	router := NewRouter(testDeps())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_AdminRequiresScope(t *testing.T) {
	deps := testDeps()
	deps.CreateKeyHandler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}
	router := NewRouter(deps)

	// Anonymous callers have no scopes and must be rejected.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/keys", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_SubmitReachableAnonymously(t *testing.T) {
	deps := testDeps()
	deps.SubmitHandler = func(w http.ResponseWriter, r *http.Request) {
		response.Accepted(w, map[string]string{"processingId": uuid.NewString()})
	}
	router := NewRouter(deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRouter_MetricsMountedWhenProvided(t *testing.T) {
	deps := testDeps()
	deps.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router := NewRouter(deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
