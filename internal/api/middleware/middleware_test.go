package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/api/middleware"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/services"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), value...)
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

type tokenVerifier string

func (v tokenVerifier) VerifyAdmin(ctx context.Context, token string) (*services.SessionClaims, error) {
	if token != string(v) {
		return nil, apperrors.NewUnauthorizedError("invalid session")
	}
	claims := &services.SessionClaims{Kind: services.SessionKindAdmin}
	claims.Subject = services.AdminSubject
	return claims, nil
}

func TestCacheMiddleware_ServesRepeatReadsFromCache(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"facilities":[]}`))
	})
	handler := middleware.NewCacheMiddleware(newMemoryCache()).Middleware(next)

	for i, want := range []string{"MISS", "HIT"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/facilities?area=x", nil))
		assert.Equal(t, want, rec.Header().Get("X-Cache"), "request %d", i)
		assert.Equal(t, `{"facilities":[]}`, rec.Body.String())
	}
	assert.Equal(t, 1, calls)
}

func TestCacheMiddleware_SuccessfulWriteInvalidatesCachedReads(t *testing.T) {
	reads := 0
	writeStatus := http.StatusCreated
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(writeStatus)
			return
		}
		reads++
		_, _ = w.Write([]byte(`{"recommendations":[]}`))
	})
	handler := middleware.NewCacheMiddleware(newMemoryCache()).Middleware(next)

	get := func() string {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/facilities/f1/recommendations", nil))
		return rec.Header().Get("X-Cache")
	}
	post := func() int {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/recommendations", nil))
		return rec.Code
	}

	assert.Equal(t, "MISS", get())
	assert.Equal(t, "HIT", get())

	writeStatus = http.StatusBadRequest
	assert.Equal(t, http.StatusBadRequest, post())
	assert.Equal(t, "HIT", get(), "a rejected write leaves the cache alone")

	writeStatus = http.StatusCreated
	assert.Equal(t, http.StatusCreated, post())
	assert.Equal(t, "MISS", get())
	assert.Equal(t, "HIT", get())
	assert.Equal(t, 2, reads)
}

func TestCacheMiddleware_InvalidateDropsEveryRoute(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	cache := middleware.NewCacheMiddleware(newMemoryCache())
	handler := cache.Middleware(next)

	paths := []string{"/api/facilities", "/api/facilities/search?q=onsen", "/api/facilities/f1"}
	for _, path := range paths {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.NoError(t, cache.Invalidate(context.Background()))

	for _, path := range paths {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"), path)
	}
}

func TestCacheMiddleware_SkipsPersonalisedAndUncachedRoutes(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{}`))
	})
	handler := middleware.NewCacheMiddleware(newMemoryCache()).Middleware(next)

	paths := []string{
		"/api/recommendations/r1/reactions?user_identifier=b1",
		"/api/recommendations",
		"/api/stream/changes",
	}
	for _, path := range paths {
		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Empty(t, rec.Header().Get("X-Cache"), path)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/facilities", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AdminCookieName, Value: "t"})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 2*len(paths)+2, calls)
}

func TestRequireAdmin(t *testing.T) {
	var subject string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.AdminFromContext(r.Context())
		require.True(t, ok)
		subject = claims.Subject
		w.WriteHeader(http.StatusNoContent)
	})
	handler := middleware.RequireAdmin(tokenVerifier("good"))(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, services.AdminSubject, subject)
}

func TestOptionalAdmin_PassesAnonymousRequests(t *testing.T) {
	var isAdmin bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, isAdmin = middleware.AdminFromContext(r.Context())
	})
	handler := middleware.OptionalAdmin(tokenVerifier("good"))(next)

	req := httptest.NewRequest(http.MethodPatch, "/api/recommendations/r1", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AdminCookieName, Value: "stale"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, isAdmin)
}

func TestCORSMiddleware(t *testing.T) {
	handler := middleware.CORSMiddleware([]string{"https://machi.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/recommendations", nil)
	req.Header.Set("Origin", "https://machi.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://machi.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/facilities", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := middleware.RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestETag_NotModified(t *testing.T) {
	handler := middleware.ETag(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":0}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/facilities", nil))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/facilities", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestResponseOptimization_StreamsBypassBuffering(t *testing.T) {
	var flushed bool
	handler := middleware.ResponseOptimization(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushed = w.(http.Flusher)
		_, _ = w.Write([]byte("event: connected\n\n"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/stream/changes", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, flushed)
	assert.Empty(t, rec.Header().Get("ETag"))
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "event: connected\n\n", rec.Body.String())
}

func TestCacheControl(t *testing.T) {
	handler := middleware.CacheControl(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	cases := map[string]string{
		"/api/admin/stats":     "no-store",
		"/api/facilities":      "public, max-age=120, must-revalidate",
		"/api/facilities/f1":   "private, no-cache, must-revalidate",
		"/api/recommendations": "private, no-cache, must-revalidate",
	}
	for path, want := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Header().Get("Cache-Control"), path)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/recommendations", nil))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
