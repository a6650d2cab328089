package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/observability"
)

// CacheConfig holds cache configuration for specific routes
type CacheConfig struct {
	TTL     time.Duration
	Enabled bool
}

// CacheMiddleware caches public GET responses
type CacheMiddleware struct {
	cache        providers.CacheProvider
	routeConfigs map[string]CacheConfig
}

// generationKey holds the current cache generation. Every cached entry is
// keyed under the generation it was stored in, so bumping it orphans them all.
const generationKey = "http:cache:generation"

const generationTTL = 24 * time.Hour

// NewCacheMiddleware creates a cache middleware for the public read endpoints.
// Any successful write through the API starts a new cache generation. The
// TTLs bound staleness from batch jobs that write to the store directly.
func NewCacheMiddleware(cache providers.CacheProvider) *CacheMiddleware {
	return &CacheMiddleware{
		cache: cache,
		routeConfigs: map[string]CacheConfig{
			"/api/facilities":        {TTL: time.Minute, Enabled: true},
			"/api/facilities/search": {TTL: time.Minute, Enabled: true},
			"/api/facilities/":       {TTL: 30 * time.Second, Enabled: true},
		},
	}
}

// Invalidate drops every cached response by starting a new generation
func (m *CacheMiddleware) Invalidate(ctx context.Context) error {
	if m.cache == nil {
		return nil
	}
	gen := strconv.FormatInt(time.Now().UnixNano(), 10)
	return m.cache.Set(ctx, generationKey, []byte(gen), generationTTL)
}

func (m *CacheMiddleware) generation(ctx context.Context) (string, error) {
	gen, err := m.cache.Get(ctx, generationKey)
	if errors.Is(err, providers.ErrCacheMiss) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return string(gen), nil
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			status := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(status, r)
			if status.statusCode < http.StatusBadRequest {
				if err := m.Invalidate(r.Context()); err != nil {
					observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("failed to invalidate response cache")
				}
			}
			return
		}
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		// responses that depend on the caller are never shared
		if r.URL.Query().Has("user_identifier") || SessionToken(r) != "" {
			next.ServeHTTP(w, r)
			return
		}

		config := m.getRouteConfig(r.URL.Path)
		if !config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		logger := observability.LoggerFromContext(r.Context())
		gen, err := m.generation(r.Context())
		if err != nil {
			logger.Warn().Err(err).Msg("cache generation unavailable, bypassing cache")
			next.ServeHTTP(w, r)
			return
		}
		cacheKey := m.generateCacheKey(gen, r)

		if cached, err := m.cache.Get(r.Context(), cacheKey); err == nil {
			logger.Debug().Str("key", cacheKey).Msg("cache hit")
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}

		w.Header().Set("X-Cache", "MISS")
		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}
		next.ServeHTTP(recorder, r)

		if recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
			if err := m.cache.Set(r.Context(), cacheKey, recorder.body.Bytes(), config.TTL); err != nil {
				logger.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache response")
			}
		}
	})
}

// getRouteConfig picks the exact route first, then the longest prefix
func (m *CacheMiddleware) getRouteConfig(path string) CacheConfig {
	if config, exists := m.routeConfigs[path]; exists {
		return config
	}

	best := ""
	for pattern := range m.routeConfigs {
		if strings.HasSuffix(pattern, "/") && strings.HasPrefix(path, pattern) && len(pattern) > len(best) {
			best = pattern
		}
	}
	if best == "" {
		return CacheConfig{}
	}
	return m.routeConfigs[best]
}

// generateCacheKey hashes generation, method, path and query
func (m *CacheMiddleware) generateCacheKey(gen string, r *http.Request) string {
	key := gen + ":" + r.Method + ":" + r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.Query().Encode()
	}
	hash := sha256.Sum256([]byte(key))
	return "http:cache:" + hex.EncodeToString(hash[:])
}

// responseRecorder captures the response for caching
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

// WriteHeader captures the status code
func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

// Write captures the response body and writes to the client
func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}

// statusRecorder remembers the status of a write request
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.written = true
	}
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(data []byte) (int, error) {
	r.written = true
	return r.ResponseWriter.Write(data)
}
