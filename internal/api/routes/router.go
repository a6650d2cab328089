package routes

import (
	"net/http"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/api/handlers"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/api/middleware"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/observability"
)

// Handlers groups the route handlers. SSE is optional; without an event bus
// the stream endpoints are not registered.
type Handlers struct {
	Facility        *handlers.FacilityHandler
	Recommendation  *handlers.RecommendationHandler
	Reaction        *handlers.ReactionHandler
	FacilityRequest *handlers.FacilityRequestHandler
	Admin           *handlers.AdminHandler
	SSE             *handlers.SSEHandler
}

// Router holds all route handlers
type Router struct {
	mux             *http.ServeMux
	handlers        Handlers
	verifier        middleware.AdminVerifier
	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// NewRouter creates a new router. cacheMiddleware and metrics may be nil.
func NewRouter(
	h Handlers,
	verifier middleware.AdminVerifier,
	cacheMiddleware *middleware.CacheMiddleware,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		handlers:        h,
		verifier:        verifier,
		cacheMiddleware: cacheMiddleware,
		allowedOrigins:  allowedOrigins,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Public facility endpoints
	r.mux.HandleFunc("GET /api/facilities", r.handlers.Facility.ListFacilities)
	r.mux.HandleFunc("GET /api/facilities/search", r.handlers.Facility.SearchFacilities)
	r.mux.HandleFunc("GET /api/facilities/{id}", r.handlers.Facility.GetFacility)
	r.mux.HandleFunc("GET /api/facilities/{id}/recommendations", r.handlers.Recommendation.ListByFacility)

	// Recommendations. Edits accept either the submitter's grant or an admin session.
	optionalAdmin := middleware.OptionalAdmin(r.verifier)
	r.mux.HandleFunc("GET /api/recommendations", r.handlers.Recommendation.ListRecent)
	r.mux.HandleFunc("POST /api/recommendations", r.handlers.Recommendation.CreateRecommendation)
	r.mux.Handle("PATCH /api/recommendations/{id}", optionalAdmin(http.HandlerFunc(r.handlers.Recommendation.UpdateRecommendation)))
	r.mux.Handle("DELETE /api/recommendations/{id}", optionalAdmin(http.HandlerFunc(r.handlers.Recommendation.DeleteRecommendation)))

	// Reactions
	r.mux.HandleFunc("GET /api/recommendations/{id}/reactions", r.handlers.Reaction.GetReactions)
	r.mux.HandleFunc("POST /api/recommendations/{id}/reactions", r.handlers.Reaction.AddReaction)
	r.mux.HandleFunc("DELETE /api/recommendations/{id}/reactions", r.handlers.Reaction.RemoveReaction)

	r.mux.HandleFunc("POST /api/facility-requests", r.handlers.FacilityRequest.CreateFacilityRequest)

	// Realtime change notifications
	if r.handlers.SSE != nil {
		r.mux.HandleFunc("GET /api/stream/changes", r.handlers.SSE.StreamChanges)
		r.mux.HandleFunc("GET /api/stream/facilities/{id}", r.handlers.SSE.StreamFacilityChanges)
	}

	// Admin session
	r.mux.HandleFunc("POST /api/admin/login", r.handlers.Admin.Login)
	r.mux.HandleFunc("POST /api/admin/logout", r.handlers.Admin.Logout)

	// Admin back office
	admin := func(pattern string, h http.HandlerFunc) {
		r.mux.Handle(pattern, middleware.RequireAdmin(r.verifier)(h))
	}
	admin("GET /api/admin/facilities/export", r.handlers.Admin.ExportFacilities)
	admin("POST /api/admin/facilities/import", r.handlers.Admin.ImportFacilities)
	admin("GET /api/admin/facilities/{id}", r.handlers.Facility.AdminGetFacility)
	admin("PATCH /api/admin/facilities/{id}", r.handlers.Facility.AdminUpdateFacility)
	admin("DELETE /api/admin/facilities/{id}", r.handlers.Facility.AdminDeleteFacility)
	admin("GET /api/admin/facility-requests", r.handlers.FacilityRequest.ListFacilityRequests)
	admin("POST /api/admin/facility-requests/{id}/approve", r.handlers.FacilityRequest.ApproveFacilityRequest)
	admin("POST /api/admin/facility-requests/{id}/reject", r.handlers.FacilityRequest.RejectFacilityRequest)
	admin("DELETE /api/admin/recommendations/{id}", r.handlers.Recommendation.AdminDeleteRecommendation)
	admin("GET /api/admin/audit-logs", r.handlers.Admin.ListAuditLogs)
	admin("GET /api/admin/stats", r.handlers.Admin.GetStats)

	// Apply middleware in reverse order (last middleware wraps first).
	// The response cache sits inside ResponseOptimization so it stores
	// uncompressed bodies.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.RecoveryMiddleware(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
