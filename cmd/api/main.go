package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/adapters/database"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/adapters/events"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/api/handlers"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/api/middleware"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/api/routes"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/services"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/bootstrap"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("api server failed")
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap.Open(ctx, bootstrap.Options{
		Service:       "kuchikomi-api",
		WithRedis:     true,
		WithTypesense: true,
	})
	if err != nil {
		return err
	}
	defer env.Close()

	cfg := env.Config
	if err := cfg.ValidateSession(); err != nil {
		return err
	}

	cacheProvider := env.Cache("kc")
	searchRepo := env.SearchRepo()

	// Wrap with caching if Redis is available
	var facilityRepo repositories.FacilityRepository = database.NewFacilityAdapter(env.Postgres)
	if cacheProvider != nil {
		facilityRepo = database.NewCachedFacilityAdapter(facilityRepo, cacheProvider)
	} else {
		log.Warn().Msg("facility reads running without cache (Redis unavailable)")
	}
	recommendationRepo := database.NewRecommendationAdapter(env.Postgres)
	reactionRepo := database.NewReactionAdapter(env.Postgres)
	requestRepo := database.NewFacilityRequestAdapter(env.Postgres)
	auditRepo := database.NewAuditLogAdapter(env.Postgres)

	var eventBus providers.EventBus
	if env.Redis != nil {
		eventBus = events.NewRedisEventBus(env.Redis)
		defer func() {
			if err := eventBus.Close(); err != nil {
				log.Warn().Err(err).Msg("error closing event bus")
			}
		}()
	} else {
		log.Warn().Msg("event bus disabled (Redis unavailable)")
	}

	var revocations services.RevocationStore
	if cacheProvider != nil {
		revocations = services.NewCacheRevocationStore(cacheProvider)
	}

	audit := services.NewAuditService(auditRepo)
	facilityService := services.NewFacilityService(facilityRepo, searchRepo, audit)
	recommendationService := services.NewRecommendationService(
		recommendationRepo,
		facilityRepo,
		eventBus,
		audit,
		cfg.Session.IPHashSalt,
		cfg.Session.EditWindow,
	)
	reactionService := services.NewReactionService(reactionRepo, recommendationRepo, eventBus)
	requestService := services.NewFacilityRequestService(requestRepo, facilityRepo, searchRepo, audit)
	statsService := services.NewStatsService(facilityRepo, recommendationRepo, reactionRepo, requestRepo)
	csvService := services.NewFacilityCSVService(facilityRepo, searchRepo, cfg.Batch.PageSize, env.Metrics)
	sessions := services.NewSessionService(
		cfg.Session.Secret,
		cfg.Session.AdminPasswordHash,
		cfg.Session.AdminTTL,
		revocations,
	)

	h := routes.Handlers{
		Facility:        handlers.NewFacilityHandler(facilityService),
		Recommendation:  handlers.NewRecommendationHandler(recommendationService, sessions, cfg.Session.SecureCookies),
		Reaction:        handlers.NewReactionHandler(reactionService),
		FacilityRequest: handlers.NewFacilityRequestHandler(requestService),
		Admin:           handlers.NewAdminHandler(sessions, csvService, audit, statsService, cfg.Session.SecureCookies),
	}
	if eventBus != nil {
		h.SSE = handlers.NewSSEHandler(eventBus)
	}

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider)
	}

	router := routes.NewRouter(h, sessions, cacheMiddleware, cfg.Server.AllowedOrigins, env.Metrics)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// streams stay open, so writes are bounded per handler instead
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("error during server shutdown")
	}
	log.Info().Msg("server stopped")
	return nil
}
