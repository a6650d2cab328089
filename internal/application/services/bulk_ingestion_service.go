package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/observability"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/textmatch"
)

const businessClosedPermanently = "CLOSED_PERMANENTLY"

// IngestionConfig configures a BulkIngestionService
type IngestionConfig struct {
	Catalog      IngestionCatalog
	Checkpoint   *CheckpointStore
	ErrorLogPath string

	// RequestDelay follows every Places API call, InsertDelay every store write
	RequestDelay time.Duration
	InsertDelay  time.Duration

	// Metrics may be nil
	Metrics *observability.Metrics
}

// IngestionOptions selects what a single run covers
type IngestionOptions struct {
	Phase  int
	Resume bool
}

// BulkIngestionService crawls the Places API area by area and inserts the
// facilities the store does not know yet.
type BulkIngestionService struct {
	repo       repositories.FacilityRepository
	places     providers.PlacesProvider
	searchRepo repositories.FacilitySearchRepository
	cfg        IngestionConfig
	matchAreas []textmatch.Area

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBulkIngestionService creates the crawler. searchRepo may be nil.
func NewBulkIngestionService(
	repo repositories.FacilityRepository,
	places providers.PlacesProvider,
	searchRepo repositories.FacilitySearchRepository,
	cfg IngestionConfig,
) *BulkIngestionService {
	return &BulkIngestionService{
		repo:       repo,
		places:     places,
		searchRepo: searchRepo,
		cfg:        cfg,
		matchAreas: cfg.Catalog.MatchAreas(),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Run crawls every (area, type) pair of the phase, saving the checkpoint after
// each pair. Cancelling ctx lets the current pair finish and then returns
// ctx.Err() with the checkpoint pointing at the next pair.
func (s *BulkIngestionService) Run(ctx context.Context, opts IngestionOptions) (*IngestionProgress, error) {
	logger := observability.LoggerFromContext(ctx)

	areas, err := s.cfg.Catalog.AreasForPhase(opts.Phase)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	types := s.cfg.Catalog.Types

	progress, err := s.startProgress(opts)
	if err != nil {
		return nil, err
	}
	if progress.Completed {
		logger.Info().Str("checkpoint", s.cfg.Checkpoint.Path()).Msg("Checkpoint already completed, nothing to do")
		return progress, nil
	}

	errLog, err := OpenErrorLog(s.cfg.ErrorLogPath, opts.Resume)
	if err != nil {
		return nil, err
	}

	placeIDs, err := s.repo.ListPlaceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load known place ids: %w", err)
	}
	seen := make(map[string]bool, len(placeIDs))
	for _, id := range placeIDs {
		seen[id] = true
	}
	logger.Info().
		Int("phase", opts.Phase).
		Int("areas", len(areas)).
		Int("types", len(types)).
		Int("known_places", len(seen)).
		Int("start_area", progress.CurrentAreaIndex).
		Int("start_type", progress.CurrentTypeIndex).
		Msg("Starting bulk ingestion")

	for progress.CurrentAreaIndex < len(areas) {
		area := areas[progress.CurrentAreaIndex]
		if progress.CurrentTypeIndex >= len(types) {
			progress.CurrentAreaIndex++
			progress.CurrentTypeIndex = 0
			continue
		}
		placeType := types[progress.CurrentTypeIndex]

		if err := ctx.Err(); err != nil {
			logger.Warn().Msg("Ingestion interrupted, checkpoint saved")
			return progress, err
		}

		// the pair runs to completion even after an interrupt
		pairCtx := context.WithoutCancel(ctx)
		s.processPair(pairCtx, area, placeType, seen, progress, errLog)

		progress.CurrentTypeIndex++
		if progress.CurrentTypeIndex >= len(types) {
			progress.CurrentAreaIndex++
			progress.CurrentTypeIndex = 0
		}
		progress.LastUpdatedAt = s.now()
		if err := s.cfg.Checkpoint.Save(progress); err != nil {
			return progress, fmt.Errorf("failed to save checkpoint: %w", err)
		}
	}

	progress.Completed = true
	progress.LastUpdatedAt = s.now()
	if err := s.cfg.Checkpoint.Save(progress); err != nil {
		return progress, fmt.Errorf("failed to save checkpoint: %w", err)
	}
	logger.Info().
		Int("processed", progress.TotalProcessed).
		Int("inserted", progress.TotalInserted).
		Int("duplicates", progress.TotalDuplicates).
		Int("errors", progress.TotalErrors).
		Msg("Bulk ingestion completed")
	return progress, nil
}

func (s *BulkIngestionService) startProgress(opts IngestionOptions) (*IngestionProgress, error) {
	if opts.Resume {
		saved, err := s.cfg.Checkpoint.Load()
		if err != nil {
			return nil, err
		}
		if saved != nil {
			if saved.Phase != opts.Phase {
				return nil, apperrors.NewValidationError(
					fmt.Sprintf("checkpoint is for phase %d, not phase %d", saved.Phase, opts.Phase))
			}
			return saved, nil
		}
	}
	now := s.now()
	return &IngestionProgress{Phase: opts.Phase, StartedAt: now, LastUpdatedAt: now}, nil
}

func (s *BulkIngestionService) processPair(
	ctx context.Context,
	area IngestionArea,
	placeType PlaceType,
	seen map[string]bool,
	progress *IngestionProgress,
	errLog *ErrorLog,
) {
	logger := observability.LoggerFromContext(ctx)
	query := strings.TrimSpace(area.Query + " " + placeType.Keyword)

	results, err := s.places.TextSearch(ctx, query)
	_ = s.sleep(ctx, s.cfg.RequestDelay)
	if err != nil {
		s.recordError(ctx, errLog, progress, area, placeType, err)
		return
	}

	inserted := 0
	for _, r := range results {
		progress.TotalProcessed++
		if r.PlaceID == "" {
			continue
		}
		if seen[r.PlaceID] {
			progress.TotalDuplicates++
			continue
		}

		details, err := s.places.PlaceDetails(ctx, r.PlaceID)
		_ = s.sleep(ctx, s.cfg.RequestDelay)
		if err != nil {
			s.recordError(ctx, errLog, progress, area, placeType, fmt.Errorf("place %s: %w", r.PlaceID, err))
			continue
		}

		facility, ok := s.buildFacility(area, placeType, details)
		if !ok {
			continue
		}
		if err := s.repo.Create(ctx, facility); err != nil {
			s.recordError(ctx, errLog, progress, area, placeType, fmt.Errorf("place %s: %w", r.PlaceID, err))
			_ = s.sleep(ctx, s.cfg.InsertDelay)
			continue
		}
		seen[r.PlaceID] = true
		progress.TotalInserted++
		inserted++
		observability.RecordFacilitiesInserted(ctx, s.cfg.Metrics, 1)
		s.index(ctx, facility)
		_ = s.sleep(ctx, s.cfg.InsertDelay)
	}

	logger.Info().
		Str("area", area.Name).
		Str("type", placeType.Keyword).
		Int("results", len(results)).
		Int("inserted", inserted).
		Msg("Processed ingestion pair")
}

// buildFacility maps a details record to a new facility. It reports false for
// places that are closed or outside the region.
func (s *BulkIngestionService) buildFacility(area IngestionArea, placeType PlaceType, d *providers.PlaceDetails) (*entities.Facility, bool) {
	if d.BusinessStatus == businessClosedPermanently {
		return nil, false
	}
	address := CleanAddress(d.FormattedAddress)
	if s.cfg.Catalog.Region != "" && !strings.Contains(address, s.cfg.Catalog.Region) {
		return nil, false
	}

	areaName, ok := textmatch.MatchArea(address, s.matchAreas)
	if !ok {
		areaName = area.Name
	}

	now := s.now()
	f := &entities.Facility{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(d.Name),
		Address:       address,
		Area:          areaName,
		Category:      MapCategory(d.Types, placeType.Category),
		PlaceID:       d.PlaceID,
		GoogleMapsURL: d.MapsURL,
		Phone:         d.Phone,
		IsVerified:    true,
		CreatedBy:     entities.FacilityCreatorAPI,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if d.Latitude != 0 || d.Longitude != 0 {
		f.SetCoordinates(d.Latitude, d.Longitude)
	}
	if f.Validate() != nil {
		return nil, false
	}
	return f, true
}

func (s *BulkIngestionService) index(ctx context.Context, f *entities.Facility) {
	if s.searchRepo == nil {
		return
	}
	if err := s.searchRepo.Index(ctx, f); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("facility_id", f.ID).Msg("Failed to index facility")
	}
}

func (s *BulkIngestionService) recordError(
	ctx context.Context,
	errLog *ErrorLog,
	progress *IngestionProgress,
	area IngestionArea,
	placeType PlaceType,
	cause error,
) {
	progress.TotalErrors++
	logger := observability.LoggerFromContext(ctx)
	logger.Error().Err(cause).Str("area", area.Name).Str("type", placeType.Keyword).Msg("Ingestion error")

	entry := IngestionError{
		Timestamp: s.now(),
		Area:      area.Name,
		Type:      placeType.Keyword,
		Error:     cause.Error(),
	}
	if err := errLog.Append(entry); err != nil {
		logger.Warn().Err(err).Msg("Failed to write ingestion error log")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
