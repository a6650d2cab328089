package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/observability"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/csvio"
)

// RowError describes one import row that was not applied
type RowError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// ImportResult summarizes a CSV import. Partial success is the normal case.
type ImportResult struct {
	Inserted    int        `json:"inserted"`
	Updated     int        `json:"updated"`
	Total       int        `json:"total"`
	ParseErrors []RowError `json:"parse_errors"`
	DBErrors    []RowError `json:"db_errors"`
}

// FacilityCSVService exports and imports the facility table as CSV
type FacilityCSVService struct {
	repo       repositories.FacilityRepository
	searchRepo repositories.FacilitySearchRepository
	snapshot   *FacilitySnapshotService
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewFacilityCSVService creates a CSV service. searchRepo and metrics may be nil.
func NewFacilityCSVService(
	repo repositories.FacilityRepository,
	searchRepo repositories.FacilitySearchRepository,
	pageSize int,
	metrics *observability.Metrics,
) *FacilityCSVService {
	return &FacilityCSVService{
		repo:       repo,
		searchRepo: searchRepo,
		snapshot:   NewFacilitySnapshotService(repo, pageSize),
		metrics:    metrics,
		now:        time.Now,
	}
}

// Export streams every facility to w, one store page at a time. It returns the number of rows written.
func (s *FacilityCSVService) Export(ctx context.Context, w io.Writer) (int, error) {
	cw, err := csvio.NewWriter(w, true)
	if err != nil {
		return 0, err
	}
	if err := cw.Write(FacilityCSVHeader); err != nil {
		return 0, err
	}

	written := 0
	err = s.snapshot.Each(ctx, func(page []*entities.Facility) error {
		for _, f := range page {
			if err := cw.Write(facilityToRecord(f)); err != nil {
				return err
			}
			written++
		}
		return cw.Flush()
	})
	if err != nil {
		return written, err
	}
	return written, cw.Flush()
}

// Import applies a CSV file to the facility table. The first row is the
// header. Rows with an id update that facility, changing only the columns the
// row carries; rows without one are inserted with a fresh id. Invalid rows and
// failed writes are collected, never fatal.
func (s *FacilityCSVService) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	rows, err := csvio.NewReader(r).ReadAll()
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	result := &ImportResult{ParseErrors: []RowError{}, DBErrors: []RowError{}}
	if len(rows) == 0 {
		return result, nil
	}

	for _, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Total++

		parsed, err := recordToFacility(row.Fields)
		if err != nil {
			result.ParseErrors = append(result.ParseErrors, RowError{Line: row.Line, ID: fieldAt(row.Fields, colID), Message: err.Error()})
			continue
		}

		now := s.now()
		if parsed.ID != "" {
			existing, err := s.repo.GetByID(ctx, parsed.ID)
			if err != nil {
				result.DBErrors = append(result.DBErrors, RowError{Line: row.Line, ID: parsed.ID, Message: dbErrorMessage(err)})
				continue
			}
			if err := applyRecord(existing, row.Fields); err != nil {
				result.ParseErrors = append(result.ParseErrors, RowError{Line: row.Line, ID: parsed.ID, Message: err.Error()})
				continue
			}
			existing.UpdatedAt = now
			if err := s.repo.Update(ctx, existing); err != nil {
				result.DBErrors = append(result.DBErrors, RowError{Line: row.Line, ID: parsed.ID, Message: dbErrorMessage(err)})
				continue
			}
			result.Updated++
			s.reindex(ctx, existing)
			continue
		}

		parsed.ID = uuid.NewString()
		parsed.CreatedBy = entities.FacilityCreatorAdmin
		parsed.CreatedAt = now
		parsed.UpdatedAt = now
		if err := s.repo.Create(ctx, parsed); err != nil {
			result.DBErrors = append(result.DBErrors, RowError{Line: row.Line, Message: dbErrorMessage(err)})
			continue
		}
		result.Inserted++
		s.reindex(ctx, parsed)
	}

	observability.RecordImportRows(ctx, s.metrics, "inserted", result.Inserted)
	observability.RecordImportRows(ctx, s.metrics, "updated", result.Updated)
	observability.RecordImportRows(ctx, s.metrics, "parse_error", len(result.ParseErrors))
	observability.RecordImportRows(ctx, s.metrics, "db_error", len(result.DBErrors))
	return result, nil
}

func dbErrorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return fmt.Sprint(err)
}

// reindex keeps the search index in step with an imported row. Failures are
// logged; the store write already succeeded.
func (s *FacilityCSVService) reindex(ctx context.Context, f *entities.Facility) {
	if s.searchRepo == nil {
		return
	}
	var err error
	if f.IsVerified {
		err = s.searchRepo.Index(ctx, f)
	} else {
		err = s.searchRepo.Delete(ctx, f.ID)
	}
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("facility_id", f.ID).Msg("failed to update search index after import")
	}
}
