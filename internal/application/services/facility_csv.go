package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/csvio"
)

// FacilityCSVHeader is the fixed column order of facility exports and backups
var FacilityCSVHeader = []string{
	"id", "name", "name_kana", "address", "area", "category", "lat", "lng",
	"place_id", "google_maps_url", "phone", "is_verified", "created_by", "created_at",
}

// minImportColumns is the fewest columns an import row may carry (id through category)
const minImportColumns = 6

const (
	colID = iota
	colName
	colNameKana
	colAddress
	colArea
	colCategory
	colLat
	colLng
	colPlaceID
	colMapsURL
	colPhone
	colIsVerified
	colCreatedBy
	colCreatedAt
)

// WriteFacilitiesCSV writes the header and one row per facility
func WriteFacilitiesCSV(w io.Writer, facilities []*entities.Facility) error {
	cw, err := csvio.NewWriter(w, true)
	if err != nil {
		return err
	}
	if err := cw.Write(FacilityCSVHeader); err != nil {
		return err
	}
	for _, f := range facilities {
		if err := cw.Write(facilityToRecord(f)); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// WriteBackupFile writes facilities to <dir>/<prefix>-YYYYMMDD-HHMMSS.csv and
// returns the path. An existing file is never overwritten.
func WriteBackupFile(dir, prefix string, now time.Time, facilities []*entities.Facility) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s.csv", prefix, now.Format("20060102-150405")))
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating backup file: %w", err)
	}

	if err := WriteFacilitiesCSV(file, facilities); err != nil {
		file.Close()
		return "", fmt.Errorf("writing backup %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return "", fmt.Errorf("syncing backup %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("closing backup %s: %w", path, err)
	}
	return path, nil
}

func facilityToRecord(f *entities.Facility) []string {
	lat, lng := "", ""
	if la, ln, ok := f.Coordinates(); ok {
		lat = strconv.FormatFloat(la, 'f', -1, 64)
		lng = strconv.FormatFloat(ln, 'f', -1, 64)
	}
	return []string{
		f.ID,
		f.Name,
		f.NameKana,
		f.Address,
		f.Area,
		f.Category,
		lat,
		lng,
		f.PlaceID,
		f.GoogleMapsURL,
		f.Phone,
		strconv.FormatBool(f.IsVerified),
		string(f.CreatedBy),
		f.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// recordToFacility parses a row into a new facility. The returned facility
// carries the row's id, which is empty for rows to be inserted.
func recordToFacility(fields []string) (*entities.Facility, error) {
	f := &entities.Facility{IsVerified: true}
	if err := applyRecord(f, fields); err != nil {
		return nil, err
	}
	f.ID = strings.TrimSpace(fields[colID])
	if createdBy := fieldAt(fields, colCreatedBy); strings.TrimSpace(createdBy) != "" {
		f.CreatedBy = entities.FacilityCreator(strings.TrimSpace(createdBy))
	} else {
		f.CreatedBy = entities.FacilityCreatorAdmin
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// applyRecord overwrites f with the columns the row actually carries. Columns
// past the end of a short row leave f untouched; lat and lng are one unit and
// an empty pair clears the position. An empty is_verified keeps the current
// value. id, created_by and created_at are never taken from the row here.
func applyRecord(f *entities.Facility, fields []string) error {
	if len(fields) < minImportColumns {
		return fmt.Errorf("expected at least %d columns, got %d", minImportColumns, len(fields))
	}
	has := func(i int) bool { return i < len(fields) }
	get := func(i int) string { return strings.TrimSpace(fieldAt(fields, i)) }

	f.Name = get(colName)
	f.NameKana = get(colNameKana)
	f.Address = get(colAddress)
	f.Area = get(colArea)
	f.Category = get(colCategory)

	if has(colLat) {
		latRaw, lngRaw := get(colLat), get(colLng)
		if latRaw == "" && lngRaw == "" {
			f.Latitude, f.Longitude = nil, nil
		} else {
			lat, err := strconv.ParseFloat(latRaw, 64)
			if err != nil {
				return fmt.Errorf("invalid lat %q", latRaw)
			}
			lng, err := strconv.ParseFloat(lngRaw, 64)
			if err != nil {
				return fmt.Errorf("invalid lng %q", lngRaw)
			}
			f.SetCoordinates(lat, lng)
		}
	}
	if has(colPlaceID) {
		f.PlaceID = get(colPlaceID)
	}
	if has(colMapsURL) {
		f.GoogleMapsURL = get(colMapsURL)
	}
	if has(colPhone) {
		f.Phone = get(colPhone)
	}
	if raw := get(colIsVerified); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid is_verified %q", raw)
		}
		f.IsVerified = v
	}
	return f.Validate()
}

func fieldAt(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}
