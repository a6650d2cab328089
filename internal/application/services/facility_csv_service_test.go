package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/csvio"
)

func sampleFacility() *entities.Facility {
	f := &entities.Facility{
		ID:         "f-1",
		Name:       `喫茶 "まつ"`,
		NameKana:   "きっさまつ",
		Address:    "岐阜県下呂市湯之島1-2, 3F",
		Area:       "下呂",
		Category:   "カフェ",
		Phone:      "0576-00-0000",
		IsVerified: true,
		CreatedBy:  entities.FacilityCreatorAPI,
		CreatedAt:  time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}
	f.SetCoordinates(35.8053721, 137.2441123)
	return f
}

func TestFacilityCSV_ExportImportRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFacilitiesCSV(&buf, []*entities.Facility{sampleFacility()}))

	assert.True(t, strings.HasPrefix(buf.String(), csvio.BOM+`"id","name",`))

	rows, err := csvio.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, FacilityCSVHeader, rows[0].Fields)

	got, err := recordToFacility(rows[1].Fields)
	require.NoError(t, err)
	want := sampleFacility()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Address, got.Address)
	assert.Equal(t, *want.Latitude, *got.Latitude)
	assert.Equal(t, *want.Longitude, *got.Longitude)
	assert.Equal(t, want.CreatedBy, got.CreatedBy)
	assert.True(t, got.IsVerified)
}

func TestRecordToFacility_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		msg    string
	}{
		{"too few columns", []string{"", "name", "", "addr", "area"}, "at least 6 columns"},
		{"blank name", []string{"", " ", "", "addr", "area", "cat"}, "name"},
		{"blank category", []string{"", "n", "", "addr", "area", ""}, "category"},
		{"bad lat", []string{"", "n", "", "addr", "area", "cat", "north", "137"}, "invalid lat"},
		{"lat without lng", []string{"", "n", "", "addr", "area", "cat", "35.1", ""}, "invalid lng"},
		{"bad is_verified", []string{"", "n", "", "", "a", "c", "", "", "", "", "", "maybe"}, "is_verified"},
		{"nan coordinates", []string{"", "n", "", "addr", "area", "cat", "NaN", "NaN"}, "finite"},
		{"infinite lng", []string{"", "n", "", "addr", "area", "cat", "35.1", "+Inf"}, "finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := recordToFacility(tt.fields)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRecordToFacility_Defaults(t *testing.T) {
	f, err := recordToFacility([]string{"", "食堂", "", "", "萩原", "飲食店"})
	require.NoError(t, err)
	assert.True(t, f.IsVerified)
	assert.Equal(t, entities.FacilityCreatorAdmin, f.CreatedBy)
	assert.Nil(t, f.Latitude)
}

func TestWriteBackupFile_RefusesOverwrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "backups")
	now := time.Date(2024, 6, 2, 3, 4, 5, 0, time.UTC)

	path, err := WriteBackupFile(dir, "facilities-backup", now, []*entities.Facility{sampleFacility()})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "facilities-backup-20240602-030405.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"f-1"`)

	_, err = WriteBackupFile(dir, "facilities-backup", now, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrExist))

	data2, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, data2)
}

func TestFacilityCSVService_Export(t *testing.T) {
	repo := new(mockFacilityRepo)
	repo.On("ListPage", mock.Anything, 0, 1).Return([]*entities.Facility{sampleFacility()}, nil).Once()
	second := sampleFacility()
	second.ID = "f-2"
	second.Latitude, second.Longitude = nil, nil
	repo.On("ListPage", mock.Anything, 1, 1).Return([]*entities.Facility{second}, nil).Once()
	repo.On("ListPage", mock.Anything, 2, 1).Return([]*entities.Facility{}, nil).Once()

	var buf bytes.Buffer
	n, err := NewFacilityCSVService(repo, nil, 1, nil).Export(context.Background(), &buf)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], `"f-2"`)
	assert.Contains(t, lines[2], `"","",`)
}

func TestFacilityCSVService_Import(t *testing.T) {
	repo := new(mockFacilityRepo)
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	input := strings.Join([]string{
		`"id","name","name_kana","address","area","category","lat","lng"`,
		`"f-1","喫茶まつ","","湯之島1","下呂","カフェ","35.8","137.2"`,
		`"","新しい店","","","萩原","飲食店","",""`,
		`"","","","","萩原","飲食店"`,
		`"","short"`,
		`"f-missing","消えた店","","","小坂","観光"`,
		`"","壊れる店","","","金山","観光"`,
	}, "\n")

	repo.On("GetByID", mock.Anything, "f-1").Return(sampleFacility(), nil).Once()
	repo.On("GetByID", mock.Anything, "f-missing").
		Return(nil, apperrors.NewNotFoundError("facility with id f-missing not found")).Once()
	repo.On("Update", mock.Anything, mock.MatchedBy(func(f *entities.Facility) bool { return f.ID == "f-1" })).Return(nil).Once()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(f *entities.Facility) bool { return f.Name == "新しい店" })).Return(nil).Once()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(f *entities.Facility) bool { return f.Name == "壊れる店" })).
		Return(errors.New("db down")).Once()

	svc := NewFacilityCSVService(repo, nil, 0, nil)
	svc.now = fixedClock(now)
	result, err := svc.Import(context.Background(), strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, 6, result.Total)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Inserted)
	require.Len(t, result.ParseErrors, 2)
	assert.Equal(t, 4, result.ParseErrors[0].Line)
	assert.Equal(t, 5, result.ParseErrors[1].Line)
	require.Len(t, result.DBErrors, 2)
	assert.Equal(t, "f-missing", result.DBErrors[0].ID)
	assert.Equal(t, "facility with id f-missing not found", result.DBErrors[0].Message)
	assert.Equal(t, 7, result.DBErrors[1].Line)

	for _, call := range repo.Calls {
		if call.Method != "Create" {
			continue
		}
		f := call.Arguments.Get(1).(*entities.Facility)
		assert.NotEmpty(t, f.ID)
		assert.Equal(t, entities.FacilityCreatorAdmin, f.CreatedBy)
		assert.Equal(t, now, f.CreatedAt)
	}
	repo.AssertExpectations(t)
}

func TestFacilityCSVService_Import_ShortUpdateRowKeepsStoredColumns(t *testing.T) {
	repo := new(mockFacilityRepo)
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	stored := sampleFacility()
	stored.IsVerified = false
	stored.PlaceID = "ChIJ-stored"
	stored.GoogleMapsURL = "https://maps.google.com/?cid=1"
	repo.On("GetByID", mock.Anything, "f-1").Return(stored, nil).Once()
	repo.On("Update", mock.Anything, mock.Anything).Return(nil).Once()

	input := strings.Join([]string{
		`"id","name","name_kana","address","area","category"`,
		`"f-1","喫茶まつ 本店","きっさまつ","湯之島1","下呂","カフェ"`,
	}, "\n")

	svc := NewFacilityCSVService(repo, nil, 0, nil)
	svc.now = fixedClock(now)
	result, err := svc.Import(context.Background(), strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	require.Empty(t, result.ParseErrors)

	updated := repo.Calls[1].Arguments.Get(1).(*entities.Facility)
	assert.Equal(t, "喫茶まつ 本店", updated.Name)
	assert.Equal(t, "湯之島1", updated.Address)
	require.NotNil(t, updated.Latitude)
	assert.Equal(t, 35.8053721, *updated.Latitude)
	assert.Equal(t, 137.2441123, *updated.Longitude)
	assert.Equal(t, "ChIJ-stored", updated.PlaceID)
	assert.Equal(t, "https://maps.google.com/?cid=1", updated.GoogleMapsURL)
	assert.Equal(t, "0576-00-0000", updated.Phone)
	assert.False(t, updated.IsVerified, "a short row must not restore a soft-deleted facility")
	assert.Equal(t, entities.FacilityCreatorAPI, updated.CreatedBy)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC), updated.CreatedAt)
	assert.Equal(t, now, updated.UpdatedAt)
	repo.AssertExpectations(t)
}

func TestFacilityCSVService_Import_PresentEmptyColumnsClear(t *testing.T) {
	repo := new(mockFacilityRepo)
	repo.On("GetByID", mock.Anything, "f-1").Return(sampleFacility(), nil).Once()
	repo.On("Update", mock.Anything, mock.Anything).Return(nil).Once()

	input := strings.Join([]string{
		strings.Join(FacilityCSVHeader[:11], ","),
		`"f-1","喫茶まつ","","湯之島1","下呂","カフェ","","","","",""`,
	}, "\n")

	result, err := NewFacilityCSVService(repo, nil, 0, nil).Import(context.Background(), strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	updated := repo.Calls[1].Arguments.Get(1).(*entities.Facility)
	assert.Nil(t, updated.Latitude)
	assert.Nil(t, updated.Longitude)
	assert.Empty(t, updated.NameKana)
	assert.Empty(t, updated.Phone)
	assert.True(t, updated.IsVerified)
}

func TestFacilityCSVService_Import_UpdatesSearchIndex(t *testing.T) {
	repo := new(mockFacilityRepo)
	search := new(mockSearchRepo)

	repo.On("GetByID", mock.Anything, "f-1").Return(sampleFacility(), nil).Once()
	repo.On("Update", mock.Anything, mock.Anything).Return(nil).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Twice()

	search.On("Index", mock.Anything, mock.MatchedBy(func(f *entities.Facility) bool { return f.ID == "f-1" })).Return(nil).Once()
	search.On("Index", mock.Anything, mock.MatchedBy(func(f *entities.Facility) bool { return f.Name == "新しい店" })).
		Return(errors.New("typesense unavailable")).Once()
	search.On("Delete", mock.Anything, mock.AnythingOfType("string")).Return(nil).Once()

	input := strings.Join([]string{
		strings.Join(FacilityCSVHeader[:12], ","),
		`"f-1","喫茶まつ","","湯之島1","下呂","カフェ","","","","","","true"`,
		`"","新しい店","","","萩原","飲食店","","","","","",""`,
		`"","閉店した店","","","小坂","観光","","","","","","false"`,
	}, "\n")

	result, err := NewFacilityCSVService(repo, search, 0, nil).Import(context.Background(), strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 2, result.Inserted)
	assert.Empty(t, result.DBErrors, "index failures do not undo a committed row")
	search.AssertExpectations(t)
	search.AssertNotCalled(t, "Delete", mock.Anything, "f-1")
}

func TestFacilityCSVService_Import_SkipsIndexForRejectedRows(t *testing.T) {
	repo := new(mockFacilityRepo)
	search := new(mockSearchRepo)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	input := strings.Join([]string{
		`"id","name","name_kana","address","area","category"`,
		`"","壊れる店","","","金山","観光"`,
		`"","","","","金山","観光"`,
	}, "\n")

	result, err := NewFacilityCSVService(repo, search, 0, nil).Import(context.Background(), strings.NewReader(input))

	require.NoError(t, err)
	assert.Len(t, result.DBErrors, 1)
	assert.Len(t, result.ParseErrors, 1)
	search.AssertNotCalled(t, "Index", mock.Anything, mock.Anything)
	search.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestFacilityCSVService_ExportThenImportChangesNothing(t *testing.T) {
	repo := new(mockFacilityRepo)
	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)

	second := func() *entities.Facility {
		f := sampleFacility()
		f.ID = "f-2"
		f.Name = "湯の宿, 別館"
		f.Latitude, f.Longitude = nil, nil
		f.IsVerified = false
		f.CreatedBy = entities.FacilityCreatorUser
		return f
	}

	repo.On("ListPage", mock.Anything, 0, 10).Return([]*entities.Facility{sampleFacility(), second()}, nil).Once()
	repo.On("GetByID", mock.Anything, "f-1").Return(sampleFacility(), nil).Once()
	repo.On("GetByID", mock.Anything, "f-2").Return(second(), nil).Once()
	repo.On("Update", mock.Anything, mock.Anything).Return(nil).Twice()

	svc := NewFacilityCSVService(repo, nil, 10, nil)
	svc.now = fixedClock(now)

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(), &buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	result, err := svc.Import(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 2, result.Updated)
	assert.Empty(t, result.ParseErrors)
	assert.Empty(t, result.DBErrors)

	wants := map[string]*entities.Facility{"f-1": sampleFacility(), "f-2": second()}
	for _, call := range repo.Calls {
		if call.Method != "Update" {
			continue
		}
		got := call.Arguments.Get(1).(*entities.Facility)
		want := wants[got.ID]
		require.NotNil(t, want)
		want.UpdatedAt = now
		assert.Equal(t, want, got)
	}
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestFacilityCSVService_Import_UnreadableInput(t *testing.T) {
	repo := new(mockFacilityRepo)
	_, err := NewFacilityCSVService(repo, nil, 0, nil).Import(context.Background(), iotest.ErrReader(errors.New("stream reset")))

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestFacilityCSVService_Import_HeaderOnly(t *testing.T) {
	repo := new(mockFacilityRepo)
	result, err := NewFacilityCSVService(repo, nil, 0, nil).Import(context.Background(), strings.NewReader(strings.Join(FacilityCSVHeader, ",")+"\n"))

	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
	assert.Empty(t, result.ParseErrors)
}
