package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
)

type mockFacilityRepo struct {
	mock.Mock
}

func (m *mockFacilityRepo) Create(ctx context.Context, f *entities.Facility) error {
	return m.Called(ctx, f).Error(0)
}

func (m *mockFacilityRepo) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	args := m.Called(ctx, id)
	f, _ := args.Get(0).(*entities.Facility)
	return f, args.Error(1)
}

func (m *mockFacilityRepo) Update(ctx context.Context, f *entities.Facility) error {
	return m.Called(ctx, f).Error(0)
}

func (m *mockFacilityRepo) SoftDelete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockFacilityRepo) HardDelete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockFacilityRepo) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	args := m.Called(ctx, filter)
	fs, _ := args.Get(0).([]*entities.Facility)
	return fs, args.Error(1)
}

func (m *mockFacilityRepo) ListPage(ctx context.Context, offset, limit int) ([]*entities.Facility, error) {
	args := m.Called(ctx, offset, limit)
	fs, _ := args.Get(0).([]*entities.Facility)
	return fs, args.Error(1)
}

func (m *mockFacilityRepo) ListPlaceIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockFacilityRepo) Count(ctx context.Context, verifiedOnly bool) (int, error) {
	args := m.Called(ctx, verifiedOnly)
	return args.Int(0), args.Error(1)
}

func (m *mockFacilityRepo) CountByArea(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[string]int)
	return counts, args.Error(1)
}

type mockSearchRepo struct {
	mock.Mock
}

func (m *mockSearchRepo) Search(ctx context.Context, params repositories.SearchParams) ([]string, error) {
	args := m.Called(ctx, params)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockSearchRepo) Index(ctx context.Context, f *entities.Facility) error {
	return m.Called(ctx, f).Error(0)
}

func (m *mockSearchRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockRecommendationRepo struct {
	mock.Mock
}

func (m *mockRecommendationRepo) Create(ctx context.Context, rec *entities.Recommendation) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockRecommendationRepo) GetByID(ctx context.Context, id string) (*entities.Recommendation, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*entities.Recommendation)
	return rec, args.Error(1)
}

func (m *mockRecommendationRepo) Update(ctx context.Context, rec *entities.Recommendation) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockRecommendationRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRecommendationRepo) List(ctx context.Context, filter repositories.RecommendationFilter) ([]*entities.Recommendation, error) {
	args := m.Called(ctx, filter)
	recs, _ := args.Get(0).([]*entities.Recommendation)
	return recs, args.Error(1)
}

func (m *mockRecommendationRepo) Count(ctx context.Context, since *time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

func (m *mockRecommendationRepo) CountByCategory(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[string]int)
	return counts, args.Error(1)
}

type mockReactionRepo struct {
	mock.Mock
}

func (m *mockReactionRepo) Create(ctx context.Context, r *entities.Reaction) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockReactionRepo) Find(ctx context.Context, recommendationID string, reactionType entities.ReactionType, userIdentifier string) (*entities.Reaction, error) {
	args := m.Called(ctx, recommendationID, reactionType, userIdentifier)
	r, _ := args.Get(0).(*entities.Reaction)
	return r, args.Error(1)
}

func (m *mockReactionRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockReactionRepo) CountByRecommendation(ctx context.Context, recommendationID string, reactionType entities.ReactionType) (int, error) {
	args := m.Called(ctx, recommendationID, reactionType)
	return args.Int(0), args.Error(1)
}

func (m *mockReactionRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockFacilityRequestRepo struct {
	mock.Mock
}

func (m *mockFacilityRequestRepo) Create(ctx context.Context, req *entities.FacilityRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockFacilityRequestRepo) GetByID(ctx context.Context, id string) (*entities.FacilityRequest, error) {
	args := m.Called(ctx, id)
	req, _ := args.Get(0).(*entities.FacilityRequest)
	return req, args.Error(1)
}

func (m *mockFacilityRequestRepo) List(ctx context.Context, status entities.FacilityRequestStatus, limit, offset int) ([]*entities.FacilityRequest, error) {
	args := m.Called(ctx, status, limit, offset)
	reqs, _ := args.Get(0).([]*entities.FacilityRequest)
	return reqs, args.Error(1)
}

func (m *mockFacilityRequestRepo) Resolve(ctx context.Context, id string, status entities.FacilityRequestStatus, adminNote string) error {
	return m.Called(ctx, id, status, adminNote).Error(0)
}

func (m *mockFacilityRequestRepo) CountPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockAuditRepo struct {
	mock.Mock
}

func (m *mockAuditRepo) Append(ctx context.Context, entry *entities.AuditLog) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockAuditRepo) List(ctx context.Context, filter repositories.AuditLogFilter) ([]*entities.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]*entities.AuditLog)
	return logs, args.Error(1)
}

type mockPlaces struct {
	mock.Mock
}

func (m *mockPlaces) TextSearch(ctx context.Context, query string) ([]*providers.PlaceSummary, error) {
	args := m.Called(ctx, query)
	res, _ := args.Get(0).([]*providers.PlaceSummary)
	return res, args.Error(1)
}

func (m *mockPlaces) PlaceDetails(ctx context.Context, placeID string) (*providers.PlaceDetails, error) {
	args := m.Called(ctx, placeID)
	d, _ := args.Get(0).(*providers.PlaceDetails)
	return d, args.Error(1)
}

// recordingBus captures published events
type recordingBus struct {
	mu     sync.Mutex
	events map[string][]*entities.ChangeEvent
}

func newRecordingBus() *recordingBus {
	return &recordingBus{events: make(map[string][]*entities.ChangeEvent)}
}

func (b *recordingBus) Publish(_ context.Context, channel string, event *entities.ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[channel] = append(b.events[channel], event)
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan *entities.ChangeEvent, error) {
	return make(chan *entities.ChangeEvent), nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) on(channel string) []*entities.ChangeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[channel]
}

// memoryCache is an in-process CacheProvider
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
