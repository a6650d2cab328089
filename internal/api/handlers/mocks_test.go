package handlers_test

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/api/middleware"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/services"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
)

const adminToken = "admin-token"

// stubVerifier accepts adminToken and nothing else
type stubVerifier struct{}

func (stubVerifier) VerifyAdmin(ctx context.Context, token string) (*services.SessionClaims, error) {
	if token != adminToken {
		return nil, apperrors.NewUnauthorizedError("invalid session")
	}
	claims := &services.SessionClaims{Kind: services.SessionKindAdmin}
	claims.Subject = services.AdminSubject
	return claims, nil
}

// asAdmin runs h behind OptionalAdmin so admin claims reach the handler
func asAdmin(h http.HandlerFunc) http.Handler {
	return middleware.OptionalAdmin(stubVerifier{})(h)
}

func withAdminCookie(r *http.Request) *http.Request {
	r.AddCookie(&http.Cookie{Name: middleware.AdminCookieName, Value: adminToken})
	return r
}

type MockFacilityService struct {
	mock.Mock
}

func (m *MockFacilityService) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Facility), args.Error(1)
}

func (m *MockFacilityService) GetPublic(ctx context.Context, id string) (*entities.Facility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Facility), args.Error(1)
}

func (m *MockFacilityService) List(ctx context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Facility), args.Error(1)
}

func (m *MockFacilityService) Search(ctx context.Context, params repositories.SearchParams) ([]*entities.Facility, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Facility), args.Error(1)
}

func (m *MockFacilityService) Update(ctx context.Context, adminID string, facility *entities.Facility) error {
	return m.Called(ctx, adminID, facility).Error(0)
}

func (m *MockFacilityService) SoftDelete(ctx context.Context, adminID, id string) error {
	return m.Called(ctx, adminID, id).Error(0)
}

type MockRecommendationService struct {
	mock.Mock
}

func (m *MockRecommendationService) Create(ctx context.Context, in services.CreateRecommendationInput) (*entities.Recommendation, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Recommendation), args.Error(1)
}

func (m *MockRecommendationService) List(ctx context.Context, filter repositories.RecommendationFilter) ([]*entities.Recommendation, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Recommendation), args.Error(1)
}

func (m *MockRecommendationService) Update(ctx context.Context, adminID, id string, in services.UpdateRecommendationInput) (*entities.Recommendation, error) {
	args := m.Called(ctx, adminID, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Recommendation), args.Error(1)
}

func (m *MockRecommendationService) Delete(ctx context.Context, adminID, id string) error {
	return m.Called(ctx, adminID, id).Error(0)
}

type MockEditGrants struct {
	mock.Mock
}

func (m *MockEditGrants) IssueEditGrant(recommendationID string, expiresAt time.Time) (string, error) {
	args := m.Called(recommendationID, expiresAt)
	return args.String(0), args.Error(1)
}

func (m *MockEditGrants) VerifyEditGrant(ctx context.Context, token, recommendationID string) error {
	return m.Called(ctx, token, recommendationID).Error(0)
}

type MockReactionService struct {
	mock.Mock
}

func (m *MockReactionService) Add(ctx context.Context, recommendationID string, reactionType entities.ReactionType, userIdentifier string) (*entities.Reaction, bool, error) {
	args := m.Called(ctx, recommendationID, reactionType, userIdentifier)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*entities.Reaction), args.Bool(1), args.Error(2)
}

func (m *MockReactionService) Remove(ctx context.Context, recommendationID string, reactionType entities.ReactionType, userIdentifier string) error {
	return m.Called(ctx, recommendationID, reactionType, userIdentifier).Error(0)
}

func (m *MockReactionService) Summary(ctx context.Context, recommendationID string, reactionType entities.ReactionType, userIdentifier string) (*entities.ReactionSummary, error) {
	args := m.Called(ctx, recommendationID, reactionType, userIdentifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReactionSummary), args.Error(1)
}

type MockFacilityRequestService struct {
	mock.Mock
}

func (m *MockFacilityRequestService) Create(ctx context.Context, in services.CreateFacilityRequestInput) (*entities.FacilityRequest, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.FacilityRequest), args.Error(1)
}

func (m *MockFacilityRequestService) List(ctx context.Context, status entities.FacilityRequestStatus, limit, offset int) ([]*entities.FacilityRequest, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.FacilityRequest), args.Error(1)
}

func (m *MockFacilityRequestService) Approve(ctx context.Context, adminID, id, adminNote string) (*entities.Facility, error) {
	args := m.Called(ctx, adminID, id, adminNote)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Facility), args.Error(1)
}

func (m *MockFacilityRequestService) Reject(ctx context.Context, adminID, id, adminNote string) error {
	return m.Called(ctx, adminID, id, adminNote).Error(0)
}

type MockSessionManager struct {
	mock.Mock
}

func (m *MockSessionManager) Login(ctx context.Context, password string) (string, time.Time, error) {
	args := m.Called(ctx, password)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockSessionManager) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type MockFacilityCSV struct {
	mock.Mock
}

func (m *MockFacilityCSV) Export(ctx context.Context, w io.Writer) (int, error) {
	args := m.Called(ctx, w)
	if body, ok := args.Get(0).(string); ok {
		_, _ = io.WriteString(w, body)
	}
	return args.Int(1), args.Error(2)
}

func (m *MockFacilityCSV) Import(ctx context.Context, r io.Reader) (*services.ImportResult, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(ctx, string(body))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ImportResult), args.Error(1)
}

type MockAuditTrail struct {
	mock.Mock
}

func (m *MockAuditTrail) Record(ctx context.Context, adminID string, action entities.AuditAction, targetType, targetID string, details interface{}) error {
	return m.Called(ctx, adminID, action, targetType, targetID, details).Error(0)
}

func (m *MockAuditTrail) List(ctx context.Context, filter repositories.AuditLogFilter) ([]*entities.AuditLog, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AuditLog), args.Error(1)
}

type MockDashboard struct {
	mock.Mock
}

func (m *MockDashboard) Dashboard(ctx context.Context) (*entities.DashboardStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DashboardStats), args.Error(1)
}

// MockEventBus fans published events out to in-memory subscribers
type MockEventBus struct {
	mu          sync.Mutex
	subscribers map[string][]chan *entities.ChangeEvent
	subscribed  chan string
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{
		subscribers: make(map[string][]chan *entities.ChangeEvent),
		subscribed:  make(chan string, 10),
	}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.ChangeEvent) error {
	m.mu.Lock()
	channels := append([]chan *entities.ChangeEvent(nil), m.subscribers[channel]...)
	m.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.ChangeEvent, error) {
	m.mu.Lock()
	ch := make(chan *entities.ChangeEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	m.mu.Unlock()
	m.subscribed <- channel
	return ch, nil
}

func (m *MockEventBus) Close() error {
	return nil
}
