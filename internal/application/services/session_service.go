package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/providers"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/observability"
	apperrors "github.com/machikuchikomi/kuchikomi-cho/backend/pkg/errors"
)

// Session kinds carried in the token
const (
	SessionKindAdmin     = "admin"
	SessionKindEditGrant = "edit"
)

// AdminSubject is the subject of every admin session. There is a single shared admin account.
const AdminSubject = "admin"

// SessionClaims are the signed contents of a session cookie
type SessionClaims struct {
	jwt.RegisteredClaims
	Kind             string `json:"kind"`
	RecommendationID string `json:"rid,omitempty"`
}

// RevocationStore remembers logged-out token ids until they would have expired anyway
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// SessionService issues and verifies admin sessions and recommendation edit grants
type SessionService struct {
	secret       []byte
	passwordHash []byte
	adminTTL     time.Duration
	revocations  RevocationStore
	now          func() time.Time
}

// NewSessionService creates a session service. revocations may be nil, in
// which case logout only clears the cookie.
func NewSessionService(secret, adminPasswordHash string, adminTTL time.Duration, revocations RevocationStore) *SessionService {
	if adminTTL <= 0 {
		adminTTL = 12 * time.Hour
	}
	return &SessionService{
		secret:       []byte(secret),
		passwordHash: []byte(adminPasswordHash),
		adminTTL:     adminTTL,
		revocations:  revocations,
		now:          time.Now,
	}
}

// Login checks the admin password and issues a session token
func (s *SessionService) Login(ctx context.Context, password string) (string, time.Time, error) {
	if len(s.passwordHash) == 0 {
		return "", time.Time{}, apperrors.NewUnauthorizedError("admin login is not configured")
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		observability.LoggerFromContext(ctx).Warn().Msg("admin login failed")
		return "", time.Time{}, apperrors.NewUnauthorizedError("invalid password")
	}

	expiresAt := s.now().Add(s.adminTTL)
	token, err := s.sign(SessionKindAdmin, AdminSubject, "", expiresAt)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// IssueEditGrant signs a grant allowing the submitter to edit one recommendation until expiresAt
func (s *SessionService) IssueEditGrant(recommendationID string, expiresAt time.Time) (string, error) {
	return s.sign(SessionKindEditGrant, "", recommendationID, expiresAt)
}

// VerifyAdmin validates an admin session token
func (s *SessionService) VerifyAdmin(ctx context.Context, token string) (*SessionClaims, error) {
	claims, err := s.verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims.Kind != SessionKindAdmin {
		return nil, apperrors.NewUnauthorizedError("not an admin session")
	}
	return claims, nil
}

// VerifyEditGrant validates that token grants edits on recommendationID
func (s *SessionService) VerifyEditGrant(ctx context.Context, token, recommendationID string) error {
	claims, err := s.verify(ctx, token)
	if err != nil {
		return err
	}
	if claims.Kind != SessionKindEditGrant || claims.RecommendationID != recommendationID {
		return apperrors.NewForbiddenError("no edit grant for this recommendation")
	}
	return nil
}

// Logout revokes the token until its expiry. Invalid tokens are ignored.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if s.revocations == nil || token == "" {
		return nil
	}
	claims, err := s.parse(token)
	if err != nil {
		return nil
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (s *SessionService) sign(kind, subject, recommendationID string, expiresAt time.Time) (string, error) {
	now := s.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Kind:             kind,
		RecommendationID: recommendationID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", apperrors.NewInternalError("failed to sign session", err)
	}
	return signed, nil
}

func (s *SessionService) parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, apperrors.NewUnauthorizedError("invalid or expired session")
	}
	return claims, nil
}

func (s *SessionService) verify(ctx context.Context, token string) (*SessionClaims, error) {
	if token == "" {
		return nil, apperrors.NewUnauthorizedError("session required")
	}
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	if s.revocations != nil && claims.ID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			// fail open on a revocation lookup outage; the token is still signed and unexpired
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("revocation lookup failed")
		} else if revoked {
			return nil, apperrors.NewUnauthorizedError("session has been revoked")
		}
	}
	return claims, nil
}

// CacheRevocationStore keeps revoked token ids in the cache with a TTL matching the token expiry
type CacheRevocationStore struct {
	cache providers.CacheProvider
	now   func() time.Time
}

// NewCacheRevocationStore creates a revocation store on top of a cache
func NewCacheRevocationStore(cache providers.CacheProvider) *CacheRevocationStore {
	return &CacheRevocationStore{cache: cache, now: time.Now}
}

func revocationKey(jti string) string {
	return "session:revoked:" + jti
}

// Revoke marks jti revoked until the given time
func (r *CacheRevocationStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.cache.Set(ctx, revocationKey(jti), []byte("1"), ttl)
}

// IsRevoked reports whether jti was revoked
func (r *CacheRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return r.cache.Exists(ctx, revocationKey(jti))
}
