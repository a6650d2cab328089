package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/api/middleware"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/application/services"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/repositories"
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/infrastructure/observability"
)

const maxImportSize = 10 << 20

// SessionManager logs the admin in and out
type SessionManager interface {
	Login(ctx context.Context, password string) (string, time.Time, error)
	Logout(ctx context.Context, token string) error
}

// FacilityCSV exports and imports the facility table
type FacilityCSV interface {
	Export(ctx context.Context, w io.Writer) (int, error)
	Import(ctx context.Context, r io.Reader) (*services.ImportResult, error)
}

// AuditTrail records and lists admin actions
type AuditTrail interface {
	Record(ctx context.Context, adminID string, action entities.AuditAction, targetType, targetID string, details interface{}) error
	List(ctx context.Context, filter repositories.AuditLogFilter) ([]*entities.AuditLog, error)
}

// Dashboard builds the admin overview
type Dashboard interface {
	Dashboard(ctx context.Context) (*entities.DashboardStats, error)
}

// AdminHandler handles the admin back office endpoints that are not tied to a single resource
type AdminHandler struct {
	sessions     SessionManager
	csv          FacilityCSV
	audit        AuditTrail
	stats        Dashboard
	secureCookie bool
	now          func() time.Time
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(sessions SessionManager, csv FacilityCSV, audit AuditTrail, stats Dashboard, secureCookie bool) *AdminHandler {
	return &AdminHandler{
		sessions:     sessions,
		csv:          csv,
		audit:        audit,
		stats:        stats,
		secureCookie: secureCookie,
		now:          time.Now,
	}
}

// LoginRequest is the admin login body
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// Login handles POST /api/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	token, expiresAt, err := h.sessions.Login(r.Context(), req.Password)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Warn().Str("client_ip", clientIP(r)).Msg("admin login rejected")
		respondWithAppError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AdminCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"expires_at": expiresAt,
	})
}

// Logout handles POST /api/admin/logout. It always clears the cookie.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), middleware.SessionToken(r)); err != nil {
		observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("failed to revoke admin session")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AdminCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// ExportFacilities handles GET /api/admin/facilities/export
func (h *AdminHandler) ExportFacilities(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	count, err := h.csv.Export(r.Context(), &buf)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	filename := "facilities-" + h.now().Format("20060102-150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())

	observability.LoggerFromContext(r.Context()).Info().Int("rows", count).Msg("facility export served")
}

// ImportFacilities handles POST /api/admin/facilities/import. The CSV may be
// sent as a multipart "file" field or as the raw request body.
func (h *AdminHandler) ImportFacilities(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "multipart field \"file\" is required")
			return
		}
		defer file.Close()
		src = file
	}

	result, err := h.csv.Import(r.Context(), src)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	_ = h.audit.Record(r.Context(), adminID(r), entities.AuditActionImport, entities.AuditTargetFacility, "", map[string]interface{}{
		"inserted":     result.Inserted,
		"updated":      result.Updated,
		"total":        result.Total,
		"parse_errors": len(result.ParseErrors),
		"db_errors":    len(result.DBErrors),
	})
	respondWithJSON(w, http.StatusOK, result)
}

// ListAuditLogs handles GET /api/admin/audit-logs
func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	logs, err := h.audit.List(r.Context(), repositories.AuditLogFilter{
		TargetType: r.URL.Query().Get("target_type"),
		TargetID:   r.URL.Query().Get("target_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

// GetStats handles GET /api/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Dashboard(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}
