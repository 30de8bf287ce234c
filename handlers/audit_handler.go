package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Hycient195/academia-pro-access/models"
	"github.com/Hycient195/academia-pro-access/repositories"
	"github.com/Hycient195/academia-pro-access/services"
	"github.com/Hycient195/academia-pro-access/utils"
)

// AuditHandler handles audit trail HTTP requests
type AuditHandler struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(repo repositories.AuditRepository, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		repo:   repo,
		logger: logger,
	}
}

// HandleListRecords handles GET /api/v1/audit/records
func (h *AuditHandler) HandleListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseAuditFilter(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	records, err := h.repo.List(ctx, filter)
	if err != nil {
		h.logger.Error("failed to list audit records", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to retrieve audit records")
		return
	}

	if records == nil {
		records = []*models.AuditRecord{}
	}

	_ = utils.WriteOK(w, records)
}

// HandleGetRecord handles GET /api/v1/audit/records/{id}
func (h *AuditHandler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid audit record ID format", nil)
		return
	}

	record, err := h.repo.GetByID(ctx, id)
	if err != nil {
		if services.IsNotFoundError(err) {
			_ = utils.WriteNotFound(w, "Audit record not found")
			return
		}
		h.logger.Error("failed to get audit record",
			zap.Error(err),
			zap.String("record_id", id.String()))
		_ = utils.WriteInternalServerError(w, "Failed to retrieve audit record")
		return
	}

	_ = utils.WriteOK(w, record)
}

// parseAuditFilter extracts filter parameters from the query string
func parseAuditFilter(r *http.Request) (repositories.AuditFilter, error) {
	filter := repositories.AuditFilter{}
	q := r.URL.Query()

	if v := q.Get("event_kind"); v != "" {
		kind := models.AuditEventKind(v)
		filter.EventKind = &kind
	}
	if v := q.Get("principal_id"); v != "" {
		filter.PrincipalID = &v
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errInvalidQueryParam("since")
		}
		filter.Since = &since
	}
	if v := q.Get("until"); v != "" {
		until, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errInvalidQueryParam("until")
		}
		filter.Until = &until
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return filter, errInvalidQueryParam("limit")
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filter, errInvalidQueryParam("offset")
		}
		filter.Offset = offset
	}

	return filter, nil
}
