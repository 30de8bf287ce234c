package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Hycient195/academia-pro-access/middleware"
	"github.com/Hycient195/academia-pro-access/models"
	"github.com/Hycient195/academia-pro-access/repositories"
	"github.com/Hycient195/academia-pro-access/services/policy"
	"github.com/Hycient195/academia-pro-access/utils"
)

// PolicyListResponse wraps a policy listing with the unpaged total
type PolicyListResponse struct {
	Policies []*models.Policy `json:"policies"`
	Total    int              `json:"total"`
}

// PolicyHandler handles policy administration HTTP requests
type PolicyHandler struct {
	service *policy.Service
	logger  *zap.Logger
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(service *policy.Service, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{
		service: service,
		logger:  logger,
	}
}

// HandleListPolicies handles GET /api/v1/policies
func (h *PolicyHandler) HandleListPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	filter, err := parsePolicyFilter(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	policies, total, err := h.service.GetPolicies(ctx, filter)
	if err != nil {
		h.logger.Error("failed to list policies",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	if policies == nil {
		policies = []*models.Policy{}
	}

	_ = utils.WriteOK(w, PolicyListResponse{Policies: policies, Total: total})
}

// HandleGetPolicy handles GET /api/v1/policies/{id}
func (h *PolicyHandler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	p, err := h.service.GetPolicy(ctx, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, p)
}

// HandleCreatePolicy handles POST /api/v1/policies
func (h *PolicyHandler) HandleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var input policy.PolicyInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	p, err := h.service.CreatePolicy(ctx, input, h.actorID(ctx))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("policy created",
		zap.String("request_id", requestID),
		zap.String("policy_id", p.ID.String()),
		zap.String("type", string(p.Type)))

	_ = utils.WriteCreated(w, p)
}

// HandleUpdatePolicy handles PUT /api/v1/policies/{id}
func (h *PolicyHandler) HandleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var input policy.PolicyInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	p, err := h.service.UpdatePolicy(ctx, id, input, h.actorID(ctx))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("policy updated",
		zap.String("request_id", requestID),
		zap.String("policy_id", p.ID.String()),
		zap.Int("version", p.Version))

	_ = utils.WriteOK(w, p)
}

// HandlePublishPolicy handles POST /api/v1/policies/{id}/publish
func (h *PolicyHandler) HandlePublishPolicy(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.PublishPolicy)
}

// HandleArchivePolicy handles POST /api/v1/policies/{id}/archive
func (h *PolicyHandler) HandleArchivePolicy(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ArchivePolicy)
}

// HandleDeprecatePolicy handles POST /api/v1/policies/{id}/deprecate
func (h *PolicyHandler) HandleDeprecatePolicy(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.DeprecatePolicy)
}

// HandleDeletePolicy handles DELETE /api/v1/policies/{id}
func (h *PolicyHandler) HandleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePolicy(ctx, id, h.actorID(ctx)); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// HandleValidatePolicy handles POST /api/v1/policies/validate
func (h *PolicyHandler) HandleValidatePolicy(w http.ResponseWriter, r *http.Request) {
	var input policy.PolicyInput
	if err := utils.DecodeJSON(r, &input); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	result := h.service.ValidatePolicySyntax(input)
	_ = utils.WriteOK(w, result)
}

func (h *PolicyHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID, actorID string) (*models.Policy, error)) {
	ctx := r.Context()

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	p, err := fn(ctx, id, h.actorID(ctx))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, p)
}

func (h *PolicyHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid policy ID format", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *PolicyHandler) actorID(ctx context.Context) string {
	if principal := middleware.GetPrincipalFromContext(ctx); principal != nil {
		return principal.ID
	}
	return "anonymous"
}

// parsePolicyFilter extracts filter parameters from the query string
func parsePolicyFilter(r *http.Request) (repositories.PolicyFilter, error) {
	filter := repositories.PolicyFilter{}
	q := r.URL.Query()

	if v := q.Get("type"); v != "" {
		t := models.PolicyType(v)
		filter.Type = &t
	}
	if v := q.Get("status"); v != "" {
		s := models.PolicyStatus(v)
		filter.Status = &s
	}
	if v := q.Get("scope"); v != "" {
		s := models.PolicyScope(v)
		filter.Scope = &s
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

func errInvalidQueryParam(name string) error {
	return fmt.Errorf("invalid %s query parameter", name)
}
