package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Hycient195/academia-pro-access/middleware"
	"github.com/Hycient195/academia-pro-access/models"
	"github.com/Hycient195/academia-pro-access/services/policy"
	"github.com/Hycient195/academia-pro-access/utils"
)

// EvaluateAccessRequest is the payload for an access decision. The caller
// names the action and resource; user identity comes from the authenticated
// principal. A school-admin may supply an explicit user block to evaluate
// on behalf of another identity; anyone else gets a 403.
type EvaluateAccessRequest struct {
	Action   string                 `json:"action" validate:"required"`
	Resource models.ResourceContext `json:"resource" validate:"required"`
	User     *models.UserContext    `json:"user,omitempty"`
	Request  *models.RequestContext `json:"request,omitempty"`
}

// EvaluationHandler handles access decision HTTP requests
type EvaluationHandler struct {
	aggregator *policy.DecisionAggregator
	logger     *zap.Logger
}

// NewEvaluationHandler creates a new EvaluationHandler
func NewEvaluationHandler(aggregator *policy.DecisionAggregator, logger *zap.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		aggregator: aggregator,
		logger:     logger,
	}
}

// HandleEvaluateAccess handles POST /api/v1/access/evaluate
func (h *EvaluationHandler) HandleEvaluateAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req EvaluateAccessRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	// A body-supplied user is an on-behalf-of evaluation. Without this
	// gate any caller could probe decisions as another user or tenant.
	if req.User != nil {
		principal := middleware.GetPrincipalFromContext(ctx)
		if principal == nil || !principal.HasRole("school-admin") {
			h.logger.Warn("rejected on-behalf-of evaluation",
				zap.String("request_id", requestID),
				zap.String("target_user_id", req.User.ID))
			_ = utils.WriteForbidden(w, "Evaluating access on behalf of another user requires the school-admin role")
			return
		}
	}

	ec := h.buildContext(r, &req)

	result := h.aggregator.EvaluateAccess(ctx, ec)

	h.logger.Info("access evaluated",
		zap.String("request_id", requestID),
		zap.String("user_id", ec.User.ID),
		zap.String("action", ec.Action),
		zap.String("resource_type", ec.Resource.Type),
		zap.Bool("allowed", result.Allowed))

	_ = utils.WriteOK(w, result)
}

// buildContext assembles the evaluation context from the request payload and
// the transport-level environment
func (h *EvaluationHandler) buildContext(r *http.Request, req *EvaluateAccessRequest) *models.EvaluationContext {
	ec := &models.EvaluationContext{
		Action:   req.Action,
		Resource: req.Resource,
		Request:  req.Request,
		Environment: models.EnvironmentContext{
			SourceAddress: r.RemoteAddr,
			Agent:         r.UserAgent(),
			Timestamp:     time.Now(),
		},
	}

	if req.User != nil {
		ec.User = *req.User
	} else if principal := middleware.GetPrincipalFromContext(r.Context()); principal != nil {
		ec.User = models.UserContext{
			ID:             principal.ID,
			Roles:          principal.Roles,
			OrganizationID: principal.OrganizationID,
		}
	}

	return ec
}
