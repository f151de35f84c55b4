package entitlement

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ragpdf/server/internal/module/billing"
	"github.com/ragpdf/server/internal/utils/metrics"
	"github.com/ragpdf/server/internal/utils/middleware"
)

// PlanResolver resolves the effective plan of an organization.
type PlanResolver interface {
	PlanFor(ctx context.Context, orgID uuid.UUID) (string, error)
}

// UsageSource supplies the usage snapshot a check runs against.
type UsageSource interface {
	Snapshot(ctx context.Context, orgID uuid.UUID) (Usage, error)
}

// Handler exposes entitlement checks over HTTP.
type Handler struct {
	gate    *Gate
	plans   PlanResolver
	usage   UsageSource
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new entitlement handler.
func NewHandler(gate *Gate, plans PlanResolver, usage UsageSource, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		gate:    gate,
		plans:   plans,
		usage:   usage,
		metrics: m,
		logger:  logger,
	}
}

// RegisterRoutes registers the entitlement routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	ent := r.Group("/entitlements")
	{
		ent.POST("/check", h.Check)
		ent.GET("/overage", h.Overage)
		ent.GET("/upgrade-recommendation", h.UpgradeRecommendation)
	}
}

// CheckRequest names a check and carries its arguments. Fields that a
// given check does not use are ignored.
type CheckRequest struct {
	Check           string `json:"check" binding:"required"`
	FileSizeMB      int64  `json:"file_size_mb"`
	RequestedTokens int64  `json:"requested_tokens"`
	CurrentThreads  int64  `json:"current_threads"`
	CurrentMessages int64  `json:"current_messages"`
	CurrentUploads  int    `json:"current_uploads"`
	DocumentAgeDays int64  `json:"document_age_days"`
}

// Check runs a named entitlement check against the organization's current
// plan and usage and returns the decision. A denial is a 200 with
// allowed=false: the check endpoint reports, it does not enforce.
func (h *Handler) Check(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	planID, err := h.plans.PlanFor(ctx, orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	usage, err := h.usage.Snapshot(ctx, orgID)
	if err != nil {
		h.logger.Error("failed to load usage snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	decision, err := h.runCheck(planID, usage, &req)
	if err != nil {
		if errors.Is(err, billing.ErrPlanNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_plan"})
			return
		}
		if errors.Is(err, errUnknownCheck) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	if h.metrics != nil {
		h.metrics.RecordEntitlementCheck(req.Check, planID, decision.Allowed)
	}
	if !decision.Allowed {
		h.logger.Info("entitlement check denied",
			zap.String("org_id", orgID.String()),
			zap.String("check", req.Check),
			zap.String("plan", planID),
			zap.String("reason", decision.Reason),
		)
	}

	c.JSON(http.StatusOK, decision)
}

var errUnknownCheck = errors.New("unknown check")

func (h *Handler) runCheck(planID string, usage Usage, req *CheckRequest) (Decision, error) {
	switch req.Check {
	case "document_upload":
		return h.gate.CheckDocumentUpload(planID, usage, req.FileSizeMB)
	case "user_creation":
		return h.gate.CheckUserCreation(planID, usage)
	case "token_usage":
		return h.gate.CheckTokenUsage(planID, usage, req.RequestedTokens)
	case "thread_creation":
		return h.gate.CheckThreadCreation(planID, req.CurrentThreads)
	case "message_creation":
		return h.gate.CheckMessageCreation(planID, req.CurrentMessages)
	case "concurrent_uploads":
		return h.gate.CheckConcurrentUploads(planID, req.CurrentUploads)
	case "retention":
		return h.gate.CheckRetention(planID, req.DocumentAgeDays)
	case "slack_integration":
		return h.gate.CheckSlackIntegration(planID)
	case "api_access":
		return h.gate.CheckAPIAccess(planID)
	case "priority_support":
		return h.gate.CheckPrioritySupport(planID)
	case "custom_branding":
		return h.gate.CheckCustomBranding(planID)
	default:
		return Decision{}, errUnknownCheck
	}
}

// Overage returns the charges accrued beyond the plan's included limits.
func (h *Handler) Overage(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	planID, err := h.plans.PlanFor(ctx, orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	usage, err := h.usage.Snapshot(ctx, orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	charges, err := h.gate.CalculateOverageCharges(planID, usage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, charges)
}

// UpgradeRecommendation returns the cheapest plan that fits current usage
// when any dimension is running hot.
func (h *Handler) UpgradeRecommendation(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	planID, err := h.plans.PlanFor(ctx, orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	usage, err := h.usage.Snapshot(ctx, orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	rec, err := h.gate.UpgradeRecommendations(planID, usage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	if h.metrics != nil && rec.RecommendedPlan != "" {
		h.metrics.RecordUpgradePrompt(planID, rec.RecommendedPlan)
	}

	c.JSON(http.StatusOK, rec)
}
