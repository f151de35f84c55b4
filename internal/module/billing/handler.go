package billing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ragpdf/server/internal/utils/metrics"
	"github.com/ragpdf/server/internal/utils/middleware"
)

// Handler handles HTTP requests for billing.
type Handler struct {
	service ServiceInterface
	metrics *metrics.Metrics
}

// NewHandler creates a new billing handler.
func NewHandler(service ServiceInterface, m *metrics.Metrics) *Handler {
	return &Handler{service: service, metrics: m}
}

// RegisterRoutes registers the billing routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	billing := r.Group("/billing")
	{
		billing.GET("/plans", h.ListPlans)
		billing.GET("/subscription", h.GetSubscription)
		billing.POST("/checkout", h.CreateCheckout)
		billing.POST("/subscription/cancel", h.CancelSubscription)
	}
}

// ListPlans returns all catalog plans in display order.
func (h *Handler) ListPlans(c *gin.Context) {
	plans := h.service.ListPlans(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// GetSubscription returns the organization's subscription. Organizations
// without a subscription row are reported on the free plan.
func (h *Handler) GetSubscription(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sub, err := h.service.GetSubscription(c.Request.Context(), orgID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			plan, planErr := h.service.GetPlan(c.Request.Context(), PlanFree)
			if planErr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"subscription": nil, "plan": plan})
			return
		}
		handleBillingError(c, err)
		return
	}

	plan, err := h.service.GetPlan(c.Request.Context(), sub.PlanID)
	if err != nil {
		handleBillingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": sub, "plan": plan})
}

// CreateCheckout starts a Stripe checkout session for a paid plan.
func (h *Handler) CreateCheckout(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	email := c.GetString(middleware.EmailKey)
	url, err := h.service.CreateCheckout(c.Request.Context(), orgID, email, &req)
	if err != nil {
		handleBillingError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCheckout(req.PlanID)
	}

	c.JSON(http.StatusCreated, gin.H{"checkout_url": url})
}

// CancelSubscription cancels the organization's subscription.
func (h *Handler) CancelSubscription(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Default to cancel at period end
		req.Immediately = false
	}

	sub, err := h.service.CancelSubscription(c.Request.Context(), orgID, req.Immediately)
	if err != nil {
		handleBillingError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// --- Helpers ---

func handleBillingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "plan_not_found"})
	case errors.Is(err, ErrSubscriptionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription_not_found"})
	case errors.Is(err, ErrSubscriptionExists):
		c.JSON(http.StatusConflict, gin.H{"error": "subscription_exists"})
	case errors.Is(err, ErrSubscriptionCanceled):
		c.JSON(http.StatusBadRequest, gin.H{"error": "subscription_already_canceled"})
	case errors.Is(err, ErrMissingStripePrice):
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_not_purchasable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
