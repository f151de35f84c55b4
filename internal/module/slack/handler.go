package slack

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ragpdf/server/internal/module/billing/entitlement"
	"github.com/ragpdf/server/internal/utils/middleware"
)

// Handler handles HTTP requests for the Slack integration.
type Handler struct {
	service *Service
}

// NewHandler creates a new Slack handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the authenticated Slack routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	slack := r.Group("/slack")
	{
		slack.POST("/install", h.BeginInstall)
		slack.GET("/installation", h.GetInstallation)
		slack.DELETE("/installation", h.Uninstall)
		slack.POST("/notify", h.Notify)
	}
}

// RegisterCallbackRoute registers the OAuth callback, which Slack calls
// without our auth header.
func (h *Handler) RegisterCallbackRoute(r *gin.RouterGroup) {
	r.GET("/slack/oauth/callback", h.OAuthCallback)
}

// BeginInstall starts the Slack install flow.
func (h *Handler) BeginInstall(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	url, err := h.service.BeginInstall(c.Request.Context(), orgID, middleware.GetUserID(c))
	if err != nil {
		handleSlackError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"authorize_url": url})
}

// OAuthCallback completes the install flow.
func (h *Handler) OAuthCallback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing state or code"})
		return
	}

	inst, err := h.service.CompleteInstall(c.Request.Context(), state, code)
	if err != nil {
		handleSlackError(c, err)
		return
	}

	c.JSON(http.StatusOK, inst)
}

// GetInstallation returns the organization's installation.
func (h *Handler) GetInstallation(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	inst, err := h.service.GetInstallation(c.Request.Context(), orgID)
	if err != nil {
		handleSlackError(c, err)
		return
	}

	c.JSON(http.StatusOK, inst)
}

// Uninstall disconnects the workspace.
func (h *Handler) Uninstall(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.service.Uninstall(c.Request.Context(), orgID); err != nil {
		handleSlackError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Notify posts a message to the connected workspace.
func (h *Handler) Notify(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Notify(c.Request.Context(), orgID, &req); err != nil {
		handleSlackError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"delivered": true})
}

func handleSlackError(c *gin.Context, err error) {
	if denied, ok := entitlement.AsDenied(err); ok {
		c.JSON(http.StatusForbidden, gin.H{
			"error":            "plan_limit_exceeded",
			"reason":           denied.Reason,
			"upgrade_required": denied.UpgradeRequired,
		})
		return
	}

	switch {
	case errors.Is(err, ErrNotInstalled):
		c.JSON(http.StatusNotFound, gin.H{"error": "slack_not_installed"})
	case errors.Is(err, ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_oauth_state"})
	case errors.Is(err, ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "slack_unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
