package org

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ragpdf/server/internal/module/billing/entitlement"
	"github.com/ragpdf/server/internal/utils/middleware"
)

// Handler handles HTTP requests for organizations.
type Handler struct {
	service *Service
}

// NewHandler creates a new organization handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the organization routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	orgs := r.Group("/orgs")
	{
		orgs.POST("", h.Create)
		orgs.GET("/current", h.GetCurrent)
		orgs.GET("/members", h.ListMembers)
		orgs.POST("/members", h.AddMember)
		orgs.DELETE("/members/:user_id", h.RemoveMember)
	}
}

// Create creates an organization owned by the caller.
func (h *Handler) Create(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := h.service.Create(c.Request.Context(), userID, c.GetString(middleware.EmailKey), &req)
	if err != nil {
		handleOrgError(c, err)
		return
	}

	c.JSON(http.StatusCreated, o)
}

// GetCurrent returns the caller's organization.
func (h *Handler) GetCurrent(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	o, err := h.service.Get(c.Request.Context(), orgID)
	if err != nil {
		handleOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, o)
}

// ListMembers lists the organization's members.
func (h *Handler) ListMembers(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	members, err := h.service.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		handleOrgError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// AddMember adds a member, subject to the plan's seat limit.
func (h *Handler) AddMember(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.service.AddMember(c.Request.Context(), orgID, &req)
	if err != nil {
		handleOrgError(c, err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

// RemoveMember removes a member from the organization.
func (h *Handler) RemoveMember(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.service.RemoveMember(c.Request.Context(), orgID, userID); err != nil {
		handleOrgError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// --- Helpers ---

func handleOrgError(c *gin.Context, err error) {
	if denied, ok := entitlement.AsDenied(err); ok {
		c.JSON(http.StatusForbidden, gin.H{
			"error":            "plan_limit_exceeded",
			"reason":           denied.Reason,
			"upgrade_required": denied.UpgradeRequired,
		})
		return
	}

	switch {
	case errors.Is(err, ErrOrgNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "organization_not_found"})
	case errors.Is(err, ErrSlugTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "slug_taken"})
	case errors.Is(err, ErrMemberExists):
		c.JSON(http.StatusConflict, gin.H{"error": "member_exists"})
	case errors.Is(err, ErrMemberNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "member_not_found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
