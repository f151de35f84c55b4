package usage

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ragpdf/server/internal/utils/middleware"
)

// Handler handles HTTP requests for usage reporting.
type Handler struct {
	source *Source
	repo   Repository
}

// NewHandler creates a new usage handler.
func NewHandler(source *Source, repo Repository) *Handler {
	return &Handler{source: source, repo: repo}
}

// RegisterRoutes registers the usage routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/usage", h.GetUsage)
}

// GetUsage returns the organization's current counters and a 30-day
// activity breakdown.
func (h *Handler) GetUsage(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	snap, err := h.source.Snapshot(c.Request.Context(), orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	end := time.Now().UTC()
	stats, err := h.repo.GetStats(c.Request.Context(), orgID, end.AddDate(0, 0, -30), end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"current": snap,
		"stats":   stats,
	})
}
