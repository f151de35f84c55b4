package thread

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ragpdf/server/internal/module/billing/entitlement"
	"github.com/ragpdf/server/internal/utils/middleware"
	"github.com/ragpdf/server/internal/utils/pagination"
)

// Handler handles HTTP requests for threads.
type Handler struct {
	service *Service
}

// NewHandler creates a new thread handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the thread routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	threads := r.Group("/threads")
	{
		threads.POST("", h.Create)
		threads.GET("", h.List)
		threads.GET("/:id", h.Get)
		threads.GET("/:id/messages", h.ListMessages)
		threads.POST("/:id/messages", h.PostMessage)
		threads.POST("/:id/answer", h.AppendAnswer)
	}
}

// Create creates a thread in a project.
func (h *Handler) Create(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.service.CreateThread(c.Request.Context(), orgID, middleware.GetUserID(c), &req)
	if err != nil {
		handleThreadError(c, err)
		return
	}

	c.JSON(http.StatusCreated, t)
}

// List returns a page of threads, optionally filtered by project.
func (h *Handler) List(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	projectID := uuid.Nil
	if raw := c.Query("project_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
			return
		}
		projectID = parsed
	}

	p := pagination.New()
	if err := c.ShouldBindQuery(p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	threads, total, err := h.service.ListThreads(c.Request.Context(), orgID, projectID, p)
	if err != nil {
		handleThreadError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"threads":    threads,
		"pagination": p.Info(total),
	})
}

// Get returns a single thread.
func (h *Handler) Get(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	t, err := h.service.GetThread(c.Request.Context(), orgID, id)
	if err != nil {
		handleThreadError(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

// ListMessages returns a thread's messages.
func (h *Handler) ListMessages(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	messages, err := h.service.ListMessages(c.Request.Context(), orgID, id)
	if err != nil {
		handleThreadError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// PostMessage adds a user question to a thread.
func (h *Handler) PostMessage(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.service.PostMessage(c.Request.Context(), orgID, middleware.GetUserID(c), id, &req)
	if err != nil {
		handleThreadError(c, err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

// AppendAnswer records an assistant answer produced by the answering
// pipeline.
func (h *Handler) AppendAnswer(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	var in AssistantMessageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.service.AppendAnswer(c.Request.Context(), orgID, id, &in)
	if err != nil {
		handleThreadError(c, err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

func handleThreadError(c *gin.Context, err error) {
	if denied, ok := entitlement.AsDenied(err); ok {
		c.JSON(http.StatusForbidden, gin.H{
			"error":            "plan_limit_exceeded",
			"reason":           denied.Reason,
			"upgrade_required": denied.UpgradeRequired,
		})
		return
	}

	if errors.Is(err, ErrThreadNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread_not_found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
