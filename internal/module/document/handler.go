package document

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ragpdf/server/internal/module/billing/entitlement"
	"github.com/ragpdf/server/internal/utils/middleware"
	"github.com/ragpdf/server/internal/utils/pagination"
)

// Handler handles HTTP requests for documents.
type Handler struct {
	service *Service
}

// NewHandler creates a new document handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the project and document routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	projects := r.Group("/projects")
	{
		projects.POST("", h.CreateProject)
		projects.GET("", h.ListProjects)
		projects.GET("/:id", h.GetProject)
		projects.POST("/:id/documents", h.UploadToProject)
	}

	docs := r.Group("/documents")
	{
		docs.POST("", h.Upload)
		docs.GET("", h.List)
		docs.GET("/:id", h.Get)
		docs.GET("/:id/download", h.Download)
		docs.DELETE("/:id", h.Delete)
	}
}

// CreateProject creates a project.
func (h *Handler) CreateProject(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.service.CreateProject(c.Request.Context(), orgID, &req)
	if err != nil {
		handleDocumentError(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// ListProjects lists the organization's projects.
func (h *Handler) ListProjects(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	projects, err := h.service.ListProjects(c.Request.Context(), orgID)
	if err != nil {
		handleDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// GetProject returns a single project.
func (h *Handler) GetProject(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	project, err := h.service.GetProject(c.Request.Context(), orgID, id)
	if err != nil {
		handleDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// Upload accepts a multipart PDF upload outside any project.
func (h *Handler) Upload(c *gin.Context) {
	h.upload(c, uuid.Nil)
}

// UploadToProject accepts a multipart PDF upload into a project.
func (h *Handler) UploadToProject(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}
	h.upload(c, projectID)
}

func (h *Handler) upload(c *gin.Context, projectID uuid.UUID) {
	orgID := middleware.GetOrgID(c)
	userID := middleware.GetUserID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer file.Close()

	doc, err := h.service.Upload(c.Request.Context(), orgID, userID, &UploadInput{
		ProjectID:   projectID,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		SizeBytes:   fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		handleDocumentError(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// List returns a page of the organization's documents.
func (h *Handler) List(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	p := pagination.New()
	if err := c.ShouldBindQuery(p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	docs, total, err := h.service.List(c.Request.Context(), orgID, p)
	if err != nil {
		handleDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents":  docs,
		"pagination": p.Info(total),
	})
}

// Get returns a single document.
func (h *Handler) Get(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	doc, err := h.service.Get(c.Request.Context(), orgID, id)
	if err != nil {
		handleDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// Download returns a presigned URL for the original PDF.
func (h *Handler) Download(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	url, err := h.service.DownloadURL(c.Request.Context(), orgID, id)
	if err != nil {
		handleDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"download_url": url})
}

// Delete removes a document.
func (h *Handler) Delete(c *gin.Context) {
	orgID := middleware.GetOrgID(c)
	if orgID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), orgID, id); err != nil {
		handleDocumentError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func handleDocumentError(c *gin.Context, err error) {
	if denied, ok := entitlement.AsDenied(err); ok {
		c.JSON(http.StatusForbidden, gin.H{
			"error":            "plan_limit_exceeded",
			"reason":           denied.Reason,
			"upgrade_required": denied.UpgradeRequired,
		})
		return
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document_not_found"})
	case errors.Is(err, ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "project_not_found"})
	case errors.Is(err, ErrEmptyUpload), errors.Is(err, ErrNotPDF):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
