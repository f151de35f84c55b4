package document

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ragpdf/server/internal/module/billing/entitlement"
	"github.com/ragpdf/server/internal/module/usage"
	"github.com/ragpdf/server/internal/utils/metrics"
	"github.com/ragpdf/server/internal/utils/pagination"
)

// PlanResolver resolves the effective plan of an organization.
type PlanResolver interface {
	PlanFor(ctx context.Context, orgID uuid.UUID) (string, error)
}

// UploadInput describes a PDF being uploaded. ProjectID is optional;
// when set the project must belong to the uploading organization.
type UploadInput struct {
	ProjectID   uuid.UUID
	Filename    string
	ContentType string
	SizeBytes   int64
	Body        io.Reader
}

// Service implements document operations. Uploads are gated on the
// plan's document count, file size, and concurrent upload limits.
type Service struct {
	repo     Repository
	store    ObjectStore
	slots    *UploadSlots
	plans    PlanResolver
	gate     *entitlement.Gate
	recorder *usage.Recorder
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewService creates a new document service.
func NewService(
	repo Repository,
	store ObjectStore,
	slots *UploadSlots,
	plans PlanResolver,
	gate *entitlement.Gate,
	recorder *usage.Recorder,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:     repo,
		store:    store,
		slots:    slots,
		plans:    plans,
		gate:     gate,
		recorder: recorder,
		metrics:  m,
		logger:   logger,
	}
}

// Upload stores a PDF and records it. The upload holds a concurrency
// slot for its duration.
func (s *Service) Upload(ctx context.Context, orgID, uploaderID uuid.UUID, in *UploadInput) (*Document, error) {
	if in.SizeBytes <= 0 {
		return nil, ErrEmptyUpload
	}
	if !isPDF(in.Filename, in.ContentType) {
		return nil, ErrNotPDF
	}

	if in.ProjectID != uuid.Nil {
		if _, err := s.repo.GetProject(ctx, orgID, in.ProjectID); err != nil {
			return nil, err
		}
	}

	planID, err := s.plans.PlanFor(ctx, orgID)
	if err != nil {
		return nil, err
	}

	active, err := s.slots.Acquire(ctx, orgID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.slots.Release(context.WithoutCancel(ctx), orgID); err != nil {
			s.logger.Warn("release upload slot", zap.Error(err))
		}
	}()

	// The slot just acquired is not counted against the limit.
	if err := s.gate.EnforceConcurrentUploads(planID, active-1); err != nil {
		return nil, err
	}

	docs, err := s.repo.CountByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	const mb = 1 << 20
	sizeMB := (in.SizeBytes + mb - 1) / mb
	if err := s.gate.EnforceDocumentUpload(planID, entitlement.Usage{Documents: docs}, sizeMB); err != nil {
		s.metrics.RecordDocumentIngested(planID, "denied")
		return nil, err
	}

	doc := &Document{
		ID:          uuid.New(),
		OrgID:       orgID,
		ProjectID:   in.ProjectID,
		UploaderID:  uploaderID,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		SizeBytes:   in.SizeBytes,
		Status:      StatusUploaded,
	}
	doc.StorageKey = fmt.Sprintf("orgs/%s/documents/%s/%s", orgID, doc.ID, in.Filename)

	if err := s.store.Put(ctx, doc.StorageKey, in.Body, in.SizeBytes, in.ContentType); err != nil {
		s.metrics.RecordDocumentIngested(planID, "failed")
		return nil, err
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), doc.StorageKey); delErr != nil {
			s.logger.Warn("clean up orphaned object", zap.String("key", doc.StorageKey), zap.Error(delErr))
		}
		return nil, err
	}

	s.recorder.RecordEvent(&usage.Record{
		OrgID:     orgID,
		UserID:    uploaderID,
		Kind:      usage.KindDocument,
		Timestamp: time.Now().UTC(),
	})
	s.metrics.RecordDocumentIngested(planID, "uploaded")

	s.logger.Info("document uploaded",
		zap.String("org_id", orgID.String()),
		zap.String("document_id", doc.ID.String()),
		zap.Int64("size_bytes", in.SizeBytes),
	)
	return doc, nil
}

// CreateProject creates a project for grouping documents and threads.
func (s *Service) CreateProject(ctx context.Context, orgID uuid.UUID, req *CreateProjectRequest) (*Project, error) {
	project := &Project{
		ID:    uuid.New(),
		OrgID: orgID,
		Name:  req.Name,
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// GetProject returns a project by id.
func (s *Service) GetProject(ctx context.Context, orgID, id uuid.UUID) (*Project, error) {
	return s.repo.GetProject(ctx, orgID, id)
}

// ListProjects lists the organization's projects.
func (s *Service) ListProjects(ctx context.Context, orgID uuid.UUID) ([]*Project, error) {
	return s.repo.ListProjects(ctx, orgID)
}

// Get returns a document by id.
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*Document, error) {
	return s.repo.GetByID(ctx, orgID, id)
}

// List returns a page of the organization's documents.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, p *pagination.Pagination) ([]*Document, int64, error) {
	return s.repo.List(ctx, orgID, p)
}

// DownloadURL returns a presigned URL for fetching the original PDF.
func (s *Service) DownloadURL(ctx context.Context, orgID, id uuid.UUID) (string, error) {
	doc, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return "", err
	}
	return s.store.PresignDownload(ctx, doc.StorageKey, 15*time.Minute)
}

// Delete removes a document and its stored PDF.
func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	doc, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, orgID, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, doc.StorageKey); err != nil {
		s.logger.Warn("delete stored object", zap.String("key", doc.StorageKey), zap.Error(err))
	}
	return nil
}

// SetStatus advances a document through the ingestion pipeline.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status, failReason string) error {
	return s.repo.UpdateStatus(ctx, id, status, failReason)
}

func isPDF(filename, contentType string) bool {
	if contentType == "application/pdf" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}
