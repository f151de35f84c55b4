package document

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ragpdf/server/internal/utils/pagination"
)

// Repository persists projects and documents.
type Repository interface {
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, orgID, id uuid.UUID) (*Project, error)
	ListProjects(ctx context.Context, orgID uuid.UUID) ([]*Project, error)

	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*Document, error)
	List(ctx context.Context, orgID uuid.UUID, p *pagination.Pagination) ([]*Document, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, failReason string) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	DeleteBatch(ctx context.Context, ids []uuid.UUID) error
	CountByOrg(ctx context.Context, orgID uuid.UUID) (int64, error)
	ListOlderThan(ctx context.Context, orgID uuid.UUID, cutoff time.Time, limit int) ([]*Document, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new document repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateProject(ctx context.Context, project *Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *repository) GetProject(ctx context.Context, orgID, id uuid.UUID) (*Project, error) {
	var project Project
	err := r.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (r *repository) ListProjects(ctx context.Context, orgID uuid.UUID) ([]*Project, error) {
	var projects []*Project
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&projects).Error
	return projects, err
}

func (r *repository) Create(ctx context.Context, doc *Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *repository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*Document, error) {
	var doc Document
	err := r.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *repository) List(ctx context.Context, orgID uuid.UUID, p *pagination.Pagination) ([]*Document, int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&Document{}).Where("org_id = ?", orgID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []*Document
	err := query.
		Order("created_at DESC").
		Offset(p.Offset()).
		Limit(p.Limit()).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, failReason string) error {
	updates := map[string]any{"status": status}
	if failReason != "" {
		updates["fail_reason"] = failReason
	}
	result := r.db.WithContext(ctx).
		Model(&Document{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		Delete(&Document{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *repository) DeleteBatch(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&Document{}).Error
}

func (r *repository) CountByOrg(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Document{}).
		Where("org_id = ?", orgID).
		Count(&count).Error
	return count, err
}

func (r *repository) ListOlderThan(ctx context.Context, orgID uuid.UUID, cutoff time.Time, limit int) ([]*Document, error) {
	var docs []*Document
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND created_at < ?", orgID, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&docs).Error
	return docs, err
}
