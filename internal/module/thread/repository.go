package thread

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ragpdf/server/internal/utils/pagination"
)

// Repository persists threads and messages.
type Repository interface {
	CreateThread(ctx context.Context, t *Thread) error
	GetThread(ctx context.Context, orgID, id uuid.UUID) (*Thread, error)
	ListThreads(ctx context.Context, orgID, projectID uuid.UUID, p *pagination.Pagination) ([]*Thread, int64, error)
	CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error)

	CreateMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, threadID uuid.UUID) ([]*Message, error)
	CountByThread(ctx context.Context, threadID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new thread repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateThread(ctx context.Context, t *Thread) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *repository) GetThread(ctx context.Context, orgID, id uuid.UUID) (*Thread, error) {
	var t Thread
	err := r.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *repository) ListThreads(ctx context.Context, orgID, projectID uuid.UUID, p *pagination.Pagination) ([]*Thread, int64, error) {
	query := r.db.WithContext(ctx).Model(&Thread{}).Where("org_id = ?", orgID)
	if projectID != uuid.Nil {
		query = query.Where("project_id = ?", projectID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var threads []*Thread
	err := query.
		Order("created_at DESC").
		Offset(p.Offset()).
		Limit(p.Limit()).
		Find(&threads).Error
	if err != nil {
		return nil, 0, err
	}
	return threads, total, nil
}

func (r *repository) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Thread{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *repository) ListMessages(ctx context.Context, threadID uuid.UUID) ([]*Message, error) {
	var messages []*Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

func (r *repository) CountByThread(ctx context.Context, threadID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Message{}).
		Where("thread_id = ?", threadID).
		Count(&count).Error
	return count, err
}
