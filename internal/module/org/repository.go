package org

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for organization data access.
type Repository interface {
	Create(ctx context.Context, o *Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	GetBySlug(ctx context.Context, slug string) (*Organization, error)
	Update(ctx context.Context, o *Organization) error
	ListIDs(ctx context.Context) ([]uuid.UUID, error)

	AddMember(ctx context.Context, m *Membership) error
	RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]*Membership, error)
	CountMembers(ctx context.Context, orgID uuid.UUID) (int64, error)
	MemberExists(ctx context.Context, orgID, userID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new organization repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, o *Organization) error {
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrSlugTaken
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	var o Organization
	err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &o, nil
}

func (r *repository) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	var o Organization
	err := r.db.WithContext(ctx).First(&o, "slug = ?", slug).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("get organization by slug: %w", err)
	}
	return &o, nil
}

func (r *repository) Update(ctx context.Context, o *Organization) error {
	if err := r.db.WithContext(ctx).Save(o).Error; err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	return nil
}

func (r *repository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&Organization{}).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list organization ids: %w", err)
	}
	return ids, nil
}

func (r *repository) AddMember(ctx context.Context, m *Membership) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrMemberExists
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (r *repository) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Delete(&Membership{})
	if result.Error != nil {
		return fmt.Errorf("remove member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]*Membership, error) {
	var members []*Membership
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (r *repository) CountMembers(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Membership{}).
		Where("org_id = ?", orgID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

func (r *repository) MemberExists(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Membership{}).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check member: %w", err)
	}
	return count > 0, nil
}
