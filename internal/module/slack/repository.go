package slack

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists Slack installations.
type Repository interface {
	Upsert(ctx context.Context, inst *Installation) error
	GetByOrg(ctx context.Context, orgID uuid.UUID) (*Installation, error)
	Delete(ctx context.Context, orgID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new Slack installation repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Upsert replaces the organization's installation. Reinstalling rotates
// the token and scopes.
func (r *repository) Upsert(ctx context.Context, inst *Installation) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "org_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"team_id", "team_name", "access_token", "scopes", "installed_by", "updated_at",
			}),
		}).
		Create(inst).Error
}

func (r *repository) GetByOrg(ctx context.Context, orgID uuid.UUID) (*Installation, error) {
	var inst Installation
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		First(&inst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotInstalled
		}
		return nil, err
	}
	return &inst, nil
}

func (r *repository) Delete(ctx context.Context, orgID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Delete(&Installation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotInstalled
	}
	return nil
}
