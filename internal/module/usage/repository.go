package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for usage data access.
type Repository interface {
	CreateRecord(ctx context.Context, record *Record) error
	GetMonthlyTokens(ctx context.Context, orgID uuid.UUID, monthStart time.Time) (int64, error)
	GetStats(ctx context.Context, orgID uuid.UUID, start, end time.Time) (*Stats, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new usage repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateRecord(ctx context.Context, record *Record) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("create usage record: %w", err)
	}
	return nil
}

func (r *repository) GetMonthlyTokens(ctx context.Context, orgID uuid.UUID, monthStart time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&Record{}).
		Select("COALESCE(SUM(tokens), 0)").
		Where("org_id = ? AND kind = ? AND timestamp >= ?", orgID, KindTokens, monthStart).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("get monthly tokens: %w", err)
	}
	return total, nil
}

func (r *repository) GetStats(ctx context.Context, orgID uuid.UUID, start, end time.Time) (*Stats, error) {
	stats := &Stats{ByDay: make([]*DailyUsage, 0)}

	var totals struct {
		TotalTokens    int64
		TotalDocuments int64
		TotalMessages  int64
	}
	err := r.db.WithContext(ctx).
		Model(&Record{}).
		Select(
			"COALESCE(SUM(tokens), 0) as total_tokens, "+
				"COUNT(*) FILTER (WHERE kind = 'document') as total_documents, "+
				"COUNT(*) FILTER (WHERE kind = 'message') as total_messages",
		).
		Where("org_id = ? AND timestamp >= ? AND timestamp < ?", orgID, start, end).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("get usage totals: %w", err)
	}
	stats.TotalTokens = totals.TotalTokens
	stats.TotalDocuments = totals.TotalDocuments
	stats.TotalMessages = totals.TotalMessages

	var dailyStats []struct {
		Date        time.Time
		TotalTokens int64
		Events      int64
	}
	err = r.db.WithContext(ctx).
		Model(&Record{}).
		Select("DATE(timestamp) as date, COALESCE(SUM(tokens), 0) as total_tokens, COUNT(*) as events").
		Where("org_id = ? AND timestamp >= ? AND timestamp < ?", orgID, start, end).
		Group("DATE(timestamp)").
		Order("DATE(timestamp) ASC").
		Scan(&dailyStats).Error
	if err != nil {
		return nil, fmt.Errorf("get usage by day: %w", err)
	}
	for _, d := range dailyStats {
		stats.ByDay = append(stats.ByDay, &DailyUsage{
			Date:        d.Date.Format("2006-01-02"),
			TotalTokens: d.TotalTokens,
			Events:      d.Events,
		})
	}

	return stats, nil
}
