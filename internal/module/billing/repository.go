package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for billing data access.
type Repository interface {
	// Subscription operations
	CreateSubscription(ctx context.Context, sub *Subscription) error
	GetSubscription(ctx context.Context, orgID uuid.UUID) (*Subscription, error)
	GetSubscriptionByStripeID(ctx context.Context, stripeSubID string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, sub *Subscription) error

	// Webhook replay protection
	RecordWebhookEvent(ctx context.Context, event *WebhookEvent) error
	WebhookEventSeen(ctx context.Context, eventID string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new billing repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// --- Subscription Operations ---

func (r *repository) CreateSubscription(ctx context.Context, sub *Subscription) error {
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (r *repository) GetSubscription(ctx context.Context, orgID uuid.UUID) (*Subscription, error) {
	var sub Subscription
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

func (r *repository) GetSubscriptionByStripeID(ctx context.Context, stripeSubID string) (*Subscription, error) {
	var sub Subscription
	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription by stripe id: %w", err)
	}
	return &sub, nil
}

func (r *repository) UpdateSubscription(ctx context.Context, sub *Subscription) error {
	if err := r.db.WithContext(ctx).Save(sub).Error; err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// --- Webhook Events ---

func (r *repository) RecordWebhookEvent(ctx context.Context, event *WebhookEvent) error {
	if event.ProcessedAt.IsZero() {
		event.ProcessedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

func (r *repository) WebhookEventSeen(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&WebhookEvent{}).
		Where("id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check webhook event: %w", err)
	}
	return count > 0, nil
}
