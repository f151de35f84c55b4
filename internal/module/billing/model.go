package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Catalog plan identifiers, in upgrade order.
const (
	PlanFree         = "free"
	PlanStarter      = "starter"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
)

// Limit is a usage ceiling. Unlimited means no cap on the dimension;
// all other values are compared against usage counts.
type Limit int64

// Unlimited is the catalog convention for "no cap". It serializes as -1
// so clients keep seeing the historical sentinel.
const Unlimited Limit = -1

// IsUnlimited reports whether the limit imposes no cap.
func (l Limit) IsUnlimited() bool {
	return l == Unlimited
}

// Int64 returns the raw limit value (-1 for unlimited).
func (l Limit) Int64() int64 {
	return int64(l)
}

// Limits holds the usage ceilings and feature flags of a plan.
// MaxFileSizeMB and MaxConcurrentUploads have no unlimited sentinel;
// every plan carries a finite value for them.
type Limits struct {
	MaxDocuments            Limit `json:"max_documents"`
	MaxTokensPerMonth       Limit `json:"max_tokens_per_month"`
	MaxUsers                Limit `json:"max_users"`
	MaxFileSizeMB           int64 `json:"max_file_size_mb"`
	MaxConcurrentUploads    int   `json:"max_concurrent_uploads"`
	MaxThreadsPerProject    Limit `json:"max_threads_per_project"`
	MaxMessagesPerThread    Limit `json:"max_messages_per_thread"`
	MaxHistoryRetentionDays Limit `json:"max_history_retention_days"`

	SlackIntegration bool `json:"slack_integration"`
	APIAccess        bool `json:"api_access"`
	PrioritySupport  bool `json:"priority_support"`
	CustomBranding   bool `json:"custom_branding"`
}

// Plan represents a subscription plan. Plans are value objects: the
// catalog builds them once at startup and never mutates them.
type Plan struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	PriceUSD      int64    `json:"price_usd"` // In cents per month
	StripePriceID string   `json:"-"`
	Limits        Limits   `json:"limits"`
	Features      []string `json:"features"`
	DisplayOrder  int      `json:"display_order"`
}

// SubscriptionStatus represents the status of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
)

// Subscription represents an organization's subscription to a plan.
type Subscription struct {
	ID                   uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrgID                uuid.UUID          `json:"org_id" gorm:"type:uuid;uniqueIndex;not null"`
	PlanID               string             `json:"plan_id" gorm:"not null"`
	Status               SubscriptionStatus `json:"status" gorm:"not null;default:active"`
	StripeCustomerID     string             `json:"-"`
	StripeSubscriptionID string             `json:"-"`
	CurrentPeriodStart   time.Time          `json:"current_period_start"`
	CurrentPeriodEnd     time.Time          `json:"current_period_end"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end" gorm:"default:false"`
	CanceledAt           *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// TableName returns the database table name.
func (Subscription) TableName() string {
	return "subscriptions"
}

// IsActive returns true if the subscription is active or trialing.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

// IsCanceled returns true if the subscription is canceled.
func (s *Subscription) IsCanceled() bool {
	return s.Status == SubscriptionStatusCanceled
}

// WebhookEvent records a processed Stripe event for replay protection.
type WebhookEvent struct {
	ID          string         `gorm:"primaryKey"`
	Type        string         `gorm:"not null"`
	ObjectIDs   pq.StringArray `gorm:"type:text[]"`
	ProcessedAt time.Time      `gorm:"not null"`
}

// TableName returns the database table name.
func (WebhookEvent) TableName() string {
	return "stripe_webhook_events"
}

// CancelSubscriptionRequest is the request body for subscription cancellation.
type CancelSubscriptionRequest struct {
	Immediately bool `json:"immediately"`
}

// CreateCheckoutRequest is the request body for starting a Stripe checkout.
type CreateCheckoutRequest struct {
	PlanID     string `json:"plan_id" binding:"required"`
	SuccessURL string `json:"success_url" binding:"required"`
	CancelURL  string `json:"cancel_url" binding:"required"`
}
