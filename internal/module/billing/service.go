package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UsageResetter resets the periodic usage counters of an organization.
// Implemented by the usage module's Redis counters.
type UsageResetter interface {
	ResetPeriod(ctx context.Context, orgID uuid.UUID) error
}

// ServiceInterface defines the billing service interface.
type ServiceInterface interface {
	// Plan operations
	ListPlans(ctx context.Context) []*Plan
	GetPlan(ctx context.Context, planID string) (*Plan, error)

	// Subscription operations
	GetSubscription(ctx context.Context, orgID uuid.UUID) (*Subscription, error)
	PlanFor(ctx context.Context, orgID uuid.UUID) (string, error)
	CreateCheckout(ctx context.Context, orgID uuid.UUID, email string, req *CreateCheckoutRequest) (string, error)
	CancelSubscription(ctx context.Context, orgID uuid.UUID, immediately bool) (*Subscription, error)

	// Stripe sync
	ActivateSubscription(ctx context.Context, orgID uuid.UUID, stripeCustomerID string, stripeSub StripeSubscriptionState) error
	UpdateSubscriptionFromStripe(ctx context.Context, stripeSub StripeSubscriptionState) error
}

// StripeSubscriptionState carries the subscription fields synced from
// Stripe webhook payloads.
type StripeSubscriptionState struct {
	SubscriptionID    string
	PriceID           string
	Status            SubscriptionStatus
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
}

// Service implements billing operations.
type Service struct {
	catalog *Catalog
	repo    Repository
	stripe  StripeClient
	usage   UsageResetter
	logger  *zap.Logger
}

// NewService creates a new billing service.
func NewService(catalog *Catalog, repo Repository, stripe StripeClient, usage UsageResetter, logger *zap.Logger) *Service {
	return &Service{
		catalog: catalog,
		repo:    repo,
		stripe:  stripe,
		usage:   usage,
		logger:  logger,
	}
}

// --- Plan Operations ---

func (s *Service) ListPlans(ctx context.Context) []*Plan {
	return s.catalog.ListPlans()
}

func (s *Service) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	return s.catalog.GetPlan(planID)
}

// --- Subscription Operations ---

func (s *Service) GetSubscription(ctx context.Context, orgID uuid.UUID) (*Subscription, error) {
	return s.repo.GetSubscription(ctx, orgID)
}

// PlanFor resolves the effective plan of an organization. Organizations
// without an active subscription are on the free plan.
func (s *Service) PlanFor(ctx context.Context, orgID uuid.UUID) (string, error) {
	sub, err := s.repo.GetSubscription(ctx, orgID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return PlanFree, nil
		}
		return "", err
	}
	if !sub.IsActive() {
		return PlanFree, nil
	}
	return sub.PlanID, nil
}

func (s *Service) CreateCheckout(ctx context.Context, orgID uuid.UUID, email string, req *CreateCheckoutRequest) (string, error) {
	plan, err := s.catalog.GetPlan(req.PlanID)
	if err != nil {
		return "", err
	}
	if plan.StripePriceID == "" {
		return "", ErrMissingStripePrice
	}

	customerID := ""
	sub, err := s.repo.GetSubscription(ctx, orgID)
	if err == nil {
		if sub.IsActive() && sub.PlanID == plan.ID {
			return "", ErrSubscriptionExists
		}
		customerID = sub.StripeCustomerID
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return "", err
	}

	if customerID == "" {
		customerID, err = s.stripe.CreateCustomer(ctx, email, orgID.String())
		if err != nil {
			return "", fmt.Errorf("create stripe customer: %w", err)
		}
	}

	url, err := s.stripe.CreateCheckoutSession(ctx, customerID, plan.StripePriceID, req.SuccessURL, req.CancelURL, map[string]string{
		"org_id":  orgID.String(),
		"plan_id": plan.ID,
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("checkout session created",
		zap.String("org_id", orgID.String()),
		zap.String("plan_id", plan.ID),
	)
	return url, nil
}

func (s *Service) CancelSubscription(ctx context.Context, orgID uuid.UUID, immediately bool) (*Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if sub.IsCanceled() {
		return nil, ErrSubscriptionCanceled
	}

	if sub.StripeSubscriptionID != "" {
		if err := s.stripe.CancelSubscription(ctx, sub.StripeSubscriptionID, immediately); err != nil {
			return nil, fmt.Errorf("cancel stripe subscription: %w", err)
		}
	}

	now := time.Now().UTC()
	if immediately {
		sub.Status = SubscriptionStatusCanceled
		sub.CanceledAt = &now
		sub.PlanID = PlanFree
	} else {
		sub.CancelAtPeriodEnd = true
		sub.CanceledAt = &now
	}

	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}

	s.logger.Info("subscription canceled",
		zap.String("org_id", orgID.String()),
		zap.Bool("immediately", immediately),
	)
	return sub, nil
}

// --- Stripe Sync ---

// ActivateSubscription records a subscription completed through checkout.
// Called from the webhook handler on checkout.session.completed.
func (s *Service) ActivateSubscription(ctx context.Context, orgID uuid.UUID, stripeCustomerID string, state StripeSubscriptionState) error {
	plan, err := s.planByPrice(state.PriceID)
	if err != nil {
		return err
	}

	sub, err := s.repo.GetSubscription(ctx, orgID)
	if err != nil {
		if !errors.Is(err, ErrSubscriptionNotFound) {
			return err
		}
		sub = &Subscription{
			ID:    uuid.New(),
			OrgID: orgID,
		}
		sub.StripeCustomerID = stripeCustomerID
		sub.StripeSubscriptionID = state.SubscriptionID
		sub.PlanID = plan.ID
		sub.Status = state.Status
		sub.CurrentPeriodStart = state.PeriodStart
		sub.CurrentPeriodEnd = state.PeriodEnd
		if err := s.repo.CreateSubscription(ctx, sub); err != nil {
			return err
		}
	} else {
		sub.StripeCustomerID = stripeCustomerID
		sub.StripeSubscriptionID = state.SubscriptionID
		sub.PlanID = plan.ID
		sub.Status = state.Status
		sub.CurrentPeriodStart = state.PeriodStart
		sub.CurrentPeriodEnd = state.PeriodEnd
		sub.CancelAtPeriodEnd = false
		sub.CanceledAt = nil
		if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
	}

	s.logger.Info("subscription activated",
		zap.String("org_id", orgID.String()),
		zap.String("plan_id", plan.ID),
	)
	return nil
}

// UpdateSubscriptionFromStripe syncs subscription state with a Stripe
// webhook payload and resets usage counters on period renewal.
func (s *Service) UpdateSubscriptionFromStripe(ctx context.Context, state StripeSubscriptionState) error {
	sub, err := s.repo.GetSubscriptionByStripeID(ctx, state.SubscriptionID)
	if err != nil {
		return err
	}

	renewed := state.PeriodStart.After(sub.CurrentPeriodStart)

	if state.PriceID != "" {
		if plan, err := s.planByPrice(state.PriceID); err == nil {
			sub.PlanID = plan.ID
		}
	}
	sub.Status = state.Status
	sub.CurrentPeriodStart = state.PeriodStart
	sub.CurrentPeriodEnd = state.PeriodEnd
	sub.CancelAtPeriodEnd = state.CancelAtPeriodEnd

	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}

	if renewed && s.usage != nil {
		if err := s.usage.ResetPeriod(ctx, sub.OrgID); err != nil {
			s.logger.Error("failed to reset usage counters", zap.Error(err))
		}
	}

	return nil
}

// planByPrice maps a Stripe price id back to a catalog plan.
func (s *Service) planByPrice(priceID string) (*Plan, error) {
	for _, plan := range s.catalog.ListPlans() {
		if plan.StripePriceID != "" && plan.StripePriceID == priceID {
			return plan, nil
		}
	}
	return nil, fmt.Errorf("%w: price %s", ErrPlanNotFound, priceID)
}
