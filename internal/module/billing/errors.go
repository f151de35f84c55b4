package billing

import "errors"

// Billing errors.
var (
	// ErrPlanNotFound indicates a stored plan id does not resolve in the
	// catalog. This is a data-integrity problem upstream, surfaced as 5xx.
	ErrPlanNotFound = errors.New("plan not found")

	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionExists   = errors.New("subscription already exists")
	ErrSubscriptionCanceled = errors.New("subscription already canceled")
	ErrMissingStripePrice   = errors.New("plan has no stripe price configured")
)
