package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/ragpdf/server/internal/utils/metrics"
)

// WebhookHandler handles Stripe webhook events.
type WebhookHandler struct {
	service ServiceInterface
	repo    Repository
	stripe  StripeClient
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service ServiceInterface, repo Repository, stripeClient StripeClient, m *metrics.Metrics, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		repo:    repo,
		stripe:  stripeClient,
		metrics: m,
		logger:  logger,
	}
}

// RegisterRoutes registers the webhook routes.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook handles incoming Stripe webhook events.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	event, err := h.stripe.VerifyWebhook(payload, signature)
	if err != nil {
		h.logger.Warn("invalid webhook signature", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	ctx := c.Request.Context()

	seen, err := h.repo.WebhookEventSeen(ctx, event.ID)
	if err != nil {
		h.logger.Error("failed to check event existence", zap.Error(err))
		// Continue processing - better to process twice than miss
	}
	if seen {
		h.logger.Info("webhook event already processed", zap.String("event_id", event.ID))
		if h.metrics != nil {
			h.metrics.RecordStripeWebhook(string(event.Type), "skipped")
		}
		c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
		return
	}

	var processErr error
	var objectIDs []string
	switch event.Type {
	case "checkout.session.completed":
		objectIDs, processErr = h.handleCheckoutCompleted(ctx, &event)
	case "customer.subscription.updated":
		objectIDs, processErr = h.handleSubscriptionUpdated(ctx, &event)
	case "customer.subscription.deleted":
		objectIDs, processErr = h.handleSubscriptionDeleted(ctx, &event)
	case "invoice.payment_failed":
		objectIDs, processErr = h.handleInvoicePaymentFailed(ctx, &event)
	default:
		h.logger.Debug("unhandled webhook event type", zap.String("type", string(event.Type)))
	}

	if processErr != nil {
		h.logger.Error("failed to process webhook event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(processErr),
		)
		if h.metrics != nil {
			h.metrics.RecordStripeWebhook(string(event.Type), "failed")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	if err := h.repo.RecordWebhookEvent(ctx, &WebhookEvent{
		ID:        event.ID,
		Type:      string(event.Type),
		ObjectIDs: pq.StringArray(objectIDs),
	}); err != nil {
		h.logger.Error("failed to record webhook event", zap.Error(err))
	}

	if h.metrics != nil {
		h.metrics.RecordStripeWebhook(string(event.Type), "processed")
	}
	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) ([]string, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal checkout session: %w", err)
	}

	if sess.Subscription == nil {
		h.logger.Warn("checkout session without subscription", zap.String("session_id", sess.ID))
		return []string{sess.ID}, nil
	}

	stripeSub, err := h.stripe.GetSubscription(ctx, sess.Subscription.ID)
	if err != nil {
		return nil, err
	}

	orgID, err := orgIDFromMetadata(stripeSub.Metadata)
	if err != nil {
		return nil, err
	}

	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}

	if err := h.service.ActivateSubscription(ctx, orgID, customerID, stateFromStripe(stripeSub)); err != nil {
		return nil, err
	}
	return []string{sess.ID, stripeSub.ID}, nil
}

func (h *WebhookHandler) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event) ([]string, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal subscription: %w", err)
	}

	if err := h.service.UpdateSubscriptionFromStripe(ctx, stateFromStripe(&sub)); err != nil {
		return nil, err
	}
	return []string{sub.ID}, nil
}

func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) ([]string, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal subscription: %w", err)
	}

	state := stateFromStripe(&sub)
	state.Status = SubscriptionStatusCanceled
	if err := h.service.UpdateSubscriptionFromStripe(ctx, state); err != nil {
		return nil, err
	}
	return []string{sub.ID}, nil
}

func (h *WebhookHandler) handleInvoicePaymentFailed(ctx context.Context, event *stripe.Event) ([]string, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return nil, fmt.Errorf("unmarshal invoice: %w", err)
	}

	h.logger.Warn("invoice payment failed",
		zap.String("invoice_id", inv.ID),
	)

	if inv.Subscription == nil {
		return []string{inv.ID}, nil
	}

	stripeSub, err := h.stripe.GetSubscription(ctx, inv.Subscription.ID)
	if err != nil {
		return nil, err
	}
	if err := h.service.UpdateSubscriptionFromStripe(ctx, stateFromStripe(stripeSub)); err != nil {
		return nil, err
	}
	return []string{inv.ID, stripeSub.ID}, nil
}

// --- Helpers ---

func stateFromStripe(sub *stripe.Subscription) StripeSubscriptionState {
	state := StripeSubscriptionState{
		SubscriptionID:    sub.ID,
		Status:            mapStripeStatus(sub.Status),
		PeriodStart:       timeFromUnix(sub.CurrentPeriodStart),
		PeriodEnd:         timeFromUnix(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		state.PriceID = sub.Items.Data[0].Price.ID
	}
	return state
}

func timeFromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func mapStripeStatus(status stripe.SubscriptionStatus) SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusTrialing:
		return SubscriptionStatusTrialing
	case stripe.SubscriptionStatusActive:
		return SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return SubscriptionStatusCanceled
	default:
		return SubscriptionStatusIncomplete
	}
}

func orgIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	raw, ok := metadata["org_id"]
	if !ok {
		return uuid.Nil, fmt.Errorf("subscription metadata missing org_id")
	}
	orgID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse org_id %q: %w", raw, err)
	}
	return orgID, nil
}
