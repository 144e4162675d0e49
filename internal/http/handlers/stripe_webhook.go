package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/finboard/finboard-api/internal/config"
	"github.com/finboard/finboard-api/internal/service"
)

// StripeWebhookHandler receives checkout completion events from Stripe
// and turns them into credit grants.
type StripeWebhookHandler struct {
	cfg     *config.Config
	billing *service.BillingService
	logger  *slog.Logger
}

// NewStripeWebhookHandler creates the webhook handler. The Stripe API
// key is installed by the billing service, which owns all Stripe calls.
func NewStripeWebhookHandler(cfg *config.Config, billing *service.BillingService, logger *slog.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		cfg:     cfg,
		billing: billing,
		logger:  logger,
	}
}

// Stripe event payloads are small; anything larger is not ours.
const maxWebhookBody = 64 * 1024

// HandleWebhook verifies and dispatches a Stripe event. It stays a raw
// net/http handler because signature verification needs the exact bytes
// Stripe signed, before any body decoding.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("webhook body read failed", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.cfg.StripeWebhookSecret)
	if err != nil {
		h.logger.Error("webhook signature rejected", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	// A 5xx makes Stripe retry the event. The purchase ledger dedupes on
	// payment id, so a redelivery after a transient failure is safe.
	if err := h.handleEvent(r.Context(), event); err != nil {
		h.logger.Error("webhook event not processed", "type", event.Type, "error", err)
		http.Error(w, "event processing failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *StripeWebhookHandler) handleEvent(ctx context.Context, event stripe.Event) error {
	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutComplete(ctx, event)
	default:
		h.logger.Debug("ignoring webhook event type", "type", event.Type)
		return nil
	}
}

// handleCheckoutComplete credits a completed credit package purchase.
func (h *StripeWebhookHandler) handleCheckoutComplete(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}

	// Sessions created outside our checkout flow carry no metadata and
	// are acknowledged without crediting.
	userID := session.Metadata["user_id"]
	if userID == "" {
		h.logger.Warn("checkout session without user_id", "session_id", session.ID)
		return nil
	}
	packageID := session.Metadata["package_id"]
	if packageID == "" {
		h.logger.Warn("checkout session without package_id", "session_id", session.ID)
		return nil
	}

	// The payment intent is the idempotency key; fall back to the
	// session id for zero-amount sessions that carry none.
	paymentID := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		paymentID = session.PaymentIntent.ID
	}

	if err := h.billing.HandleCheckoutCompleted(ctx, userID, packageID, paymentID); err != nil {
		return fmt.Errorf("credit checkout: %w", err)
	}
	return nil
}
