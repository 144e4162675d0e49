package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"

	"github.com/finboard/finboard-api/internal/config"
	"github.com/finboard/finboard-api/internal/repository"
)

// ErrUnknownPackage indicates a checkout request for a package id that is
// not in the catalog.
var ErrUnknownPackage = errors.New("unknown credit package")

// CheckoutSession is returned to the client so it can redirect to Stripe.
type CheckoutSession struct {
	SessionID   string `json:"sessionId"`
	CheckoutURL string `json:"checkoutUrl"`
}

// BillingService creates Stripe checkout sessions for credit packages and
// applies completed payments to user balances.
type BillingService struct {
	cfg     *config.Config
	billing config.BillingConfig
	credits *CreditService
	logger  *slog.Logger
}

// NewBillingService creates a billing service. Setting stripe.Key here means
// all package-level Stripe calls are authenticated.
func NewBillingService(cfg *config.Config, billing config.BillingConfig, credits *CreditService, logger *slog.Logger) *BillingService {
	stripe.Key = cfg.StripeSecretKey
	return &BillingService{
		cfg:     cfg,
		billing: billing,
		credits: credits,
		logger:  logger,
	}
}

// Packages returns the purchasable credit package catalog.
func (s *BillingService) Packages() []config.CreditPackage {
	return s.billing.Packages
}

// CreateCheckoutSession starts a Stripe checkout for the given package. The
// user and package ids travel in session metadata so the webhook can credit
// the right account when payment completes.
func (s *BillingService) CreateCheckoutSession(ctx context.Context, userID, packageID string) (*CheckoutSession, error) {
	pkg, ok := s.billing.GetPackage(packageID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, packageID)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(pkg.Name),
						Description: stripe.String(fmt.Sprintf("%d credits", pkg.TotalCredits())),
					},
					UnitAmount: stripe.Int64(pkg.PriceCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.cfg.StripeSuccessURL),
		CancelURL:  stripe.String(s.cfg.StripeCancelURL),
		Metadata: map[string]string{
			"user_id":    userID,
			"package_id": pkg.ID,
		},
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.Info("checkout session created",
		"user_id", userID,
		"package_id", pkg.ID,
		"session_id", sess.ID)

	return &CheckoutSession{
		SessionID:   sess.ID,
		CheckoutURL: sess.URL,
	}, nil
}

// HandleCheckoutCompleted credits the purchased package to the user. Called
// from the Stripe webhook; duplicate deliveries of the same payment are
// ignored so webhook retries stay safe.
func (s *BillingService) HandleCheckoutCompleted(ctx context.Context, userID, packageID, paymentID string) error {
	pkg, ok := s.billing.GetPackage(packageID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPackage, packageID)
	}

	balance, err := s.credits.AddPurchase(ctx, userID, pkg, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicatePayment) {
			s.logger.Info("duplicate checkout payment ignored",
				"user_id", userID,
				"payment_id", paymentID)
			return nil
		}
		return fmt.Errorf("failed to credit purchase: %w", err)
	}

	s.logger.Info("purchase credited",
		"user_id", userID,
		"package_id", pkg.ID,
		"credits", pkg.TotalCredits(),
		"new_balance", balance)
	return nil
}
