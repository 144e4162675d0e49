package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/finboard/finboard-api/internal/config"
	"github.com/finboard/finboard-api/internal/service"
)

// BillingHandler handles credit purchase endpoints.
type BillingHandler struct {
	billing *service.BillingService
}

// NewBillingHandler creates a new billing handler.
func NewBillingHandler(billing *service.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// ListPackagesOutput is the purchasable package catalog.
type ListPackagesOutput struct {
	Body struct {
		Packages []config.CreditPackage `json:"packages"`
	}
}

// ListPackages returns the credit packages. Public, no auth required.
func (h *BillingHandler) ListPackages(ctx context.Context, input *struct{}) (*ListPackagesOutput, error) {
	out := &ListPackagesOutput{}
	out.Body.Packages = h.billing.Packages()
	return out, nil
}

// CreateCheckoutInput selects which package to buy.
type CreateCheckoutInput struct {
	Body struct {
		PackageID string `json:"packageId" minLength:"1" doc:"Credit package id"`
	}
}

// CreateCheckoutOutput carries the Stripe redirect.
type CreateCheckoutOutput struct {
	Body service.CheckoutSession
}

// CreateCheckout starts a Stripe checkout for a credit package.
func (h *BillingHandler) CreateCheckout(ctx context.Context, input *CreateCheckoutInput) (*CreateCheckoutOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	session, err := h.billing.CreateCheckoutSession(ctx, userID, input.Body.PackageID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPackage) {
			return nil, huma.Error400BadRequest("unknown credit package")
		}
		return nil, huma.Error502BadGateway("failed to create checkout session")
	}
	return &CreateCheckoutOutput{Body: *session}, nil
}
