package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/finboard/finboard-api/internal/models"
	"github.com/finboard/finboard-api/internal/repository"
	"github.com/finboard/finboard-api/internal/service"
)

// CreditsHandler handles the credit ledger endpoints.
type CreditsHandler struct {
	credits *service.CreditService
}

// NewCreditsHandler creates a new credits handler.
func NewCreditsHandler(credits *service.CreditService) *CreditsHandler {
	return &CreditsHandler{credits: credits}
}

// BalanceOutput represents the balance response.
type BalanceOutput struct {
	Body service.BalanceInfo
}

// GetBalance returns the user's balance and claim-timer state.
func (h *CreditsHandler) GetBalance(ctx context.Context, input *struct{}) (*BalanceOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	info, err := h.credits.Balance(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load balance")
	}
	return &BalanceOutput{Body: *info}, nil
}

// ClaimDailyOutput represents a successful daily claim.
type ClaimDailyOutput struct {
	Body service.ClaimResult
}

// ClaimDaily grants the daily credits, at most once per day.
func (h *CreditsHandler) ClaimDaily(ctx context.Context, input *struct{}) (*ClaimDailyOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	result, err := h.credits.ClaimDaily(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyClaimed) {
			return nil, huma.Error429TooManyRequests("daily credits already claimed today")
		}
		return nil, huma.Error500InternalServerError("failed to claim daily credits")
	}
	return &ClaimDailyOutput{Body: *result}, nil
}

// ListCreditTransactionsInput represents the ledger page request.
type ListCreditTransactionsInput struct {
	Limit  int `query:"limit" default:"50" minimum:"1" maximum:"100" doc:"Page size"`
	Offset int `query:"offset" default:"0" minimum:"0" doc:"Page offset"`
}

// ListCreditTransactionsOutput represents a page of ledger entries.
type ListCreditTransactionsOutput struct {
	Body struct {
		Transactions []*models.CreditTransaction `json:"transactions"`
	}
}

// ListTransactions returns the user's credit ledger, newest first.
func (h *CreditsHandler) ListTransactions(ctx context.Context, input *ListCreditTransactionsInput) (*ListCreditTransactionsOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	entries, err := h.credits.Transactions(ctx, userID, input.Limit, input.Offset)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load transactions")
	}

	out := &ListCreditTransactionsOutput{}
	out.Body.Transactions = entries
	if out.Body.Transactions == nil {
		out.Body.Transactions = []*models.CreditTransaction{}
	}
	return out, nil
}
