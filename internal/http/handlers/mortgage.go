package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/finboard/finboard-api/internal/service"
)

// MortgageHandler handles the mortgage calculator endpoint.
type MortgageHandler struct {
	mortgage *service.MortgageService
}

// NewMortgageHandler creates a new mortgage handler.
func NewMortgageHandler(mortgage *service.MortgageService) *MortgageHandler {
	return &MortgageHandler{mortgage: mortgage}
}

// CalculateMortgageInput represents the loan terms.
type CalculateMortgageInput struct {
	Body service.MortgageRequest
}

// CalculateMortgageOutput represents the amortization result.
type CalculateMortgageOutput struct {
	Body service.MortgageResult
}

// Calculate amortizes a fixed-rate mortgage.
func (h *MortgageHandler) Calculate(ctx context.Context, input *CalculateMortgageInput) (*CalculateMortgageOutput, error) {
	result, err := h.mortgage.Calculate(input.Body)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("mortgage calculation failed")
	}
	return &CalculateMortgageOutput{Body: *result}, nil
}
