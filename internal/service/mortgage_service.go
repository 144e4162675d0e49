package service

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput marks validation failures that map to HTTP 400.
var ErrInvalidInput = errors.New("invalid input")

// MortgageRequest are the loan terms to amortize.
type MortgageRequest struct {
	HomePrice   float64 `json:"homePrice"`
	DownPayment float64 `json:"downPayment"`
	AnnualRate  float64 `json:"annualRate"` // percent, e.g. 6.25
	TermYears   int     `json:"termYears"`
}

// MortgageResult is the amortization outcome.
type MortgageResult struct {
	LoanAmount     float64 `json:"loanAmount"`
	MonthlyPayment float64 `json:"monthlyPayment"`
	TotalPaid      float64 `json:"totalPaid"`
	TotalInterest  float64 `json:"totalInterest"`
}

// MortgageService computes fixed-rate mortgage payments.
type MortgageService struct{}

// NewMortgageService creates a new mortgage service.
func NewMortgageService() *MortgageService {
	return &MortgageService{}
}

// Calculate amortizes a fixed-rate loan. A zero rate degrades to
// straight-line principal division instead of dividing by zero.
func (s *MortgageService) Calculate(req MortgageRequest) (*MortgageResult, error) {
	if err := validateMortgage(req); err != nil {
		return nil, err
	}

	loanAmount := req.HomePrice - req.DownPayment
	n := float64(req.TermYears * 12)

	var monthlyPayment float64
	if req.AnnualRate == 0 {
		monthlyPayment = loanAmount / n
	} else {
		r := req.AnnualRate / 100 / 12
		monthlyPayment = loanAmount * r / (1 - math.Pow(1+r, -n))
	}

	totalPaid := monthlyPayment * n
	totalInterest := totalPaid - loanAmount

	for _, v := range []float64{monthlyPayment, totalPaid, totalInterest} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("mortgage calculation produced a non-finite result")
		}
	}

	return &MortgageResult{
		LoanAmount:     loanAmount,
		MonthlyPayment: monthlyPayment,
		TotalPaid:      totalPaid,
		TotalInterest:  totalInterest,
	}, nil
}

func validateMortgage(req MortgageRequest) error {
	switch {
	case req.HomePrice <= 0:
		return fmt.Errorf("%w: homePrice must be positive", ErrInvalidInput)
	case req.DownPayment < 0:
		return fmt.Errorf("%w: downPayment cannot be negative", ErrInvalidInput)
	case req.DownPayment > req.HomePrice:
		return fmt.Errorf("%w: downPayment cannot exceed homePrice", ErrInvalidInput)
	case req.AnnualRate < 0:
		return fmt.Errorf("%w: annualRate cannot be negative", ErrInvalidInput)
	case req.TermYears <= 0:
		return fmt.Errorf("%w: termYears must be positive", ErrInvalidInput)
	}
	return nil
}
