// Package service contains the business logic layer.
// Note: user accounts live in the identity provider; the UserID in
// services is the JWT subject claim.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/finboard/finboard-api/internal/config"
	"github.com/finboard/finboard-api/internal/models"
	"github.com/finboard/finboard-api/internal/repository"
	"github.com/finboard/finboard-api/internal/retry"
)

// ErrInsufficientCredits is returned when an operation needs credits
// the user does not have.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ClaimResult is the outcome of a successful daily claim.
type ClaimResult struct {
	Message        string `json:"message"`
	NewBalance     int    `json:"newBalance"`
	CreditsAwarded int    `json:"creditsAwarded"`
	ClaimDate      string `json:"claimDate"`
}

// BalanceInfo is the credit account plus claim-timer state for the UI.
type BalanceInfo struct {
	TotalCredits     int    `json:"totalCredits"`
	TotalEarned      int    `json:"totalEarned"`
	TotalSpent       int    `json:"totalSpent"`
	CanClaim         bool   `json:"canClaim"`
	NextResetIn      string `json:"nextResetIn"` // HH:MM:SS until next reference-timezone midnight
	NextResetSeconds int    `json:"nextResetSeconds"`
}

// CreditService owns the credit ledger: daily claims, AI usage
// spend/refund, and purchase recording. Day boundaries are computed in
// a single fixed reference timezone so every client agrees on "today".
type CreditService struct {
	repos  *repository.Repositories
	cfg    *config.Config
	loc    *time.Location
	logger *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewCreditService creates a new credit service.
func NewCreditService(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) *CreditService {
	loc, err := time.LoadLocation(cfg.ReferenceTimezone)
	if err != nil {
		// Config validation catches this at startup; fall back so a
		// bad runtime env degrades to UTC instead of crashing.
		logger.Warn("invalid reference timezone, falling back to UTC", "timezone", cfg.ReferenceTimezone)
		loc = time.UTC
	}
	return &CreditService{
		repos:  repos,
		cfg:    cfg,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// GetOrCreate loads the user's credit account, lazily inserting it
// with the starter grant on first access. The initial load is retried
// with backoff since it gates every credit operation.
func (s *CreditService) GetOrCreate(ctx context.Context, userID string) (*models.UserCredits, error) {
	var account *models.UserCredits
	err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
		var loadErr error
		account, loadErr = s.repos.Credits.Get(ctx, userID)
		return loadErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load credit account: %w", err)
	}
	if account != nil {
		return account, nil
	}

	account = &models.UserCredits{
		UserID:            userID,
		TotalCredits:      s.cfg.StarterCredits,
		TotalEarned:       s.cfg.StarterCredits,
		DailyCreditAmount: s.cfg.DailyCreditAmount,
	}
	if err := s.repos.Credits.Create(ctx, account); err != nil {
		// A concurrent first request may have won the insert
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return s.repos.Credits.Get(ctx, userID)
		}
		return nil, fmt.Errorf("failed to create credit account: %w", err)
	}

	s.logger.Info("credit account created", "user_id", userID, "starter_credits", s.cfg.StarterCredits)
	return account, nil
}

// ClaimDaily grants the user's daily credits at most once per
// reference-timezone day. Eligibility is decided by the repository's
// conditional update alone; a lost race surfaces as ErrAlreadyClaimed.
func (s *CreditService) ClaimDaily(ctx context.Context, userID string) (*ClaimResult, error) {
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	claimDate := s.today()
	newBalance, awarded, err := s.repos.Credits.ClaimDaily(ctx, userID, claimDate)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyClaimed) {
			return nil, repository.ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim daily credits: %w", err)
	}

	s.logger.Info("daily credits claimed", "user_id", userID, "awarded", awarded, "balance", newBalance)
	return &ClaimResult{
		Message:        fmt.Sprintf("Claimed %d daily credits", awarded),
		NewBalance:     newBalance,
		CreditsAwarded: awarded,
		ClaimDate:      claimDate,
	}, nil
}

// Balance returns the account plus whether a claim is available and
// the countdown to the next reset.
func (s *CreditService) Balance(ctx context.Context, userID string) (*BalanceInfo, error) {
	account, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	canClaim := account.LastDailyCredit == nil || *account.LastDailyCredit < today
	remaining, countdown := s.NextClaimReset(s.now())

	return &BalanceInfo{
		TotalCredits:     account.TotalCredits,
		TotalEarned:      account.TotalEarned,
		TotalSpent:       account.TotalSpent,
		CanClaim:         canClaim,
		NextResetIn:      countdown,
		NextResetSeconds: int(remaining.Seconds()),
	}, nil
}

// Spend deducts credits with the balance floored at zero and returns
// the new balance.
func (s *CreditService) Spend(ctx context.Context, userID string, amount int, description string, conversationID *string) (int, error) {
	if amount <= 0 {
		account, err := s.GetOrCreate(ctx, userID)
		if err != nil {
			return 0, err
		}
		return account.TotalCredits, nil
	}
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return 0, err
	}
	return s.repos.Credits.Spend(ctx, userID, amount, description, conversationID)
}

// Refund returns credits to the user, decrementing total_spent floored
// at zero.
func (s *CreditService) Refund(ctx context.Context, userID string, amount int, description string, conversationID *string) (int, error) {
	if amount <= 0 {
		account, err := s.GetOrCreate(ctx, userID)
		if err != nil {
			return 0, err
		}
		return account.TotalCredits, nil
	}
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return 0, err
	}
	return s.repos.Credits.Refund(ctx, userID, amount, description, conversationID)
}

// AddPurchase credits a completed Stripe checkout. Duplicate payment
// ids return repository.ErrDuplicatePayment, which webhook retries
// swallow.
func (s *CreditService) AddPurchase(ctx context.Context, userID string, pkg config.CreditPackage, stripePaymentID string) (int, error) {
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return 0, err
	}
	description := fmt.Sprintf("Purchased %s (%d credits)", pkg.Name, pkg.TotalCredits())
	balance, err := s.repos.Credits.AddPurchase(ctx, userID, pkg.TotalCredits(), stripePaymentID, description)
	if err != nil {
		return 0, err
	}
	s.logger.Info("purchase credited", "user_id", userID, "package", pkg.ID, "credits", pkg.TotalCredits(), "balance", balance)
	return balance, nil
}

// Transactions lists ledger entries newest first.
func (s *CreditService) Transactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repos.CreditTransaction.GetByUserID(ctx, userID, limit, offset)
}

// NextClaimReset returns the duration until the next reference-timezone
// midnight and an HH:MM:SS countdown string.
func (s *CreditService) NextClaimReset(now time.Time) (time.Duration, string) {
	local := now.In(s.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, s.loc)
	remaining := midnight.Sub(local)

	total := int(remaining.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	return remaining, fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

// today is the current date in the reference timezone.
func (s *CreditService) today() string {
	return s.now().In(s.loc).Format("2006-01-02")
}
