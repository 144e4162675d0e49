// Package repository defines repository interfaces for data access.
// Note: user accounts live in the identity provider; user_id fields
// hold the JWT subject claim.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/finboard/finboard-api/internal/models"
)

// Sentinel errors returned by repository methods. Services translate
// these into HTTP status codes at the handler boundary.
var (
	// ErrAlreadyClaimed means the daily credit conditional update
	// matched no row: the user already claimed on or after the cutoff.
	ErrAlreadyClaimed = errors.New("daily credit already claimed")

	// ErrDuplicatePayment means a ledger row with the same Stripe
	// payment id already exists. Purchase recording is idempotent.
	ErrDuplicatePayment = errors.New("payment already recorded")

	// ErrNotFound is returned by Update/Delete when the row is missing.
	ErrNotFound = errors.New("not found")
)

// CreditsRepository defines methods for credit account data access.
// The mutation methods are atomic: the account update and the matching
// ledger row are written in one SQL transaction, and the returned int
// is the balance after the mutation.
type CreditsRepository interface {
	// Get returns the account, or (nil, nil) when none exists.
	Get(ctx context.Context, userID string) (*models.UserCredits, error)
	// Create inserts a new account row (used for the starter grant).
	Create(ctx context.Context, credits *models.UserCredits) error
	// ClaimDaily grants the account's daily amount if last_daily_credit
	// is null or before claimDate (YYYY-MM-DD in the reference
	// timezone). Eligibility is decided solely by the conditional
	// update: RowsAffected == 0 on an existing account means
	// ErrAlreadyClaimed. Returns (newBalance, amountGranted, error).
	ClaimDaily(ctx context.Context, userID, claimDate string) (int, int, error)
	// Spend deducts amount, flooring the balance at zero. The ledger
	// records the actual deduction as a negative amount.
	Spend(ctx context.Context, userID string, amount int, description string, conversationID *string) (int, error)
	// Refund adds amount back and decrements total_spent floored at zero.
	Refund(ctx context.Context, userID string, amount int, description string, conversationID *string) (int, error)
	// AddPurchase credits a Stripe purchase. A duplicate payment id
	// leaves the account untouched and returns ErrDuplicatePayment.
	AddPurchase(ctx context.Context, userID string, amount int, stripePaymentID, description string) (int, error)
}

// CreditTransactionRepository defines read access to the credit ledger.
// Ledger rows are written by CreditsRepository mutations.
type CreditTransactionRepository interface {
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error)
	GetByStripePaymentID(ctx context.Context, stripePaymentID string) (*models.CreditTransaction, error)
}

// TransactionRepository defines methods for financial transaction data access.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	// CreateBatch inserts all rows in one SQL transaction.
	CreateBatch(ctx context.Context, txs []*models.Transaction) error
	GetByID(ctx context.Context, id, userID string) (*models.Transaction, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error)
	// ListAll returns every transaction for a user, used for import
	// deduplication against existing rows.
	ListAll(ctx context.Context, userID string) ([]*models.Transaction, error)
	Update(ctx context.Context, tx *models.Transaction) error
	Delete(ctx context.Context, id, userID string) error
}

// CategoryRepository defines methods for category data access.
type CategoryRepository interface {
	Create(ctx context.Context, c *models.Category) error
	ListByUserID(ctx context.Context, userID string) ([]*models.Category, error)
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id, userID string) error
}

// SourceRepository defines methods for source data access.
type SourceRepository interface {
	Create(ctx context.Context, s *models.Source) error
	// GetOrCreateByName returns the user's source with that name,
	// creating it if missing (imports name their source).
	GetOrCreateByName(ctx context.Context, userID, name, kind string) (*models.Source, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.Source, error)
	Delete(ctx context.Context, id, userID string) error
}

// ConversationRepository defines methods for AI conversation data access.
type ConversationRepository interface {
	Create(ctx context.Context, c *models.Conversation) error
	GetByID(ctx context.Context, id, userID string) (*models.Conversation, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Conversation, error)
	UpdateTitle(ctx context.Context, id, userID, title string) error
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id, userID string) error
}

// MessageRepository defines methods for AI message data access.
type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	ListByConversationID(ctx context.Context, conversationID string) ([]*models.Message, error)
}

// DesktopSessionRepository persists one workspace snapshot per user.
type DesktopSessionRepository interface {
	Get(ctx context.Context, userID string) (*models.DesktopSession, error)
	Upsert(ctx context.Context, session *models.DesktopSession) error
}

// AISettingsRepository defines methods for per-user AI endpoint settings.
type AISettingsRepository interface {
	Get(ctx context.Context, userID string) (*models.UserAISettings, error)
	Upsert(ctx context.Context, settings *models.UserAISettings) error
	Delete(ctx context.Context, userID string) error
}

// Repositories holds all repository instances.
type Repositories struct {
	Credits           CreditsRepository
	CreditTransaction CreditTransactionRepository
	Transaction       TransactionRepository
	Category          CategoryRepository
	Source            SourceRepository
	Conversation      ConversationRepository
	Message           MessageRepository
	DesktopSession    DesktopSessionRepository
	AISettings        AISettingsRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Credits:           NewSQLiteCreditsRepository(db),
		CreditTransaction: NewSQLiteCreditTransactionRepository(db),
		Transaction:       NewSQLiteTransactionRepository(db),
		Category:          NewSQLiteCategoryRepository(db),
		Source:            NewSQLiteSourceRepository(db),
		Conversation:      NewSQLiteConversationRepository(db),
		Message:           NewSQLiteMessageRepository(db),
		DesktopSession:    NewSQLiteDesktopSessionRepository(db),
		AISettings:        NewSQLiteAISettingsRepository(db),
	}
}
