// Package models defines the domain models for the application.
// UserID fields reference the subject claim of the caller's JWT; user
// accounts themselves are managed by the identity provider, not here.
package models

import (
	"time"
)

// CreditTransactionType classifies a ledger entry.
type CreditTransactionType string

const (
	CreditEarned     CreditTransactionType = "earned"
	CreditSpent      CreditTransactionType = "spent"
	CreditPurchased  CreditTransactionType = "purchased"
	CreditDailyBonus CreditTransactionType = "daily_bonus"
	CreditRefund     CreditTransactionType = "refund"
)

// UserCredits is the per-user credit account. TotalCredits is derived
// state kept consistent with the transaction ledger inside a single
// SQL transaction per mutation. LastDailyCredit is a YYYY-MM-DD date
// in the fixed reference timezone so claim eligibility is a plain
// string comparison.
type UserCredits struct {
	UserID            string    `json:"user_id"`
	TotalCredits      int       `json:"total_credits"`
	TotalEarned       int       `json:"total_earned"`
	TotalSpent        int       `json:"total_spent"`
	LastDailyCredit   *string   `json:"last_daily_credit,omitempty"`
	DailyCreditAmount int       `json:"daily_credit_amount"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CreditTransaction is one immutable ledger entry. Amount is signed:
// positive for earned/purchased/daily_bonus/refund, negative for spent.
type CreditTransaction struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	Type            CreditTransactionType `json:"type"`
	Amount          int                   `json:"amount"`
	BalanceAfter    int                   `json:"balance_after"`
	Description     string                `json:"description"`
	StripePaymentID *string               `json:"stripe_payment_id,omitempty"`
	ConversationID  *string               `json:"conversation_id,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

// Transaction is a single financial transaction (imported or manual).
type Transaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Date        string    `json:"date"` // YYYY-MM-DD
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	CategoryID  *string   `json:"category_id,omitempty"`
	SourceID    *string   `json:"source_id,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Category groups transactions for reporting.
type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"` // Hex color for display
	CreatedAt time.Time `json:"created_at"`
}

// Source identifies where transactions came from (a bank account,
// card, or manual entry).
type Source struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"` // bank, card, cash, import
	CreatedAt time.Time `json:"created_at"`
}

// MessageRole identifies who authored a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Conversation is an AI chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single turn in a conversation.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	TokensInput    int         `json:"tokens_input"`
	TokensOutput   int         `json:"tokens_output"`
	CreditsCharged int         `json:"credits_charged"`
	CreatedAt      time.Time   `json:"created_at"`
}

// DesktopSession is a persisted snapshot of a user's desktop layout.
// SnapshotJSON holds a serialized desktop.Snapshot; the server treats
// it as opaque beyond schema validation at the API layer.
type DesktopSession struct {
	UserID       string    `json:"user_id"`
	SnapshotJSON string    `json:"snapshot_json"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserAISettings holds a user's custom OpenAI-compatible endpoint.
// APIKeyEncrypted is AES-256-GCM encrypted at rest and never returned
// to clients.
type UserAISettings struct {
	UserID          string    `json:"user_id"`
	CustomEnabled   bool      `json:"custom_enabled"`
	CustomBaseURL   string    `json:"custom_base_url,omitempty"`
	CustomModel     string    `json:"custom_model,omitempty"`
	APIKeyEncrypted string    `json:"-"`
	HasAPIKey       bool      `json:"has_api_key"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
