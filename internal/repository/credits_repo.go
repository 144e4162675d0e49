package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/finboard/finboard-api/internal/models"
)

// ========================================
// Credits Repository
// ========================================

// SQLiteCreditsRepository implements CreditsRepository for SQLite.
// Every mutation writes the account update and its ledger row in a
// single transaction so the balance and the audit trail cannot drift.
type SQLiteCreditsRepository struct {
	db *sql.DB
}

// NewSQLiteCreditsRepository creates a new SQLite credits repository.
func NewSQLiteCreditsRepository(db *sql.DB) *SQLiteCreditsRepository {
	return &SQLiteCreditsRepository{db: db}
}

func (r *SQLiteCreditsRepository) Get(ctx context.Context, userID string) (*models.UserCredits, error) {
	query := `SELECT user_id, total_credits, total_earned, total_spent, last_daily_credit, daily_credit_amount, created_at, updated_at
		FROM user_credits WHERE user_id = ?`
	var c models.UserCredits
	var lastDaily sql.NullString
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&c.UserID, &c.TotalCredits, &c.TotalEarned, &c.TotalSpent, &lastDaily, &c.DailyCreditAmount, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastDaily.Valid {
		d := dateOnly(lastDaily.String)
		c.LastDailyCredit = &d
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

func (r *SQLiteCreditsRepository) Create(ctx context.Context, credits *models.UserCredits) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_credits (user_id, total_credits, total_earned, total_spent, last_daily_credit, daily_credit_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		credits.UserID, credits.TotalCredits, credits.TotalEarned, credits.TotalSpent,
		credits.LastDailyCredit, credits.DailyCreditAmount, now, now)
	if err != nil {
		return err
	}

	if credits.TotalCredits > 0 {
		if err := insertLedgerRow(ctx, tx, &models.CreditTransaction{
			UserID:       credits.UserID,
			Type:         models.CreditEarned,
			Amount:       credits.TotalCredits,
			BalanceAfter: credits.TotalCredits,
			Description:  "Welcome starter credits",
		}); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ClaimDaily grants the daily amount at most once per claimDate.
// The conditional update is the only eligibility check: a concurrent
// claim loses the race and sees RowsAffected == 0.
func (r *SQLiteCreditsRepository) ClaimDaily(ctx context.Context, userID, claimDate string) (int, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := tx.ExecContext(ctx,
		`UPDATE user_credits
		SET total_credits = total_credits + daily_credit_amount,
			total_earned = total_earned + daily_credit_amount,
			last_daily_credit = ?,
			updated_at = ?
		WHERE user_id = ? AND (last_daily_credit IS NULL OR last_daily_credit < ?)`,
		claimDate, now, userID, claimDate)
	if err != nil {
		return 0, 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, 0, err
	}
	if affected == 0 {
		return 0, 0, ErrAlreadyClaimed
	}

	var balance, amount int
	if err := tx.QueryRowContext(ctx,
		`SELECT total_credits, daily_credit_amount FROM user_credits WHERE user_id = ?`,
		userID).Scan(&balance, &amount); err != nil {
		return 0, 0, err
	}

	if err := insertLedgerRow(ctx, tx, &models.CreditTransaction{
		UserID:       userID,
		Type:         models.CreditDailyBonus,
		Amount:       amount,
		BalanceAfter: balance,
		Description:  fmt.Sprintf("Daily credit for %s", claimDate),
	}); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return balance, amount, nil
}

func (r *SQLiteCreditsRepository) Spend(ctx context.Context, userID string, amount int, description string, conversationID *string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int
	if err := tx.QueryRowContext(ctx,
		`SELECT total_credits FROM user_credits WHERE user_id = ?`, userID).Scan(&balance); err != nil {
		return 0, err
	}

	// Balance floors at zero; the ledger records what was actually
	// deducted, which may be less than the requested amount.
	deducted := amount
	if deducted > balance {
		deducted = balance
	}
	newBalance := balance - deducted

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_credits SET total_credits = ?, total_spent = total_spent + ?, updated_at = ? WHERE user_id = ?`,
		newBalance, deducted, now, userID); err != nil {
		return 0, err
	}

	if err := insertLedgerRow(ctx, tx, &models.CreditTransaction{
		UserID:         userID,
		Type:           models.CreditSpent,
		Amount:         -deducted,
		BalanceAfter:   newBalance,
		Description:    description,
		ConversationID: conversationID,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *SQLiteCreditsRepository) Refund(ctx context.Context, userID string, amount int, description string, conversationID *string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_credits
		SET total_credits = total_credits + ?,
			total_spent = MAX(total_spent - ?, 0),
			updated_at = ?
		WHERE user_id = ?`,
		amount, amount, now, userID); err != nil {
		return 0, err
	}

	var balance int
	if err := tx.QueryRowContext(ctx,
		`SELECT total_credits FROM user_credits WHERE user_id = ?`, userID).Scan(&balance); err != nil {
		return 0, err
	}

	if err := insertLedgerRow(ctx, tx, &models.CreditTransaction{
		UserID:         userID,
		Type:           models.CreditRefund,
		Amount:         amount,
		BalanceAfter:   balance,
		Description:    description,
		ConversationID: conversationID,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *SQLiteCreditsRepository) AddPurchase(ctx context.Context, userID string, amount int, stripePaymentID, description string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int
	if err := tx.QueryRowContext(ctx,
		`SELECT total_credits FROM user_credits WHERE user_id = ?`, userID).Scan(&balance); err != nil {
		return 0, err
	}
	newBalance := balance + amount

	// The ledger insert goes first: its UNIQUE(stripe_payment_id)
	// constraint aborts duplicate webhook deliveries before the
	// account is touched.
	err = insertLedgerRow(ctx, tx, &models.CreditTransaction{
		UserID:          userID,
		Type:            models.CreditPurchased,
		Amount:          amount,
		BalanceAfter:    newBalance,
		Description:     description,
		StripePaymentID: &stripePaymentID,
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, ErrDuplicatePayment
		}
		return 0, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_credits SET total_credits = ?, total_earned = total_earned + ?, updated_at = ? WHERE user_id = ?`,
		newBalance, amount, now, userID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// insertLedgerRow appends one credit_transactions row inside tx,
// assigning a fresh ULID and timestamp.
func insertLedgerRow(ctx context.Context, tx *sql.Tx, row *models.CreditTransaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO credit_transactions (id, user_id, type, amount, balance_after, description, stripe_payment_id, conversation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ulid.Make().String(), row.UserID, row.Type, row.Amount, row.BalanceAfter,
		row.Description, row.StripePaymentID, row.ConversationID,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// ========================================
// Credit Transaction Repository
// ========================================

// SQLiteCreditTransactionRepository implements CreditTransactionRepository for SQLite.
type SQLiteCreditTransactionRepository struct {
	db *sql.DB
}

// NewSQLiteCreditTransactionRepository creates a new SQLite credit transaction repository.
func NewSQLiteCreditTransactionRepository(db *sql.DB) *SQLiteCreditTransactionRepository {
	return &SQLiteCreditTransactionRepository{db: db}
}

func (r *SQLiteCreditTransactionRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error) {
	query := `SELECT id, user_id, type, amount, balance_after, description, stripe_payment_id, conversation_id, created_at
		FROM credit_transactions WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var transactions []*models.CreditTransaction
	for rows.Next() {
		tx, err := scanCreditTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func (r *SQLiteCreditTransactionRepository) GetByStripePaymentID(ctx context.Context, stripePaymentID string) (*models.CreditTransaction, error) {
	query := `SELECT id, user_id, type, amount, balance_after, description, stripe_payment_id, conversation_id, created_at
		FROM credit_transactions WHERE stripe_payment_id = ?`

	row := r.db.QueryRowContext(ctx, query, stripePaymentID)
	tx, err := scanCreditTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCreditTransaction(s rowScanner) (*models.CreditTransaction, error) {
	var tx models.CreditTransaction
	var stripePaymentID, conversationID sql.NullString
	var createdAt string

	if err := s.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.BalanceAfter,
		&tx.Description, &stripePaymentID, &conversationID, &createdAt); err != nil {
		return nil, err
	}

	if stripePaymentID.Valid {
		tx.StripePaymentID = &stripePaymentID.String
	}
	if conversationID.Valid {
		tx.ConversationID = &conversationID.String
	}
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &tx, nil
}
