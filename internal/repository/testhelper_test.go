package repository

import (
	"database/sql"
	"testing"

	"github.com/finboard/finboard-api/internal/database/migrations"
	_ "github.com/tursodatabase/go-libsql"
)

// setupTestDB opens an in-memory database with the full schema applied
// and closes it when the test finishes. A single connection is enforced
// so concurrent subtests hit the same in-memory instance.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	return NewRepositories(setupTestDB(t))
}

// InsertTestCreditAccount is a helper to insert a credit account directly.
func InsertTestCreditAccount(t *testing.T, db *sql.DB, userID string, totalCredits, dailyAmount int, lastDailyCredit *string) {
	t.Helper()
	query := `
		INSERT INTO user_credits (user_id, total_credits, total_earned, total_spent, last_daily_credit, daily_credit_amount, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, datetime('now'), datetime('now'))
	`
	if _, err := db.Exec(query, userID, totalCredits, totalCredits, lastDailyCredit, dailyAmount); err != nil {
		t.Fatalf("failed to insert test credit account: %v", err)
	}
}

// InsertTestTransaction is a helper to insert a financial transaction directly.
func InsertTestTransaction(t *testing.T, db *sql.DB, id, userID, date string, amount float64, description string) {
	t.Helper()
	query := `
		INSERT INTO transactions (id, user_id, date, amount, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'), datetime('now'))
	`
	if _, err := db.Exec(query, id, userID, date, amount, description); err != nil {
		t.Fatalf("failed to insert test transaction: %v", err)
	}
}

// InsertTestConversation is a helper to insert a conversation directly.
func InsertTestConversation(t *testing.T, db *sql.DB, id, userID, provider string) {
	t.Helper()
	query := `
		INSERT INTO ai_conversations (id, user_id, title, provider, model, created_at, updated_at)
		VALUES (?, ?, 'Test conversation', ?, '', datetime('now'), datetime('now'))
	`
	if _, err := db.Exec(query, id, userID, provider); err != nil {
		t.Fatalf("failed to insert test conversation: %v", err)
	}
}
