package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/finboard/finboard-api/internal/models"
)

// ========================================
// Transaction Repository
// ========================================

// SQLiteTransactionRepository implements TransactionRepository for SQLite.
type SQLiteTransactionRepository struct {
	db *sql.DB
}

// NewSQLiteTransactionRepository creates a new SQLite transaction repository.
func NewSQLiteTransactionRepository(db *sql.DB) *SQLiteTransactionRepository {
	return &SQLiteTransactionRepository{db: db}
}

func (r *SQLiteTransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	now := time.Now().UTC()
	if tx.ID == "" {
		tx.ID = ulid.Make().String()
	}
	tx.CreatedAt = now
	tx.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, date, amount, description, category_id, source_id, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Date, tx.Amount, tx.Description, tx.CategoryID, tx.SourceID, tx.Notes,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	return err
}

func (r *SQLiteTransactionRepository) CreateBatch(ctx context.Context, txs []*models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx,
		`INSERT INTO transactions (id, user_id, date, amount, description, category_id, source_id, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, tx := range txs {
		if tx.ID == "" {
			tx.ID = ulid.Make().String()
		}
		tx.CreatedAt = now
		tx.UpdatedAt = now
		if _, err := stmt.ExecContext(ctx,
			tx.ID, tx.UserID, tx.Date, tx.Amount, tx.Description, tx.CategoryID, tx.SourceID, tx.Notes,
			now.Format(time.RFC3339), now.Format(time.RFC3339)); err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

func (r *SQLiteTransactionRepository) GetByID(ctx context.Context, id, userID string) (*models.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, date, amount, description, category_id, source_id, notes, created_at, updated_at
		FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *SQLiteTransactionRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, date, amount, description, category_id, source_id, notes, created_at, updated_at
		FROM transactions WHERE user_id = ? ORDER BY date DESC, id DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collectTransactions(rows)
}

func (r *SQLiteTransactionRepository) ListAll(ctx context.Context, userID string) ([]*models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, date, amount, description, category_id, source_id, notes, created_at, updated_at
		FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collectTransactions(rows)
}

func (r *SQLiteTransactionRepository) Update(ctx context.Context, tx *models.Transaction) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET date = ?, amount = ?, description = ?, category_id = ?, source_id = ?, notes = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		tx.Date, tx.Amount, tx.Description, tx.CategoryID, tx.SourceID, tx.Notes,
		time.Now().UTC().Format(time.RFC3339), tx.ID, tx.UserID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteTransactionRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// dateOnly normalizes a stored YYYY-MM-DD value. The libsql driver
// hands TEXT date columns back as RFC3339 timestamps, so scans strip
// the time part to restore the stored form.
func dateOnly(s string) string {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format("2006-01-02")
	}
	return s
}

func scanTransaction(s rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	var categoryID, sourceID sql.NullString
	var createdAt, updatedAt string

	if err := s.Scan(&tx.ID, &tx.UserID, &tx.Date, &tx.Amount, &tx.Description,
		&categoryID, &sourceID, &tx.Notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	tx.Date = dateOnly(tx.Date)

	if categoryID.Valid {
		tx.CategoryID = &categoryID.String
	}
	if sourceID.Valid {
		tx.SourceID = &sourceID.String
	}
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	tx.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &tx, nil
}

func collectTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	var transactions []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// ========================================
// Category Repository
// ========================================

// SQLiteCategoryRepository implements CategoryRepository for SQLite.
type SQLiteCategoryRepository struct {
	db *sql.DB
}

// NewSQLiteCategoryRepository creates a new SQLite category repository.
func NewSQLiteCategoryRepository(db *sql.DB) *SQLiteCategoryRepository {
	return &SQLiteCategoryRepository{db: db}
}

func (r *SQLiteCategoryRepository) Create(ctx context.Context, c *models.Category) error {
	if c.ID == "" {
		c.ID = ulid.Make().String()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, color, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Color, c.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteCategoryRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, color, created_at FROM categories WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var categories []*models.Category
	for rows.Next() {
		var c models.Category
		var createdAt string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		categories = append(categories, &c)
	}

	return categories, rows.Err()
}

func (r *SQLiteCategoryRepository) Update(ctx context.Context, c *models.Category) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, color = ? WHERE id = ? AND user_id = ?`,
		c.Name, c.Color, c.ID, c.UserID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteCategoryRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ========================================
// Source Repository
// ========================================

// SQLiteSourceRepository implements SourceRepository for SQLite.
type SQLiteSourceRepository struct {
	db *sql.DB
}

// NewSQLiteSourceRepository creates a new SQLite source repository.
func NewSQLiteSourceRepository(db *sql.DB) *SQLiteSourceRepository {
	return &SQLiteSourceRepository{db: db}
}

func (r *SQLiteSourceRepository) Create(ctx context.Context, s *models.Source) error {
	if s.ID == "" {
		s.ID = ulid.Make().String()
	}
	s.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (id, user_id, name, kind, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Name, s.Kind, s.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteSourceRepository) GetOrCreateByName(ctx context.Context, userID, name, kind string) (*models.Source, error) {
	var s models.Source
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, kind, created_at FROM sources WHERE user_id = ? AND name = ?`,
		userID, name).Scan(&s.ID, &s.UserID, &s.Name, &s.Kind, &createdAt)
	if err == nil {
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		return &s, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	s = models.Source{UserID: userID, Name: name, Kind: kind}
	if err := r.Create(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteSourceRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Source, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, kind, created_at FROM sources WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sources []*models.Source
	for rows.Next() {
		var s models.Source
		var createdAt string
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.Kind, &createdAt); err != nil {
			return nil, err
		}
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		sources = append(sources, &s)
	}

	return sources, rows.Err()
}

func (r *SQLiteSourceRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sources WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
