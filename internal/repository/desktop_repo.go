package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/finboard/finboard-api/internal/models"
)

// ========================================
// Desktop Session Repository
// ========================================

// SQLiteDesktopSessionRepository implements DesktopSessionRepository for SQLite.
type SQLiteDesktopSessionRepository struct {
	db *sql.DB
}

// NewSQLiteDesktopSessionRepository creates a new SQLite desktop session repository.
func NewSQLiteDesktopSessionRepository(db *sql.DB) *SQLiteDesktopSessionRepository {
	return &SQLiteDesktopSessionRepository{db: db}
}

func (r *SQLiteDesktopSessionRepository) Get(ctx context.Context, userID string) (*models.DesktopSession, error) {
	var s models.DesktopSession
	var updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, snapshot_json, updated_at FROM desktop_sessions WHERE user_id = ?`,
		userID).Scan(&s.UserID, &s.SnapshotJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &s, nil
}

func (r *SQLiteDesktopSessionRepository) Upsert(ctx context.Context, session *models.DesktopSession) error {
	now := time.Now().UTC()
	session.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO desktop_sessions (user_id, snapshot_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			snapshot_json = excluded.snapshot_json,
			updated_at = excluded.updated_at`,
		session.UserID, session.SnapshotJSON, now.Format(time.RFC3339))
	return err
}
