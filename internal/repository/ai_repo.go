package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/finboard/finboard-api/internal/models"
)

// ========================================
// Conversation Repository
// ========================================

// SQLiteConversationRepository implements ConversationRepository for SQLite.
type SQLiteConversationRepository struct {
	db *sql.DB
}

// NewSQLiteConversationRepository creates a new SQLite conversation repository.
func NewSQLiteConversationRepository(db *sql.DB) *SQLiteConversationRepository {
	return &SQLiteConversationRepository{db: db}
}

func (r *SQLiteConversationRepository) Create(ctx context.Context, c *models.Conversation) error {
	if c.ID == "" {
		c.ID = ulid.Make().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ai_conversations (id, user_id, title, provider, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, c.Provider, c.Model,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	return err
}

func (r *SQLiteConversationRepository) GetByID(ctx context.Context, id, userID string) (*models.Conversation, error) {
	var c models.Conversation
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, provider, model, created_at, updated_at
		FROM ai_conversations WHERE id = ? AND user_id = ?`, id, userID).Scan(
		&c.ID, &c.UserID, &c.Title, &c.Provider, &c.Model, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

func (r *SQLiteConversationRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, provider, model, created_at, updated_at
		FROM ai_conversations WHERE user_id = ? ORDER BY updated_at DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var conversations []*models.Conversation
	for rows.Next() {
		var c models.Conversation
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Provider, &c.Model, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		conversations = append(conversations, &c)
	}

	return conversations, rows.Err()
}

func (r *SQLiteConversationRepository) UpdateTitle(ctx context.Context, id, userID, title string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE ai_conversations SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		title, time.Now().UTC().Format(time.RFC3339), id, userID)
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

// Touch bumps updated_at so the conversation sorts to the top of the list.
func (r *SQLiteConversationRepository) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE ai_conversations SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteConversationRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM ai_conversations WHERE id = ? AND user_id = ?`, id, userID)
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
// Message Repository
// ========================================

// SQLiteMessageRepository implements MessageRepository for SQLite.
type SQLiteMessageRepository struct {
	db *sql.DB
}

// NewSQLiteMessageRepository creates a new SQLite message repository.
func NewSQLiteMessageRepository(db *sql.DB) *SQLiteMessageRepository {
	return &SQLiteMessageRepository{db: db}
}

func (r *SQLiteMessageRepository) Create(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = ulid.Make().String()
	}
	m.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ai_messages (id, conversation_id, role, content, tokens_input, tokens_output, credits_charged, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.TokensInput, m.TokensOutput, m.CreditsCharged,
		m.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteMessageRepository) ListByConversationID(ctx context.Context, conversationID string) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, tokens_input, tokens_output, credits_charged, created_at
		FROM ai_messages WHERE conversation_id = ? ORDER BY created_at, id`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var messages []*models.Message
	for rows.Next() {
		var m models.Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content,
			&m.TokensInput, &m.TokensOutput, &m.CreditsCharged, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		messages = append(messages, &m)
	}

	return messages, rows.Err()
}

// ========================================
// AI Settings Repository
// ========================================

// SQLiteAISettingsRepository implements AISettingsRepository for SQLite.
type SQLiteAISettingsRepository struct {
	db *sql.DB
}

// NewSQLiteAISettingsRepository creates a new SQLite AI settings repository.
func NewSQLiteAISettingsRepository(db *sql.DB) *SQLiteAISettingsRepository {
	return &SQLiteAISettingsRepository{db: db}
}

func (r *SQLiteAISettingsRepository) Get(ctx context.Context, userID string) (*models.UserAISettings, error) {
	var s models.UserAISettings
	var customEnabled int
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, custom_enabled, custom_base_url, custom_model, api_key_encrypted, created_at, updated_at
		FROM user_ai_settings WHERE user_id = ?`, userID).Scan(
		&s.UserID, &customEnabled, &s.CustomBaseURL, &s.CustomModel, &s.APIKeyEncrypted, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.CustomEnabled = customEnabled != 0
	s.HasAPIKey = s.APIKeyEncrypted != ""
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &s, nil
}

func (r *SQLiteAISettingsRepository) Upsert(ctx context.Context, settings *models.UserAISettings) error {
	customEnabled := 0
	if settings.CustomEnabled {
		customEnabled = 1
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_ai_settings (user_id, custom_enabled, custom_base_url, custom_model, api_key_encrypted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			custom_enabled = excluded.custom_enabled,
			custom_base_url = excluded.custom_base_url,
			custom_model = excluded.custom_model,
			api_key_encrypted = CASE WHEN excluded.api_key_encrypted != '' THEN excluded.api_key_encrypted ELSE user_ai_settings.api_key_encrypted END,
			updated_at = excluded.updated_at`,
		settings.UserID, customEnabled, settings.CustomBaseURL, settings.CustomModel,
		settings.APIKeyEncrypted, now, now)
	return err
}

func (r *SQLiteAISettingsRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_ai_settings WHERE user_id = ?`, userID)
	return err
}
