package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/finboard/finboard-api/internal/crypto"
	"github.com/finboard/finboard-api/internal/models"
	"github.com/finboard/finboard-api/internal/repository"
)

// ErrInvalidSettings indicates a settings update that fails validation.
var ErrInvalidSettings = errors.New("invalid AI settings")

// AISettingsUpdate carries a settings change from the client. APIKey is the
// plaintext key; leaving it empty keeps any previously stored key.
type AISettingsUpdate struct {
	CustomEnabled bool   `json:"custom_enabled"`
	CustomBaseURL string `json:"custom_base_url"`
	CustomModel   string `json:"custom_model"`
	APIKey        string `json:"api_key,omitempty"`
}

// AISettingsService manages per-user custom AI endpoint configuration.
// API keys are encrypted before they reach the repository.
type AISettingsService struct {
	repos     *repository.Repositories
	encryptor *crypto.Encryptor
	logger    *slog.Logger
}

// NewAISettingsService creates an AI settings service. The encryptor may be
// nil when no encryption key is configured; storing API keys is then
// rejected.
func NewAISettingsService(repos *repository.Repositories, encryptor *crypto.Encryptor, logger *slog.Logger) *AISettingsService {
	return &AISettingsService{repos: repos, encryptor: encryptor, logger: logger}
}

// Get returns the user's settings with the key masked, or defaults when
// nothing has been saved.
func (s *AISettingsService) Get(ctx context.Context, userID string) (*models.UserAISettings, error) {
	settings, err := s.repos.AISettings.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load AI settings: %w", err)
	}
	if settings == nil {
		return &models.UserAISettings{UserID: userID}, nil
	}
	settings.APIKeyEncrypted = ""
	return settings, nil
}

// Update validates and persists the user's custom endpoint settings. An
// empty APIKey keeps the stored key so clients never have to echo it back.
func (s *AISettingsService) Update(ctx context.Context, userID string, update AISettingsUpdate) (*models.UserAISettings, error) {
	update.CustomBaseURL = strings.TrimSpace(update.CustomBaseURL)
	update.CustomModel = strings.TrimSpace(update.CustomModel)

	if update.CustomEnabled {
		if update.CustomBaseURL == "" {
			return nil, fmt.Errorf("%w: base URL is required when the custom provider is enabled", ErrInvalidSettings)
		}
		u, err := url.Parse(update.CustomBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("%w: base URL must be a valid http(s) URL", ErrInvalidSettings)
		}
	}

	var encrypted string
	if update.APIKey != "" {
		if s.encryptor == nil {
			return nil, fmt.Errorf("%w: API key storage is not configured on this server", ErrInvalidSettings)
		}
		var err error
		encrypted, err = s.encryptor.Encrypt(update.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt API key: %w", err)
		}
	}

	now := time.Now()
	settings := &models.UserAISettings{
		UserID:          userID,
		CustomEnabled:   update.CustomEnabled,
		CustomBaseURL:   update.CustomBaseURL,
		CustomModel:     update.CustomModel,
		APIKeyEncrypted: encrypted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repos.AISettings.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save AI settings: %w", err)
	}

	s.logger.Info("AI settings updated",
		"user_id", userID,
		"custom_enabled", update.CustomEnabled,
		"key_rotated", update.APIKey != "")
	return s.Get(ctx, userID)
}

// Delete removes the user's custom endpoint settings and stored key.
func (s *AISettingsService) Delete(ctx context.Context, userID string) error {
	if err := s.repos.AISettings.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete AI settings: %w", err)
	}
	return nil
}
