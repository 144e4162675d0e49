// Package service contains the business logic layer.
// Note: Account signup, OAuth, and session minting are handled by the auth
// provider. The UserID in services references the subject claim of the
// caller's JWT.
package service

import (
	"fmt"
	"log/slog"

	"github.com/finboard/finboard-api/internal/ai"
	"github.com/finboard/finboard-api/internal/config"
	"github.com/finboard/finboard-api/internal/crypto"
	"github.com/finboard/finboard-api/internal/repository"
)

// Services holds all service instances.
type Services struct {
	Credit     *CreditService
	Chat       *ChatService
	Mortgage   *MortgageService
	Import     *ImportService
	Desktop    *DesktopService
	AISettings *AISettingsService
	Billing    *BillingService
	Storage    *StorageService
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) (*Services, error) {
	// Create encryptor first - needed for custom provider API key storage
	var encryptor *crypto.Encryptor
	if len(cfg.EncryptionKey) > 0 {
		var err error
		encryptor, err = crypto.NewEncryptor(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
	} else {
		logger.Warn("no encryption key configured - custom AI provider keys cannot be stored")
	}

	storageSvc, err := NewStorageService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	registry := ai.InitRegistry(cfg, logger)
	client := ai.NewClient(cfg.AIChatTimeout, logger)

	creditSvc := NewCreditService(cfg, repos, logger)
	chatSvc := NewChatService(cfg, repos, registry, client, creditSvc, encryptor, logger)
	billingSvc := NewBillingService(cfg, config.DefaultBillingConfig(), creditSvc, logger)

	return &Services{
		Credit:     creditSvc,
		Chat:       chatSvc,
		Mortgage:   NewMortgageService(),
		Import:     NewImportService(repos, storageSvc, logger),
		Desktop:    NewDesktopService(repos, logger),
		AISettings: NewAISettingsService(repos, encryptor, logger),
		Billing:    billingSvc,
		Storage:    storageSvc,
	}, nil
}
