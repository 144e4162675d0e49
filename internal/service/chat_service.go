package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/finboard/finboard-api/internal/ai"
	"github.com/finboard/finboard-api/internal/config"
	"github.com/finboard/finboard-api/internal/crypto"
	"github.com/finboard/finboard-api/internal/models"
	"github.com/finboard/finboard-api/internal/repository"
)

var (
	// ErrProviderNotFound means the requested provider is not
	// registered or not configured for this user.
	ErrProviderNotFound = errors.New("ai provider not found")

	// ErrConversationNotFound means the conversation id does not exist
	// or belongs to another user.
	ErrConversationNotFound = errors.New("conversation not found")
)

// ChatRequest is one user turn.
type ChatRequest struct {
	ConversationID string // empty starts a new conversation
	Provider       string
	Model          string
	Message        string
}

// ChatReply is the assistant turn plus billing outcome.
type ChatReply struct {
	ConversationID string          `json:"conversationId"`
	Reply          *models.Message `json:"reply"`
	CreditsCharged int             `json:"creditsCharged"`
	NewBalance     int             `json:"newBalance"`
}

// ChatService proxies chat turns to a provider and settles their
// credit cost. Each turn charges a flat deposit up front, then
// reconciles against the true token cost once known: extra spend when
// actual exceeds the deposit, refund when it falls short, full refund
// when the provider call fails.
type ChatService struct {
	registry  *ai.Registry
	client    *ai.Client
	credits   *CreditService
	encryptor *crypto.Encryptor
	repos     *repository.Repositories
	cfg       *config.Config
	logger    *slog.Logger
}

// NewChatService creates a new chat service.
func NewChatService(cfg *config.Config, repos *repository.Repositories, registry *ai.Registry, client *ai.Client, credits *CreditService, encryptor *crypto.Encryptor, logger *slog.Logger) *ChatService {
	return &ChatService{
		registry:  registry,
		client:    client,
		credits:   credits,
		encryptor: encryptor,
		repos:     repos,
		cfg:       cfg,
		logger:    logger,
	}
}

// SendMessage runs one chat turn end to end: resolve provider, persist
// the user message, charge the deposit, call the provider, reconcile
// credits, persist the reply.
func (s *ChatService) SendMessage(ctx context.Context, userID string, req ChatRequest) (*ChatReply, error) {
	account, err := s.credits.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.TotalCredits < 1 {
		return nil, ErrInsufficientCredits
	}

	provider, err := s.resolveProvider(ctx, userID, req.Provider)
	if err != nil {
		return nil, err
	}

	conversation, err := s.resolveConversation(ctx, userID, req, provider)
	if err != nil {
		return nil, err
	}

	history, err := s.repos.Message.ListByConversationID(ctx, conversation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	userMsg := &models.Message{
		ConversationID: conversation.ID,
		Role:           models.RoleUser,
		Content:        req.Message,
	}
	if err := s.repos.Message.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	// Flat deposit before the call so the user sees the debit
	// immediately; reconciled below once true cost is known.
	deposit := s.cfg.DepositCredits
	balance, err := s.credits.Spend(ctx, userID, deposit, "AI chat deposit", &conversation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to charge deposit: %w", err)
	}
	// Spend floors at zero, so a low balance can cover less than the
	// nominal deposit. Settlement works against what was actually
	// taken, or a failed call on a short balance would mint credits.
	charged := account.TotalCredits - balance
	if charged < 0 {
		charged = 0
	}

	messages := make([]ai.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, ai.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, ai.ChatMessage{Role: string(models.RoleUser), Content: req.Message})

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.AIChatTimeout)
	defer cancel()

	result, err := s.client.ChatCompletion(callCtx, provider, req.Model, messages)
	if err != nil {
		// Refund whatever the deposit actually took. If the refund
		// itself fails the balance stays short; log loudly so it can
		// be repaired from the ledger.
		if charged > 0 {
			if _, refundErr := s.credits.Refund(ctx, userID, charged, "AI call failed", &conversation.ID); refundErr != nil {
				s.logger.Error("deposit refund failed after provider error",
					"user_id", userID, "conversation_id", conversation.ID,
					"charged", charged, "error", refundErr)
			}
		}
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	cost := s.usageCost(result.TotalTokens())
	switch {
	case cost > charged:
		balance, err = s.credits.Spend(ctx, userID, cost-charged, "AI usage above deposit", &conversation.ID)
	case cost < charged:
		balance, err = s.credits.Refund(ctx, userID, charged-cost, "Unused AI deposit", &conversation.ID)
	}
	if err != nil {
		s.logger.Error("usage reconciliation failed",
			"user_id", userID, "conversation_id", conversation.ID,
			"charged", charged, "cost", cost, "error", err)
	}

	reply := &models.Message{
		ConversationID: conversation.ID,
		Role:           models.RoleAssistant,
		Content:        result.Content,
		TokensInput:    result.PromptTokens,
		TokensOutput:   result.CompletionTokens,
		CreditsCharged: cost,
	}
	if err := s.repos.Message.Create(ctx, reply); err != nil {
		return nil, fmt.Errorf("failed to store reply: %w", err)
	}
	if err := s.repos.Conversation.Touch(ctx, conversation.ID); err != nil {
		s.logger.Warn("failed to bump conversation", "conversation_id", conversation.ID, "error", err)
	}

	return &ChatReply{
		ConversationID: conversation.ID,
		Reply:          reply,
		CreditsCharged: cost,
		NewBalance:     balance,
	}, nil
}

// ProviderStatuses probes every configured provider plus the user's
// custom endpoint. Each probe is bounded by the status timeout;
// unreachable providers report offline.
func (s *ChatService) ProviderStatuses(ctx context.Context, userID string) []ai.ProviderStatus {
	providers := s.registry.List()
	if custom, err := s.customProvider(ctx, userID); err == nil {
		providers = append(providers, custom)
	}

	statuses := make([]ai.ProviderStatus, 0, len(providers))
	for _, p := range providers {
		probeCtx, cancel := context.WithTimeout(ctx, s.cfg.AIStatusTimeout)
		statuses = append(statuses, s.client.Status(probeCtx, p))
		cancel()
	}
	return statuses
}

// Providers lists the providers available to a user, custom included.
func (s *ChatService) Providers(ctx context.Context, userID string) []ai.Provider {
	providers := s.registry.List()
	if custom, err := s.customProvider(ctx, userID); err == nil {
		custom.APIKey = ""
		providers = append(providers, custom)
	}
	return providers
}

func (s *ChatService) resolveProvider(ctx context.Context, userID, name string) (ai.Provider, error) {
	if name == ai.ProviderCustom {
		return s.customProvider(ctx, userID)
	}
	p, ok := s.registry.Get(name)
	if !ok {
		return ai.Provider{}, ErrProviderNotFound
	}
	return p, nil
}

// customProvider builds the user's custom endpoint from stored
// settings, decrypting the API key.
func (s *ChatService) customProvider(ctx context.Context, userID string) (ai.Provider, error) {
	settings, err := s.repos.AISettings.Get(ctx, userID)
	if err != nil {
		return ai.Provider{}, err
	}
	if settings == nil || !settings.CustomEnabled || settings.CustomBaseURL == "" {
		return ai.Provider{}, ErrProviderNotFound
	}

	apiKey := ""
	if settings.APIKeyEncrypted != "" && s.encryptor != nil {
		apiKey, err = s.encryptor.Decrypt(settings.APIKeyEncrypted)
		if err != nil {
			return ai.Provider{}, fmt.Errorf("failed to decrypt api key: %w", err)
		}
	}

	return ai.Provider{
		Name:        ai.ProviderCustom,
		DisplayName: "Custom endpoint",
		BaseURL:     settings.CustomBaseURL,
		Model:       settings.CustomModel,
		RequiresKey: settings.APIKeyEncrypted != "",
		APIKey:      apiKey,
	}, nil
}

func (s *ChatService) resolveConversation(ctx context.Context, userID string, req ChatRequest, provider ai.Provider) (*models.Conversation, error) {
	if req.ConversationID != "" {
		conversation, err := s.repos.Conversation.GetByID(ctx, req.ConversationID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
		if conversation == nil {
			return nil, ErrConversationNotFound
		}
		return conversation, nil
	}

	conversation := &models.Conversation{
		UserID:   userID,
		Title:    conversationTitle(req.Message),
		Provider: provider.Name,
		Model:    req.Model,
	}
	if err := s.repos.Conversation.Create(ctx, conversation); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conversation, nil
}

// usageCost converts token usage to credits, rounding up.
func (s *ChatService) usageCost(totalTokens int) int {
	if totalTokens <= 0 {
		return 0
	}
	perCredit := s.cfg.TokensPerCredit
	if perCredit <= 0 {
		perCredit = 1000
	}
	return (totalTokens + perCredit - 1) / perCredit
}

// conversationTitle derives a short title from the first message.
func conversationTitle(message string) string {
	const maxLen = 60
	runes := []rune(message)
	if len(runes) <= maxLen {
		return message
	}
	return string(runes[:maxLen]) + "…"
}
