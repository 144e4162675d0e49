package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/finboard/finboard-api/internal/ai"
	"github.com/finboard/finboard-api/internal/service"
)

// AIHandler handles the AI chat proxy and provider endpoints.
type AIHandler struct {
	chat     *service.ChatService
	settings *service.AISettingsService
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(chat *service.ChatService, settings *service.AISettingsService) *AIHandler {
	return &AIHandler{chat: chat, settings: settings}
}

// ListProvidersOutput represents the available providers.
type ListProvidersOutput struct {
	Body struct {
		Providers []ai.Provider `json:"providers"`
	}
}

// ListProviders returns the providers available to the user.
func (h *AIHandler) ListProviders(ctx context.Context, input *struct{}) (*ListProvidersOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	out := &ListProvidersOutput{}
	out.Body.Providers = h.chat.Providers(ctx, userID)
	return out, nil
}

// ProviderStatusOutput represents provider availability.
type ProviderStatusOutput struct {
	Body struct {
		Providers []ai.ProviderStatus `json:"providers"`
	}
}

// ProviderStatus probes each provider; unreachable ones report offline.
func (h *AIHandler) ProviderStatus(ctx context.Context, input *struct{}) (*ProviderStatusOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	out := &ProviderStatusOutput{}
	out.Body.Providers = h.chat.ProviderStatuses(ctx, userID)
	return out, nil
}

// ChatInput represents one chat turn request.
type ChatInput struct {
	Body struct {
		ConversationID string `json:"conversationId,omitempty" doc:"Existing conversation, empty starts a new one"`
		Provider       string `json:"provider" minLength:"1" doc:"Provider name (ollama, lmstudio, custom)"`
		Model          string `json:"model,omitempty" doc:"Model override"`
		Message        string `json:"message" minLength:"1" maxLength:"32768" doc:"User message"`
	}
}

// ChatOutput represents the assistant reply plus billing outcome.
type ChatOutput struct {
	Body service.ChatReply
}

// Chat proxies one chat turn to the selected provider.
func (h *AIHandler) Chat(ctx context.Context, input *ChatInput) (*ChatOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	reply, err := h.chat.SendMessage(ctx, userID, service.ChatRequest{
		ConversationID: input.Body.ConversationID,
		Provider:       input.Body.Provider,
		Model:          input.Body.Model,
		Message:        input.Body.Message,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInsufficientCredits):
			return nil, huma.NewError(http.StatusPaymentRequired, "insufficient credits")
		case errors.Is(err, service.ErrProviderNotFound):
			return nil, huma.Error404NotFound("provider not found")
		case errors.Is(err, service.ErrConversationNotFound):
			return nil, huma.Error404NotFound("conversation not found")
		default:
			return nil, huma.Error502BadGateway("chat completion failed")
		}
	}
	return &ChatOutput{Body: *reply}, nil
}

// AISettingsOutput represents the user's custom endpoint settings.
type AISettingsOutput struct {
	Body struct {
		CustomEnabled bool   `json:"custom_enabled"`
		CustomBaseURL string `json:"custom_base_url,omitempty"`
		CustomModel   string `json:"custom_model,omitempty"`
		HasAPIKey     bool   `json:"has_api_key"`
	}
}

// GetSettings returns the user's AI settings with the key masked.
func (h *AIHandler) GetSettings(ctx context.Context, input *struct{}) (*AISettingsOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	settings, err := h.settings.Get(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load AI settings")
	}

	out := &AISettingsOutput{}
	out.Body.CustomEnabled = settings.CustomEnabled
	out.Body.CustomBaseURL = settings.CustomBaseURL
	out.Body.CustomModel = settings.CustomModel
	out.Body.HasAPIKey = settings.HasAPIKey
	return out, nil
}

// UpdateAISettingsInput represents a settings change.
type UpdateAISettingsInput struct {
	Body service.AISettingsUpdate
}

// UpdateSettings saves the user's custom endpoint settings. An empty
// api_key keeps the previously stored key.
func (h *AIHandler) UpdateSettings(ctx context.Context, input *UpdateAISettingsInput) (*AISettingsOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	settings, err := h.settings.Update(ctx, userID, input.Body)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSettings) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to save AI settings")
	}

	out := &AISettingsOutput{}
	out.Body.CustomEnabled = settings.CustomEnabled
	out.Body.CustomBaseURL = settings.CustomBaseURL
	out.Body.CustomModel = settings.CustomModel
	out.Body.HasAPIKey = settings.HasAPIKey
	return out, nil
}

// DeleteSettings removes the custom endpoint settings and stored key.
func (h *AIHandler) DeleteSettings(ctx context.Context, input *struct{}) (*struct{}, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	if err := h.settings.Delete(ctx, userID); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete AI settings")
	}
	return &struct{}{}, nil
}
