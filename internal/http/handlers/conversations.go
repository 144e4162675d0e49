package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/finboard/finboard-api/internal/models"
	"github.com/finboard/finboard-api/internal/repository"
)

// ConversationsHandler handles AI conversation management.
type ConversationsHandler struct {
	repos *repository.Repositories
}

// NewConversationsHandler creates a new conversations handler.
func NewConversationsHandler(repos *repository.Repositories) *ConversationsHandler {
	return &ConversationsHandler{repos: repos}
}

// ListConversationsInput represents the conversation page request.
type ListConversationsInput struct {
	Limit  int `query:"limit" default:"50" minimum:"1" maximum:"100" doc:"Page size"`
	Offset int `query:"offset" default:"0" minimum:"0" doc:"Page offset"`
}

// ListConversationsOutput represents a page of conversations.
type ListConversationsOutput struct {
	Body struct {
		Conversations []*models.Conversation `json:"conversations"`
	}
}

// ListConversations returns the user's conversations, most recently
// active first.
func (h *ConversationsHandler) ListConversations(ctx context.Context, input *ListConversationsInput) (*ListConversationsOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	conversations, err := h.repos.Conversation.ListByUserID(ctx, userID, input.Limit, input.Offset)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load conversations")
	}

	out := &ListConversationsOutput{}
	out.Body.Conversations = conversations
	if out.Body.Conversations == nil {
		out.Body.Conversations = []*models.Conversation{}
	}
	return out, nil
}

// GetConversationInput identifies one conversation.
type GetConversationInput struct {
	ID string `path:"id" doc:"Conversation id"`
}

// GetConversationOutput is a conversation with its messages.
type GetConversationOutput struct {
	Body struct {
		Conversation *models.Conversation `json:"conversation"`
		Messages     []*models.Message    `json:"messages"`
	}
}

// GetConversation returns one conversation and its full message history.
func (h *ConversationsHandler) GetConversation(ctx context.Context, input *GetConversationInput) (*GetConversationOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	conversation, err := h.repos.Conversation.GetByID(ctx, input.ID, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load conversation")
	}
	if conversation == nil {
		return nil, huma.Error404NotFound("conversation not found")
	}

	messages, err := h.repos.Message.ListByConversationID(ctx, conversation.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load messages")
	}

	out := &GetConversationOutput{}
	out.Body.Conversation = conversation
	out.Body.Messages = messages
	if out.Body.Messages == nil {
		out.Body.Messages = []*models.Message{}
	}
	return out, nil
}

// RenameConversationInput carries a title change.
type RenameConversationInput struct {
	ID   string `path:"id" doc:"Conversation id"`
	Body struct {
		Title string `json:"title" minLength:"1" maxLength:"200" doc:"New title"`
	}
}

// RenameConversation updates a conversation title.
func (h *ConversationsHandler) RenameConversation(ctx context.Context, input *RenameConversationInput) (*struct{}, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	err := h.repos.Conversation.UpdateTitle(ctx, input.ID, userID, input.Body.Title)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, huma.Error404NotFound("conversation not found")
		}
		return nil, huma.Error500InternalServerError("failed to rename conversation")
	}
	return &struct{}{}, nil
}

// DeleteConversationInput identifies the conversation to delete.
type DeleteConversationInput struct {
	ID string `path:"id" doc:"Conversation id"`
}

// DeleteConversation removes a conversation and its messages.
func (h *ConversationsHandler) DeleteConversation(ctx context.Context, input *DeleteConversationInput) (*struct{}, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	err := h.repos.Conversation.Delete(ctx, input.ID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, huma.Error404NotFound("conversation not found")
		}
		return nil, huma.Error500InternalServerError("failed to delete conversation")
	}
	return &struct{}{}, nil
}
