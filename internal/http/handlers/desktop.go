package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/finboard/finboard-api/internal/desktop"
	"github.com/finboard/finboard-api/internal/service"
)

// DesktopHandler handles workspace session persistence.
type DesktopHandler struct {
	desktop *service.DesktopService
}

// NewDesktopHandler creates a new desktop handler.
func NewDesktopHandler(desktopSvc *service.DesktopService) *DesktopHandler {
	return &DesktopHandler{desktop: desktopSvc}
}

// SessionOutput is a workspace snapshot.
type SessionOutput struct {
	Body desktop.Snapshot
}

// GetSession returns the user's saved workspace, or an empty one.
func (h *DesktopHandler) GetSession(ctx context.Context, input *struct{}) (*SessionOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	snap, err := h.desktop.Load(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load desktop session")
	}
	return &SessionOutput{Body: *snap}, nil
}

// SaveSessionInput carries the workspace snapshot to persist.
type SaveSessionInput struct {
	Body desktop.Snapshot
}

// SaveSession validates, normalizes, and stores the workspace. The
// normalized snapshot is returned.
func (h *DesktopHandler) SaveSession(ctx context.Context, input *SaveSessionInput) (*SessionOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	snap, err := h.desktop.Save(ctx, userID, input.Body)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to save desktop session")
	}
	return &SessionOutput{Body: *snap}, nil
}
