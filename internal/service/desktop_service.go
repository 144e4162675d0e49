package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/finboard/finboard-api/internal/desktop"
	"github.com/finboard/finboard-api/internal/models"
	"github.com/finboard/finboard-api/internal/repository"
)

// DefaultViewport is assumed when a stored snapshot carries no viewport.
var DefaultViewport = desktop.Viewport{Width: 1920, Height: 1080}

// DesktopService persists per-user workspace snapshots. Snapshots are
// normalized through the window manager on save so stored state always has
// contiguous stacking order and on-screen windows.
type DesktopService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewDesktopService creates a desktop session service.
func NewDesktopService(repos *repository.Repositories, logger *slog.Logger) *DesktopService {
	return &DesktopService{repos: repos, logger: logger}
}

// Save validates and normalizes the snapshot, then stores it for the user.
// The normalized snapshot is returned so the client sees what was kept.
func (s *DesktopService) Save(ctx context.Context, userID string, snap desktop.Snapshot) (*desktop.Snapshot, error) {
	if snap.Viewport.Width <= 0 || snap.Viewport.Height <= 0 {
		snap.Viewport = DefaultViewport
	}

	normalized := desktop.Restore(snap).Snapshot()

	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	sess := &models.DesktopSession{
		UserID:       userID,
		SnapshotJSON: string(data),
		UpdatedAt:    time.Now(),
	}
	if err := s.repos.DesktopSession.Upsert(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save desktop session: %w", err)
	}

	s.logger.Debug("desktop session saved",
		"user_id", userID,
		"windows", len(normalized.Windows))
	return &normalized, nil
}

// Load returns the user's stored workspace snapshot, or an empty workspace
// when none has been saved yet.
func (s *DesktopService) Load(ctx context.Context, userID string) (*desktop.Snapshot, error) {
	sess, err := s.repos.DesktopSession.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load desktop session: %w", err)
	}
	if sess == nil {
		empty := desktop.NewManager(DefaultViewport).Snapshot()
		return &empty, nil
	}

	var snap desktop.Snapshot
	if err := json.Unmarshal([]byte(sess.SnapshotJSON), &snap); err != nil {
		// A corrupt row should not lock the user out of their desktop.
		s.logger.Warn("discarding corrupt desktop snapshot",
			"user_id", userID,
			"error", err)
		empty := desktop.NewManager(DefaultViewport).Snapshot()
		return &empty, nil
	}
	return &snap, nil
}
