package repository

import (
	"context"
	"testing"

	"github.com/finboard/finboard-api/internal/models"
)

// ========================================
// Desktop Session Repository Tests
// ========================================

func TestDesktopSessionRepository_Upsert(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	got, err := repos.DesktopSession.Get(ctx, "user_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Fatal("Get() should return nil when no session is saved")
	}

	if err := repos.DesktopSession.Upsert(ctx, &models.DesktopSession{
		UserID:       "user_1",
		SnapshotJSON: `{"windows":[],"active_window_id":""}`,
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := repos.DesktopSession.Upsert(ctx, &models.DesktopSession{
		UserID:       "user_1",
		SnapshotJSON: `{"windows":[{"id":"budget"}],"active_window_id":"budget"}`,
	}); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	got, err = repos.DesktopSession.Get(ctx, "user_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.SnapshotJSON != `{"windows":[{"id":"budget"}],"active_window_id":"budget"}` {
		t.Errorf("SnapshotJSON = %s", got.SnapshotJSON)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
}
