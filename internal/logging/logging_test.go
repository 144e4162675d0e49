package logging

import (
	"context"
	"log/slog"
	"testing"
)

// ========================================
// Context ID Tests
// ========================================

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	ctx = WithUserID(ctx, "user_abc")
	ctx = WithConversationID(ctx, "conv_999")

	if got := GetUserID(ctx); got != "user_abc" {
		t.Errorf("GetUserID() = %q, want user_abc", got)
	}
	if got := GetConversationID(ctx); got != "conv_999" {
		t.Errorf("GetConversationID() = %q, want conv_999", got)
	}

	empty := context.Background()
	if GetUserID(empty) != "" || GetConversationID(empty) != "" {
		t.Error("bare context should yield empty IDs")
	}

	// A non-string value under the key must not panic the getter.
	bad := context.WithValue(context.Background(), UserIDKey, 12345)
	if got := GetUserID(bad); got != "" {
		t.Errorf("GetUserID() with non-string value = %q, want empty", got)
	}
}

func TestFromContext(t *testing.T) {
	base := slog.Default()

	if got := FromContext(nil, base); got != base {
		t.Error("nil context should return the logger unchanged")
	}
	if got := FromContext(context.Background(), base); got != base {
		t.Error("context without IDs should return the logger unchanged")
	}

	enriched := FromContext(WithUserID(context.Background(), "user_1"), base)
	if enriched == base {
		t.Error("context with a user ID should produce an enriched logger")
	}
}

// ========================================
// Logger Construction Tests
// ========================================

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"trace", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSetDefault(t *testing.T) {
	logger := SetDefault()
	if logger == nil {
		t.Fatal("SetDefault() returned nil")
	}
	if slog.Default() == nil {
		t.Error("slog default not installed")
	}
}
