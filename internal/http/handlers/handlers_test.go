package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/danielgtaylor/huma/v2"
)

// ========================================
// Probe Tests
// ========================================

func TestHealthCheck(t *testing.T) {
	out, err := HealthCheck(context.Background(), nil)
	if err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	if out.Body.Status != "healthy" {
		t.Errorf("status = %q, want healthy", out.Body.Status)
	}
	if out.Body.Version == "" {
		t.Error("version missing from health response")
	}
}

func TestLivez(t *testing.T) {
	out, err := Livez(context.Background(), nil)
	if err != nil {
		t.Fatalf("Livez() error = %v", err)
	}
	if out.Body.Status != "ok" {
		t.Errorf("status = %q, want ok", out.Body.Status)
	}
}

type pingerFunc func() error

func (f pingerFunc) Ping() error { return f() }

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		db         DBPinger
		wantErr    bool
		wantStatus int
	}{
		{
			name: "database reachable",
			db:   pingerFunc(func() error { return nil }),
		},
		{
			name:       "database down",
			db:         pingerFunc(func() error { return errors.New("connection refused") }),
			wantErr:    true,
			wantStatus: 503,
		},
		{
			name: "no database configured",
			db:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewReadyzHandler(tt.db).Readyz(context.Background(), nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				var statusErr huma.StatusError
				if !errors.As(err, &statusErr) || statusErr.GetStatus() != tt.wantStatus {
					t.Errorf("error = %v, want status %d", err, tt.wantStatus)
				}
				return
			}
			if err != nil {
				t.Fatalf("Readyz() error = %v", err)
			}
			if out.Body.Status != "ok" {
				t.Errorf("status = %q, want ok", out.Body.Status)
			}
		})
	}
}
