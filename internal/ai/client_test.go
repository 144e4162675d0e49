package ai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ========================================
// Status Probe
// ========================================

func TestClient_Status_Online(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %s, want /v1/models", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"id": "llama3"}, {"id": "mistral"}},
		})
	}))
	defer server.Close()

	c := NewClient(30*time.Second, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	status := c.Status(ctx, Provider{Name: "ollama", BaseURL: server.URL})
	if status.Status != StatusOnline {
		t.Errorf("status = %s, want online", status.Status)
	}
	if len(status.Models) != 2 || status.Models[0] != "llama3" {
		t.Errorf("models = %v", status.Models)
	}
}

func TestClient_Status_Unreachable(t *testing.T) {
	// Closed server: connection refused
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := NewClient(30*time.Second, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status := c.Status(ctx, Provider{Name: "ollama", BaseURL: server.URL})
	if status.Status != StatusOffline {
		t.Errorf("status = %s, want offline", status.Status)
	}
}

func TestClient_Status_SlowServerTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	c := NewClient(30*time.Second, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	status := c.Status(ctx, Provider{Name: "lmstudio", BaseURL: server.URL})
	if status.Status != StatusOffline {
		t.Errorf("status = %s, want offline", status.Status)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("probe did not respect the context deadline")
	}
}

func TestClient_Status_NonOKResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(30*time.Second, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	status := c.Status(ctx, Provider{Name: "ollama", BaseURL: server.URL})
	if status.Status != StatusOffline {
		t.Errorf("status = %s, want offline", status.Status)
	}
}

// ========================================
// Chat Completion
// ========================================

func TestClient_ChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want Bearer sk-test", got)
		}

		var req struct {
			Model    string        `json:"model"`
			Messages []ChatMessage `json:"messages"`
			Stream   bool          `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "mixtral" {
			t.Errorf("model = %s, want mixtral", req.Model)
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "How is my budget?" {
			t.Errorf("messages = %+v", req.Messages)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "mixtral",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Looking good."}},
			},
			"usage": map[string]int{"prompt_tokens": 120, "completion_tokens": 30},
		})
	}))
	defer server.Close()

	c := NewClient(30*time.Second, testLogger())
	p := Provider{Name: "custom", BaseURL: server.URL, APIKey: "sk-test"}

	result, err := c.ChatCompletion(context.Background(), p, "mixtral", []ChatMessage{
		{Role: "system", Content: "You are a finance assistant."},
		{Role: "user", Content: "How is my budget?"},
	})
	if err != nil {
		t.Fatalf("ChatCompletion() error = %v", err)
	}
	if result.Content != "Looking good." {
		t.Errorf("content = %q", result.Content)
	}
	if result.TotalTokens() != 150 {
		t.Errorf("TotalTokens() = %d, want 150", result.TotalTokens())
	}
}

func TestClient_ChatCompletion_DefaultModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "llama3" {
			t.Errorf("model = %s, want provider default llama3", req.Model)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "ok"}}},
		})
	}))
	defer server.Close()

	c := NewClient(30*time.Second, testLogger())
	p := Provider{Name: "ollama", BaseURL: server.URL, Model: "llama3"}

	if _, err := c.ChatCompletion(context.Background(), p, "", []ChatMessage{{Role: "user", Content: "hi"}}); err != nil {
		t.Fatalf("ChatCompletion() error = %v", err)
	}
}

func TestClient_ChatCompletion_Errors(t *testing.T) {
	t.Run("provider error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(30*time.Second, testLogger())
		_, err := c.ChatCompletion(context.Background(), Provider{Name: "lmstudio", BaseURL: server.URL}, "m", nil)
		if err == nil {
			t.Fatal("expected error for 503 response")
		}
	})

	t.Run("no choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
		}))
		defer server.Close()

		c := NewClient(30*time.Second, testLogger())
		_, err := c.ChatCompletion(context.Background(), Provider{Name: "ollama", BaseURL: server.URL}, "m", nil)
		if err == nil {
			t.Fatal("expected error for empty choices")
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		c := NewClient(time.Second, testLogger())
		_, err := c.ChatCompletion(context.Background(), Provider{Name: "ollama", BaseURL: server.URL}, "m", nil)
		if err == nil {
			t.Fatal("expected error for unreachable provider")
		}
	})
}

// ========================================
// Registry
// ========================================

func TestRegistry(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(Provider{Name: ProviderOllama, DisplayName: "Ollama", BaseURL: "http://localhost:11434"})
	r.Register(Provider{Name: ProviderLMStudio, DisplayName: "LM Studio", BaseURL: "http://localhost:1234"})

	if _, ok := r.Get("nope"); ok {
		t.Error("Get() found an unregistered provider")
	}

	p, ok := r.Get(ProviderOllama)
	if !ok || p.BaseURL != "http://localhost:11434" {
		t.Errorf("Get(ollama) = %+v, %v", p, ok)
	}

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("List() = %d providers, want 2", len(list))
	}
	if list[0].Name != ProviderLMStudio || list[1].Name != ProviderOllama {
		t.Errorf("List() order = %s, %s; want sorted by name", list[0].Name, list[1].Name)
	}
}
