// Package ai talks to local OpenAI-compatible model servers (Ollama,
// LM Studio) and optional per-user custom endpoints. The desktop's AI
// chat app proxies through here so API keys never reach the browser.
package ai

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/finboard/finboard-api/internal/config"
)

// Provider names registered out of the box. "custom" is synthesized
// per-user from stored settings, never registered globally.
const (
	ProviderOllama   = "ollama"
	ProviderLMStudio = "lmstudio"
	ProviderCustom   = "custom"
)

// Provider describes one chat endpoint. All providers speak the
// OpenAI-compatible surface (/v1/models, /v1/chat/completions);
// Ollama exposes it alongside its native API.
type Provider struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	BaseURL     string `json:"base_url"`
	Model       string `json:"model,omitempty"`
	RequiresKey bool   `json:"requires_key"`

	// APIKey is filled in at request time for custom providers and
	// never serialized.
	APIKey string `json:"-"`
}

// Registry manages the globally configured providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	logger    *slog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// InitRegistry creates a registry populated from config flags.
func InitRegistry(cfg *config.Config, logger *slog.Logger) *Registry {
	r := NewRegistry(logger)

	if cfg.OllamaEnabled {
		r.Register(Provider{
			Name:        ProviderOllama,
			DisplayName: "Ollama",
			BaseURL:     cfg.OllamaURL,
		})
	}
	if cfg.LMStudioEnabled {
		r.Register(Provider{
			Name:        ProviderLMStudio,
			DisplayName: "LM Studio",
			BaseURL:     cfg.LMStudioURL,
		})
	}

	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name] = p
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// List returns all registered providers sorted by name.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
