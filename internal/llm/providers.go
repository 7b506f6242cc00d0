package llm

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"jrdev/internal/logging"

	"github.com/joho/godotenv"
)

// Shape selects the wire protocol for a provider.
type Shape string

const (
	ShapeOpenAI    Shape = "openai"
	ShapeAnthropic Shape = "anthropic"
)

// Provider describes one remote LLM vendor or gateway. A provider is active
// iff its env key is set; its client is constructed at registry build time.
type Provider struct {
	Name     string
	EnvKey   string
	BaseURL  string
	Shape    Shape
	Required bool
	// Extras are provider-specific request fields merged into the body of
	// every OpenAI-shape request (extra_body semantics).
	Extras map[string]any
	// DefaultProfiles seed role->model profiles when this provider is the
	// first active one on a fresh install.
	DefaultProfiles map[string]string
}

// DefaultProviders returns the built-in provider table.
func DefaultProviders() []Provider {
	return []Provider{
		{
			Name:    "open_router",
			EnvKey:  "OPEN_ROUTER_KEY",
			BaseURL: "https://openrouter.ai/api/v1",
			Shape:   ShapeOpenAI,
			Extras:  map[string]any{"provider": map[string]any{"sort": "throughput"}},
			DefaultProfiles: map[string]string{
				"intent_router":       "openai/gpt-4.1-mini",
				"quick_reasoning":     "openai/gpt-4.1-mini",
				"advanced_reasoning":  "anthropic/claude-sonnet-4",
				"intermediate_coding": "openai/gpt-4.1",
				"advanced_coding":     "anthropic/claude-sonnet-4",
			},
		},
		{
			Name:    "openai",
			EnvKey:  "OPENAI_API_KEY",
			BaseURL: "https://api.openai.com/v1",
			Shape:   ShapeOpenAI,
			DefaultProfiles: map[string]string{
				"intent_router":       "gpt-4.1-mini",
				"quick_reasoning":     "gpt-4.1-mini",
				"advanced_reasoning":  "o4-mini",
				"intermediate_coding": "gpt-4.1",
				"advanced_coding":     "gpt-4.1",
			},
		},
		{
			Name:    "anthropic",
			EnvKey:  "ANTHROPIC_API_KEY",
			BaseURL: "https://api.anthropic.com",
			Shape:   ShapeAnthropic,
			DefaultProfiles: map[string]string{
				"intent_router":       "claude-3-5-haiku-latest",
				"quick_reasoning":     "claude-3-5-haiku-latest",
				"advanced_reasoning":  "claude-sonnet-4-0",
				"intermediate_coding": "claude-sonnet-4-0",
				"advanced_coding":     "claude-sonnet-4-0",
			},
		},
		{
			Name:    "venice",
			EnvKey:  "VENICE_API_KEY",
			BaseURL: "https://api.venice.ai/api/v1",
			Shape:   ShapeOpenAI,
			Extras: map[string]any{
				"venice_parameters": map[string]any{"include_venice_system_prompt": false},
			},
			DefaultProfiles: map[string]string{
				"intent_router":       "llama-3.3-70b",
				"quick_reasoning":     "llama-3.3-70b",
				"advanced_reasoning":  "deepseek-r1-671b",
				"intermediate_coding": "qwen-2.5-coder-32b",
				"advanced_coding":     "deepseek-r1-671b",
			},
		},
		{
			Name:    "deepseek",
			EnvKey:  "DEEPSEEK_API_KEY",
			BaseURL: "https://api.deepseek.com",
			Shape:   ShapeOpenAI,
			DefaultProfiles: map[string]string{
				"intent_router":       "deepseek-chat",
				"quick_reasoning":     "deepseek-chat",
				"advanced_reasoning":  "deepseek-reasoner",
				"intermediate_coding": "deepseek-chat",
				"advanced_coding":     "deepseek-reasoner",
			},
		},
	}
}

// ProviderPreference is the first-run ordering used to pick default
// profiles from the active providers.
var ProviderPreference = []string{"open_router", "openai", "anthropic", "venice", "deepseek"}

// LoadEnvFile loads API keys from a dotenv file without overriding
// variables already present in the environment. A missing file is fine.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	logging.Boot("loaded API keys from %s", path)
	return nil
}

// Registry holds the provider table and the constructed per-provider
// clients. Clients are built once and shared across workers; Reload
// rebuilds them after a key change.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	clients   map[string]Streamer
}

// NewRegistry builds clients for every provider whose env key is set.
// A required provider without a key is a startup error.
func NewRegistry(providers []Provider) (*Registry, error) {
	r := &Registry{providers: providers}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads env keys and rebuilds the client map.
func (r *Registry) Reload() error {
	clients := make(map[string]Streamer)
	for _, p := range r.providers {
		key := os.Getenv(p.EnvKey)
		if key == "" {
			if p.Required {
				return fmt.Errorf("provider %s requires %s to be set", p.Name, p.EnvKey)
			}
			continue
		}
		clients[p.Name] = newClient(p, key)
	}

	r.mu.Lock()
	r.clients = clients
	r.mu.Unlock()

	logging.Boot("provider registry: %d active of %d known", len(clients), len(r.providers))
	return nil
}

func newClient(p Provider, key string) Streamer {
	httpClient := &http.Client{Timeout: 10 * time.Minute}
	switch p.Shape {
	case ShapeAnthropic:
		return &anthropicClient{provider: p, apiKey: key, httpClient: httpClient}
	default:
		return &openAIClient{provider: p, apiKey: key, httpClient: httpClient}
	}
}

// Client returns the constructed client for a provider name.
func (r *Registry) Client(name string) (Streamer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	return c, ok
}

// Active returns the providers that currently have a client, in table order.
func (r *Registry) Active() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Provider
	for _, p := range r.providers {
		if _, ok := r.clients[p.Name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Providers returns the full provider table.
func (r *Registry) Providers() []Provider {
	return r.providers
}
