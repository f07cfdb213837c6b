// Package capabilities holds the embedded profiles of the sentiment models
// the classification engines know how to call.
package capabilities

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Providers with an embedded profile file
const (
	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
)

// Registry manages model profiles across all engine providers
type Registry struct {
	providers map[string]*ProviderProfiles
	mu        sync.RWMutex
}

// NewRegistry creates a new profile registry and loads embedded YAML files
func NewRegistry() (*Registry, error) {
	r := &Registry{
		providers: make(map[string]*ProviderProfiles),
	}

	for _, provider := range []string{ProviderHTTP, ProviderOpenAI} {
		if err := r.loadProviderFile(provider); err != nil {
			return nil, fmt.Errorf("failed to load %s profiles: %w", provider, err)
		}
	}

	return r, nil
}

// loadProviderFile loads a provider's profile YAML file
func (r *Registry) loadProviderFile(provider string) error {
	filename := fmt.Sprintf("config/%s.yaml", provider)
	data, err := configFiles.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	var profiles ProviderProfiles
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}

	r.mu.Lock()
	r.providers[provider] = &profiles
	r.mu.Unlock()

	return nil
}

// GetModelProfile returns the profile for a specific model
func (r *Registry) GetModelProfile(provider, model string) (*ModelProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profiles, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	for i := range profiles.Models {
		if profiles.Models[i].ID == model {
			profile := profiles.Models[i]
			return &profile, nil
		}
	}

	return nil, fmt.Errorf("unknown model %s for provider %s", model, provider)
}

// ListProviderModels returns all models for a provider (ordered as defined in YAML)
func (r *Registry) ListProviderModels(provider string) ([]ModelProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profiles, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	return profiles.Models, nil
}

// GetAllProviders returns the registered providers, sorted
func (r *Registry) GetAllProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]string, 0, len(r.providers))
	for provider := range r.providers {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	return providers
}

// DefaultProfile is used for models without an embedded profile
func DefaultProfile(model string) *ModelProfile {
	return &ModelProfile{
		ID:          model,
		DisplayName: model,
		Vocabulary:  []string{"Positive", "Neutral", "Negative"},
	}
}
