package handler

import (
	"log/slog"
	"net/http"

	"docusight/internal/capabilities"
	"docusight/internal/httputil"
)

// ModelsHandler exposes the known classification model profiles
type ModelsHandler struct {
	registry *capabilities.Registry
	active   ActiveModel
	logger   *slog.Logger
}

// ActiveModel identifies the engine the server classifies with
type ActiveModel struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// NewModelsHandler creates a new models handler
func NewModelsHandler(registry *capabilities.Registry, active ActiveModel, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{
		registry: registry,
		active:   active,
		logger:   logger,
	}
}

// ProviderResponse represents a provider with its models
type ProviderResponse struct {
	ID     string                      `json:"id"`
	Models []capabilities.ModelProfile `json:"models"`
}

// GetModels lists model profiles per provider and the active engine.
// GET /api/models
func (h *ModelsHandler) GetModels(w http.ResponseWriter, r *http.Request) {
	providers := make([]ProviderResponse, 0)
	for _, id := range h.registry.GetAllProviders() {
		models, err := h.registry.ListProviderModels(id)
		if err != nil {
			h.logger.Warn("failed to list provider models", "provider", id, "error", err)
			continue
		}
		providers = append(providers, ProviderResponse{ID: id, Models: models})
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"active":    h.active,
		"providers": providers,
	})
}
