package capabilities

import "gopkg.in/yaml.v3"

// ModelProfile describes how a sentiment model is called and what it answers
type ModelProfile struct {
	// Model identifier (set during YAML unmarshaling)
	ID string `yaml:"-" json:"id"`

	DisplayName string `yaml:"display_name" json:"display_name"`
	Description string `yaml:"description" json:"description"`

	// Vocabulary lists the raw labels the model emits, in its own terms
	Vocabulary []string `yaml:"vocabulary" json:"vocabulary"`

	// Limits. Zero means no model-imposed limit.
	MaxBatchSize  int `yaml:"max_batch_size" json:"max_batch_size"`
	MaxInputChars int `yaml:"max_input_chars" json:"max_input_chars"`
}

// BatchSize caps requested by the model's own limit
func (p *ModelProfile) BatchSize(requested int) int {
	if requested <= 0 {
		requested = 1
	}
	if p.MaxBatchSize > 0 && p.MaxBatchSize < requested {
		return p.MaxBatchSize
	}
	return requested
}

// ProviderProfiles represents all models for an engine provider
type ProviderProfiles struct {
	Provider string         `yaml:"provider" json:"provider"`
	Models   []ModelProfile `yaml:"-" json:"models"` // Ordered slice, populated by custom unmarshaler
}

// UnmarshalYAML implements custom YAML unmarshaling to preserve model order from YAML file
func (p *ProviderProfiles) UnmarshalYAML(node *yaml.Node) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "provider" {
			p.Provider = node.Content[i+1].Value
			break
		}
	}

	type modelsOnly struct {
		Models map[string]ModelProfile `yaml:"models"`
	}
	var m modelsOnly
	if err := node.Decode(&m); err != nil {
		return err
	}

	// map decoding loses order; walk the node to restore it
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "models" {
			continue
		}
		modelsNode := node.Content[i+1]
		for j := 0; j+1 < len(modelsNode.Content); j += 2 {
			modelID := modelsNode.Content[j].Value
			if model, ok := m.Models[modelID]; ok {
				model.ID = modelID
				p.Models = append(p.Models, model)
			}
		}
		break
	}

	return nil
}
