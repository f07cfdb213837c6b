package capabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docusight/internal/classifier"
)

func TestRegistry_LoadsEmbeddedProfiles(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	assert.Equal(t, []string{ProviderHTTP, ProviderOpenAI}, r.GetAllProviders())

	models, err := r.ListProviderModels(ProviderHTTP)
	require.NoError(t, err)
	require.NotEmpty(t, models)
	assert.Equal(t, "nlptown/bert-base-multilingual-uncased-sentiment", models[0].ID, "YAML order preserved")
}

func TestRegistry_GetModelProfile(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	profile, err := r.GetModelProfile(ProviderHTTP, "nlptown/bert-base-multilingual-uncased-sentiment")
	require.NoError(t, err)
	assert.Equal(t, 32, profile.MaxBatchSize)
	assert.Equal(t, []string{"1 star", "2 stars", "3 stars", "4 stars", "5 stars"}, profile.Vocabulary)

	_, err = r.GetModelProfile(ProviderHTTP, "no-such-model")
	assert.Error(t, err)

	_, err = r.GetModelProfile("carrier-pigeon", "x")
	assert.Error(t, err)
}

// Every label a profile declares must map onto the canonical scale
func TestRegistry_VocabulariesNormalize(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	for _, provider := range r.GetAllProviders() {
		models, err := r.ListProviderModels(provider)
		require.NoError(t, err)
		for _, m := range models {
			for _, label := range m.Vocabulary {
				_, err := classifier.NormalizeLabel(label)
				assert.NoError(t, err, "%s/%s label %q", provider, m.ID, label)
			}
		}
	}
}

func TestModelProfile_BatchSize(t *testing.T) {
	tests := []struct {
		name      string
		max       int
		requested int
		want      int
	}{
		{"under limit", 32, 16, 16},
		{"capped", 8, 16, 8},
		{"no limit", 0, 100, 100},
		{"non-positive request", 8, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &ModelProfile{MaxBatchSize: tt.max}
			assert.Equal(t, tt.want, p.BatchSize(tt.requested))
		})
	}
}

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile("custom")
	assert.Equal(t, "custom", p.ID)
	assert.Zero(t, p.MaxBatchSize)
	assert.Equal(t, 5, p.BatchSize(5))
}
