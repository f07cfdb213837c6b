// Package openaiengine classifies sentiment with an OpenAI-compatible chat
// completion model that answers in JSON.
package openaiengine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"docusight/internal/classifier"
)

// Config selects the model and the labels it may answer with
type Config struct {
	APIKey  string
	BaseURL string // optional, for OpenAI-compatible providers
	Model   string
	Labels  []string
}

// Engine is a classifier.Engine backed by chat completions
type Engine struct {
	api    *openai.Client
	model  string
	labels []string
	logger *slog.Logger
}

// New creates an engine. Labels default to the canonical three.
func New(cfg Config, logger *slog.Logger) *Engine {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	labels := cfg.Labels
	if len(labels) == 0 {
		labels = []string{"Positive", "Neutral", "Negative"}
	}

	return &Engine{
		api:    openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		labels: labels,
		logger: logger,
	}
}

// Name returns the engine name for logging
func (e *Engine) Name() string { return "openai:" + e.model }

type completionPayload struct {
	Results []classifier.RawResult `json:"results"`
}

// Classify sends texts in sub-batches of batchSize, one chat completion per
// sub-batch, and returns one result per text in order
func (e *Engine) Classify(ctx context.Context, texts []string, batchSize int) ([]classifier.RawResult, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	results := make([]classifier.RawResult, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch, err := e.classifyBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}
	return results, nil
}

func (e *Engine) classifyBatch(ctx context.Context, texts []string) ([]classifier.RawResult, error) {
	startTime := time.Now()

	req := openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: e.systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(texts)},
		},
	}

	resp, err := e.api.CreateChatCompletion(ctx, req)
	if err != nil {
		e.logger.Error("chat completion failed",
			"model", e.model,
			"error", err,
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	var payload completionPayload
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	if len(payload.Results) != len(texts) {
		return nil, fmt.Errorf("model returned %d results for %d texts", len(payload.Results), len(texts))
	}

	e.logger.Debug("chat completion batch complete",
		"model", e.model,
		"inputs", len(texts),
		"total_tokens", resp.Usage.TotalTokens,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
	return payload.Results, nil
}

func (e *Engine) systemPrompt() string {
	return fmt.Sprintf(`You are a sentiment classifier. For each numbered text, choose exactly one label from: %s.
Give a confidence score between 0 and 1.
Answer with a JSON object {"results":[{"label":"...","score":0.0}]} holding one entry per text, in the same order.`,
		strings.Join(e.labels, ", "))
}

func userPrompt(texts []string) string {
	var sb strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&sb, "Text %d:\n%s\n\n", i+1, t)
	}
	return sb.String()
}
