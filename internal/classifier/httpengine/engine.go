// Package httpengine calls a text-classification inference endpoint that
// speaks the Hugging Face inference API shape.
package httpengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"docusight/internal/classifier"
)

// Config points the engine at an inference endpoint
type Config struct {
	URL     string // full endpoint URL, e.g. https://api-inference.huggingface.co/models/<model>
	APIKey  string // sent as a bearer token when set
	Model   string // reported in logs only
	Timeout time.Duration
}

// Engine is a classifier.Engine over HTTP
type Engine struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New creates an engine. A zero Timeout defaults to two minutes.
func New(cfg Config, logger *slog.Logger) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Engine{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Name returns the engine name for logging
func (e *Engine) Name() string { return "http:" + e.cfg.Model }

type inferenceRequest struct {
	Inputs     []string            `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
	Options    inferenceOptions    `json:"options"`
}

type inferenceParameters struct {
	Truncation bool `json:"truncation"`
}

type inferenceOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// Classify sends texts in sub-batches of batchSize and returns one result
// per text in order
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
	body, err := json.Marshal(inferenceRequest{
		Inputs:     texts,
		Parameters: inferenceParameters{Truncation: true},
		Options:    inferenceOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, fmt.Errorf("encode inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference endpoint returned %d: %s", resp.StatusCode, truncateBody(payload))
	}

	e.logger.Debug("inference batch complete",
		"engine", e.Name(),
		"inputs", len(texts),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return parseResults(payload)
}

// parseResults accepts either one prediction per input or a ranked list of
// predictions per input, in which case the highest score wins
func parseResults(payload []byte) ([]classifier.RawResult, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}

	results := make([]classifier.RawResult, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '[' {
			var ranked []classifier.RawResult
			if err := json.Unmarshal(item, &ranked); err != nil {
				return nil, fmt.Errorf("decode prediction %d: %w", i, err)
			}
			if len(ranked) == 0 {
				return nil, fmt.Errorf("prediction %d is empty", i)
			}
			best := ranked[0]
			for _, r := range ranked[1:] {
				if r.Score > best.Score {
					best = r
				}
			}
			results[i] = best
			continue
		}

		if err := json.Unmarshal(item, &results[i]); err != nil {
			return nil, fmt.Errorf("decode prediction %d: %w", i, err)
		}
	}
	return results, nil
}

func truncateBody(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
