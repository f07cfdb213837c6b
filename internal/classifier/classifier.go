// Package classifier defines the sentiment engine contract and maps engine
// vocabularies onto the canonical Positive/Neutral/Negative scale.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"docusight/internal/domain/models/docsystem"
)

// RawResult is one engine prediction before label normalization
type RawResult struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Engine scores texts. Implementations must return exactly one result per
// input, in input order. batchSize is a hint for engines that sub-batch.
type Engine interface {
	Classify(ctx context.Context, texts []string, batchSize int) ([]RawResult, error)
	Name() string
}

// ErrUnknownLabel is returned when a label maps to no canonical sentiment
var ErrUnknownLabel = errors.New("unknown sentiment label")

var starLabel = regexp.MustCompile(`^(\d+)\s+stars?$`)

// NormalizeLabel maps an engine label onto the canonical scale.
//
//	"1 star", "2 stars"  → Negative
//	"3 stars"            → Neutral
//	"4 stars", "5 stars" → Positive
//
// Any other label containing negative/neutral/positive (case-insensitive)
// maps to that value.
func NormalizeLabel(label string) (docsystem.SentimentLabel, error) {
	l := strings.ToLower(strings.TrimSpace(label))

	if m := starLabel.FindStringSubmatch(l); m != nil {
		stars, err := strconv.Atoi(m[1])
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrUnknownLabel, label)
		}
		switch {
		case stars <= 2:
			return docsystem.SentimentNegative, nil
		case stars == 3:
			return docsystem.SentimentNeutral, nil
		default:
			return docsystem.SentimentPositive, nil
		}
	}

	switch {
	case strings.Contains(l, "negative"):
		return docsystem.SentimentNegative, nil
	case strings.Contains(l, "neutral"):
		return docsystem.SentimentNeutral, nil
	case strings.Contains(l, "positive"):
		return docsystem.SentimentPositive, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLabel, label)
}

// Truncate cuts text to at most maxChars runes; maxChars <= 0 disables it
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == maxChars {
			return text[:i]
		}
		count++
	}
	return text
}
