package docsystem

import "time"

// SentimentLabel is the canonical three-way sentiment scale
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "Positive"
	SentimentNeutral  SentimentLabel = "Neutral"
	SentimentNegative SentimentLabel = "Negative"
)

// Valid reports whether the label is one of the canonical values
func (l SentimentLabel) Valid() bool {
	switch l {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Classification is the sentiment result for one document.
// Document is populated by list queries that join the documents table.
type Classification struct {
	ID         string         `json:"id" db:"id"`
	DocumentID string         `json:"document_id" db:"document_id"`
	OwnerID    string         `json:"-" db:"owner_id"`
	Label      SentimentLabel `json:"label" db:"label"`
	Score      float64        `json:"score" db:"score"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	Document   *Document      `json:"document,omitempty"`
}
