package models

import (
	"time"

	"github.com/google/uuid"
)

// Known document categories. The column is an open string set; these are the
// values the frontend actually sends.
const (
	CategoryLaborLaw       = "labor_law"
	CategorySocialSecurity = "social_security"
	CategoryCourtRulings   = "court_rulings"
)

// LegalChunk is one stored unit of legal text, ideally a single law article.
type LegalChunk struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	SourceURL string    `json:"source_url"`

	// ArticleNumber is the article identifier ("۱۲"), the preamble marker
	// ("مقدمه"), or a synthetic section label ("بخش ۳") from the paragraph
	// fallback. Nil for the degenerate single-chunk case.
	ArticleNumber *string `json:"article_number"`

	// Embedding is nil when embedding generation failed for this chunk.
	// Such rows are stored but excluded from similarity search.
	Embedding []float32 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// SimilarityMatch is a LegalChunk projected with its similarity score
// relative to a query vector. Produced per query, never persisted.
type SimilarityMatch struct {
	ID            uuid.UUID `json:"id"`
	Content       string    `json:"content"`
	Category      string    `json:"category"`
	SourceURL     string    `json:"source_url"`
	ArticleNumber *string   `json:"article_number"`
	Similarity    float64   `json:"similarity"`
}

// ChatSource is a citation attached to a chat answer.
type ChatSource struct {
	ArticleNumber *string `json:"article_number"`
	Category      string  `json:"category"`
	Similarity    float64 `json:"similarity"`
}

// ChatAnswer is the chat orchestrator's result.
type ChatAnswer struct {
	Answer  string       `json:"answer"`
	Sources []ChatSource `json:"sources"`
}
