package service

import (
	"context"
	"errors"
	"fmt"

	"dadyar-backend/models"
)

// ChunkSearcher runs similarity queries over stored chunks.
type ChunkSearcher interface {
	Search(ctx context.Context, embedding []float32, matchThreshold float64, matchCount int, category string) ([]models.SimilarityMatch, error)
}

const (
	defaultMatchCount     = 10
	defaultMatchThreshold = 0.3
	maxMatchCount         = 50
)

var ErrInvalidThreshold = errors.New("match threshold must be between 0 and 1")

// SearchService embeds a query and runs a similarity search.
type SearchService struct {
	embedder Embedder
	searcher ChunkSearcher
}

func NewSearchService(embedder Embedder, searcher ChunkSearcher) *SearchService {
	return &SearchService{
		embedder: embedder,
		searcher: searcher,
	}
}

// SearchRequest carries the search parameters. Zero values for MatchCount and
// MatchThreshold select the defaults; a nil MatchThreshold cannot be expressed
// here, so 0 is a valid explicit threshold only via the pointer field.
type SearchRequest struct {
	Query          string
	Category       string
	MatchCount     int
	MatchThreshold *float64
}

// Search embeds the query and returns ranked matches. An empty result is a
// valid outcome, not an error.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) ([]models.SimilarityMatch, error) {
	count := req.MatchCount
	if count <= 0 {
		count = defaultMatchCount
	}
	if count > maxMatchCount {
		count = maxMatchCount
	}

	threshold := defaultMatchThreshold
	if req.MatchThreshold != nil {
		threshold = *req.MatchThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, ErrInvalidThreshold
	}

	embedding, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := s.searcher.Search(ctx, embedding, threshold, count, req.Category)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	return matches, nil
}
