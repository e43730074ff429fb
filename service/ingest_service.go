package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dadyar-backend/chunker"
	"dadyar-backend/models"
	"dadyar-backend/normalizer"
)

// ChunkStore persists legal chunks.
type ChunkStore interface {
	Insert(ctx context.Context, chunk *models.LegalChunk) error
}

// Embedder generates embedding vectors for chunks and queries.
type Embedder interface {
	EmbedChunk(ctx context.Context, text string) []float32
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

var (
	ErrInsufficientContent = errors.New("insufficient content after normalization")
	ErrFetchFailed         = errors.New("failed to fetch source URL")
)

// maxFetchBytes caps how much of a scraped page is read.
const maxFetchBytes = 10 << 20

// IngestService runs the ingestion pipeline: normalize, chunk, embed, store.
// Chunks are processed sequentially and failures are isolated per chunk; the
// run always completes and reports saved-count versus total-count.
type IngestService struct {
	store    ChunkStore
	embedder Embedder
	client   *http.Client
}

// IngestServiceOption is a functional option for IngestService
type IngestServiceOption func(*IngestService)

// IngestWithStore sets the chunk store
func IngestWithStore(store ChunkStore) IngestServiceOption {
	return func(s *IngestService) {
		s.store = store
	}
}

// IngestWithEmbedder sets the embedding client
func IngestWithEmbedder(embedder Embedder) IngestServiceOption {
	return func(s *IngestService) {
		s.embedder = embedder
	}
}

// IngestWithHTTPClient sets the HTTP client used to fetch source pages
func IngestWithHTTPClient(client *http.Client) IngestServiceOption {
	return func(s *IngestService) {
		s.client = client
	}
}

// NewIngestService creates a new ingest service
func NewIngestService(opts ...IngestServiceOption) *IngestService {
	s := &IngestService{
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	TotalChunks   int `json:"total_chunks"`
	SavedCount    int `json:"saved_count"`
	ContentLength int `json:"content_length"`
}

// IngestResult is the outcome of one ingestion run. Logs are human-readable
// progress lines returned to the client.
type IngestResult struct {
	Logs  []string    `json:"logs"`
	Stats IngestStats `json:"stats"`
}

// ScrapeURL fetches the HTML of a single source page.
func (s *IngestService) ScrapeURL(ctx context.Context, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", "dadyar-ingest/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: received status code %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	return string(body), nil
}

// IngestHTML normalizes raw HTML and runs the chunk/embed/store pipeline.
func (s *IngestService) IngestHTML(ctx context.Context, html, sourceURL, category string) (*IngestResult, error) {
	text := normalizer.Normalize(html)
	return s.ingest(ctx, text, sourceURL, category,
		fmt.Sprintf("Normalized HTML to %d characters of text", len(text)))
}

// IngestText runs the pipeline on already-extracted plain text (file uploads).
func (s *IngestService) IngestText(ctx context.Context, text, sourceURL, category string) (*IngestResult, error) {
	text = strings.TrimSpace(text)
	return s.ingest(ctx, text, sourceURL, category,
		fmt.Sprintf("Received %d characters of extracted text", len(text)))
}

func (s *IngestService) ingest(ctx context.Context, text, sourceURL, category, firstLog string) (*IngestResult, error) {
	if len(text) < normalizer.MinContentLength {
		return nil, ErrInsufficientContent
	}

	result := &IngestResult{
		Logs: []string{firstLog},
		Stats: IngestStats{
			ContentLength: len(text),
		},
	}

	chunks := chunker.Split(text)
	result.Stats.TotalChunks = len(chunks)
	result.Logs = append(result.Logs, fmt.Sprintf("Split into %d chunks", len(chunks)))

	for _, chunk := range chunks {
		label := chunk.ArticleNumber
		if label == "" {
			label = "(unlabeled)"
		}

		embedding := s.embedder.EmbedChunk(ctx, chunk.Content)
		if embedding == nil {
			result.Logs = append(result.Logs,
				fmt.Sprintf("Warning: embedding failed for %s, storing without embedding", label))
		}

		row := &models.LegalChunk{
			Content:   chunk.Content,
			Category:  category,
			SourceURL: sourceURL,
			Embedding: embedding,
		}
		if chunk.ArticleNumber != "" {
			row.ArticleNumber = &chunk.ArticleNumber
		}

		if err := s.store.Insert(ctx, row); err != nil {
			result.Logs = append(result.Logs,
				fmt.Sprintf("Warning: failed to save %s: %v", label, err))
			continue
		}

		result.Stats.SavedCount++
		result.Logs = append(result.Logs, fmt.Sprintf("Saved %s (%d characters)", label, len(chunk.Content)))
	}

	result.Logs = append(result.Logs,
		fmt.Sprintf("Done: saved %d of %d chunks", result.Stats.SavedCount, result.Stats.TotalChunks))

	return result, nil
}
