package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

const (
	// Dimensions is the embedding dimensionality expected by the similarity
	// query (matches the vector(768) column).
	Dimensions = 768

	// maxEmbedInputChars truncates chunk or query text before embedding to
	// stay under the API input limit.
	maxEmbedInputChars = 8000

	maxRetries     = 3
	initialBackoff = time.Second

	defaultBaseURL = "https://generativelanguage.googleapis.com"
)

var (
	ErrRateLimited     = errors.New("embedding API rate limit exceeded")
	ErrQuotaExhausted  = errors.New("embedding API quota exhausted")
	ErrEmbeddingFailed = errors.New("failed to generate embedding")
)

// EmbedderConfig configures the Gemini embedding client.
type EmbedderConfig struct {
	APIKey    string
	Model     string
	BaseURL   string  // overridden in tests
	RateLimit float64 // requests per second
}

// Embedder calls the Gemini embedding API. Outbound calls are paced with a
// rate limiter so batch ingestion keeps API usage predictable.
type Embedder struct {
	config  EmbedderConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewEmbedder(config EmbedderConfig) *Embedder {
	if config.Model == "" {
		config.Model = "gemini-embedding-001"
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}

	return &Embedder{
		config:  config,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

type embeddingRequest struct {
	Model                string       `json:"model"`
	Content              contentInput `json:"content"`
	TaskType             string       `json:"task_type,omitempty"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

type contentInput struct {
	Parts []partInput `json:"parts"`
}

type partInput struct {
	Text string `json:"text"`
}

type embeddingResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// EmbedQuery embeds a search or chat query. Unlike EmbedChunk it returns an
// error so callers can decide between failing the request and falling back to
// general-knowledge mode.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, "RETRIEVAL_QUERY")
}

// EmbedChunk embeds one document chunk. It returns nil on any failure rather
// than an error: ingestion must continue for remaining chunks, and a chunk
// stored with a nil embedding is simply excluded from similarity search.
func (e *Embedder) EmbedChunk(ctx context.Context, text string) []float32 {
	embedding, err := e.embed(ctx, text, "RETRIEVAL_DOCUMENT")
	if err != nil {
		log.Printf("Warning: embedding failed for chunk: %v", err)
		return nil
	}
	return embedding
}

func (e *Embedder) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	if len(text) > maxEmbedInputChars {
		cut := maxEmbedInputChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	reqBody := embeddingRequest{
		Model: "models/" + e.config.Model,
		Content: contentInput{
			Parts: []partInput{{Text: text}},
		},
		TaskType:             taskType,
		OutputDimensionality: Dimensions,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:embedContent", e.config.BaseURL, e.config.Model)

	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", e.config.APIKey)

		resp, err := e.client.Do(req)
		if err != nil {
			if attempt == maxRetries-1 {
				return nil, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, err)
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			var apiResp embeddingResponse
			if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
				resp.Body.Close()
				if attempt == maxRetries-1 {
					return nil, fmt.Errorf("failed to decode response: %w", err)
				}
				continue
			}
			resp.Body.Close()

			if len(apiResp.Embedding.Values) == 0 {
				return nil, ErrEmbeddingFailed
			}
			return normalize(apiResp.Embedding.Values), nil
		}

		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized:
			// Not transient, don't retry.
			return nil, fmt.Errorf("API error: %d", resp.StatusCode)
		case http.StatusPaymentRequired:
			return nil, ErrQuotaExhausted
		case http.StatusTooManyRequests:
			if attempt == maxRetries-1 {
				return nil, ErrRateLimited
			}
		default:
			if attempt == maxRetries-1 {
				return nil, fmt.Errorf("API error after %d attempts: %d", maxRetries, resp.StatusCode)
			}
		}
	}

	return nil, ErrEmbeddingFailed
}

// Truncated output dimensions from the API are not unit length, so cosine
// similarity in SQL needs client-side normalization first.
func normalize(values []float64) []float32 {
	norm := 0.0
	for _, v := range values {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	embedding := make([]float32, len(values))
	for i, v := range values {
		if norm > 0 {
			v /= norm
		}
		embedding[i] = float32(v)
	}
	return embedding
}
