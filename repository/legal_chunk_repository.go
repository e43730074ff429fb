package repository

import (
	"context"
	"fmt"

	"dadyar-backend/llm"
	"dadyar-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// LegalChunkRepository handles database operations for legal document chunks
type LegalChunkRepository struct {
	db *pgxpool.Pool
}

// NewLegalChunkRepository creates a new legal chunk repository
func NewLegalChunkRepository(db *pgxpool.Pool) *LegalChunkRepository {
	return &LegalChunkRepository{db: db}
}

// Insert persists one chunk. A nil embedding is stored as NULL; such rows
// never appear in similarity results. Every ingestion run inserts new rows,
// there is no upsert or cross-run deduplication.
func (r *LegalChunkRepository) Insert(ctx context.Context, chunk *models.LegalChunk) error {
	if chunk.ID == uuid.Nil {
		chunk.ID = uuid.New()
	}

	var embedding interface{}
	if chunk.Embedding != nil {
		embedding = pgvector.NewVector(chunk.Embedding)
	}

	query := `
		INSERT INTO legal_chunks (
			id, content, category, source_url, article_number, embedding
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.QueryRow(
		ctx, query,
		chunk.ID,
		chunk.Content,
		chunk.Category,
		chunk.SourceURL,
		chunk.ArticleNumber,
		embedding,
	).Scan(&chunk.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert legal chunk: %w", err)
	}

	return nil
}

// Search performs a nearest-neighbor search over stored embeddings.
// Similarity is 1 - cosine distance; only rows clearing the threshold are
// returned, ranked descending, at most matchCount of them. A non-empty
// category restricts candidates to an exact match. Rows with NULL embeddings
// are excluded explicitly. An empty result is a valid, common outcome.
func (r *LegalChunkRepository) Search(
	ctx context.Context,
	embedding []float32,
	matchThreshold float64,
	matchCount int,
	category string,
) ([]models.SimilarityMatch, error) {
	if len(embedding) != llm.Dimensions {
		return nil, fmt.Errorf("embedding must be %d dimensions, got %d", llm.Dimensions, len(embedding))
	}

	vector := pgvector.NewVector(embedding)

	var categoryFilter string
	args := []interface{}{vector, matchThreshold, matchCount}
	if category != "" {
		categoryFilter = "AND category = $4"
		args = append(args, category)
	}

	query := fmt.Sprintf(`
		SELECT
			id,
			content,
			category,
			source_url,
			article_number,
			1 - (embedding <=> $1) AS similarity
		FROM legal_chunks
		WHERE
			embedding IS NOT NULL
			AND 1 - (embedding <=> $1) >= $2
			%s
		ORDER BY
			embedding <=> $1
		LIMIT $3`, categoryFilter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query legal chunks: %w", err)
	}
	defer rows.Close()

	var matches []models.SimilarityMatch
	for rows.Next() {
		var match models.SimilarityMatch
		err := rows.Scan(
			&match.ID,
			&match.Content,
			&match.Category,
			&match.SourceURL,
			&match.ArticleNumber,
			&match.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan legal chunk: %w", err)
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating legal chunks: %w", err)
	}

	return matches, nil
}

// CountBySourceURL reports how many chunks already exist for a source. The
// bulk ingester uses it to skip files that were processed in a previous run.
func (r *LegalChunkRepository) CountBySourceURL(ctx context.Context, sourceURL string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM legal_chunks WHERE source_url = $1", sourceURL,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks for source: %w", err)
	}
	return count, nil
}
