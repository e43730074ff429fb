package repository

import (
	"context"

	"dadyar-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SourceDocumentRepository handles database operations for uploaded source files
type SourceDocumentRepository struct {
	db *pgxpool.Pool
}

// NewSourceDocumentRepository creates a new source document repository
func NewSourceDocumentRepository(db *pgxpool.Pool) *SourceDocumentRepository {
	return &SourceDocumentRepository{db: db}
}

// Create creates a new source document record
func (r *SourceDocumentRepository) Create(ctx context.Context, doc *models.SourceDocument) error {
	query := `
		INSERT INTO source_documents (
			id, filename, mime_type, size, category, storage_path
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}

	return r.db.QueryRow(
		ctx, query,
		doc.ID,
		doc.Filename,
		doc.MimeType,
		doc.Size,
		doc.Category,
		doc.StoragePath,
	).Scan(&doc.CreatedAt)
}

// GetByID retrieves a source document by ID
func (r *SourceDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SourceDocument, error) {
	doc := &models.SourceDocument{}
	query := `
		SELECT id, filename, mime_type, size, category, storage_path, created_at
		FROM source_documents
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.Filename,
		&doc.MimeType,
		&doc.Size,
		&doc.Category,
		&doc.StoragePath,
		&doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return doc, nil
}
