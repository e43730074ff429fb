package repository

import (
	"context"

	"dadyar-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatInteractionRepository handles database operations for chat logs
type ChatInteractionRepository struct {
	db *pgxpool.Pool
}

// NewChatInteractionRepository creates a new chat interaction repository
func NewChatInteractionRepository(db *pgxpool.Pool) *ChatInteractionRepository {
	return &ChatInteractionRepository{db: db}
}

// Create records one answered chat query
func (r *ChatInteractionRepository) Create(ctx context.Context, interaction *models.ChatInteraction) error {
	if interaction.ID == uuid.Nil {
		interaction.ID = uuid.New()
	}

	query := `
		INSERT INTO chat_interactions (
			id, query, answer, source_count
		) VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	return r.db.QueryRow(
		ctx, query,
		interaction.ID,
		interaction.Query,
		interaction.Answer,
		interaction.SourceCount,
	).Scan(&interaction.CreatedAt)
}
