package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatInteraction is one answered chat query, recorded for later review.
type ChatInteraction struct {
	ID          uuid.UUID `json:"id"`
	Query       string    `json:"query"`
	Answer      string    `json:"answer"`
	SourceCount int       `json:"source_count"`
	CreatedAt   time.Time `json:"created_at"`
}
