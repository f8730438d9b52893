package models

import (
	"time"

	"github.com/google/uuid"
)

// FaceTemplate is one enrolled identity for a user: a label plus the
// embeddings extracted from the enrollment samples, in capture order.
// Re-enrolling a label appends a new template rather than merging.
type FaceTemplate struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	UserID     string      `json:"user_id" db:"user_id"`
	Label      string      `json:"label" db:"label"`
	Embeddings [][]float32 `json:"-"`
	SampleKeys []string    `json:"-"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}
