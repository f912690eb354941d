package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/bravo68web/qadeck/internal/domain/models"
)

// TestNoteRepository defines data access for QA notes and their card references
type TestNoteRepository interface {
	Create(ctx context.Context, note *models.TestNote) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.TestNote, error)
	FindByUserAndTest(ctx context.Context, userID, testID string) ([]*models.TestNote, error)

	// AddCard appends cardID to the note's card references
	AddCard(ctx context.Context, id uuid.UUID, cardID string) error

	// RemoveCard drops cardID from the note's card references
	RemoveCard(ctx context.Context, id uuid.UUID, cardID string) error
}
