package repository

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bravo68web/qadeck/internal/domain/models"
	"github.com/bravo68web/qadeck/internal/domain/repository"
	apperror "github.com/bravo68web/qadeck/pkg/errors"
)

// TestNoteRepoImpl implements the TestNoteRepository interface using GORM
type TestNoteRepoImpl struct {
	db *gorm.DB
}

// NewTestNoteRepository creates a new TestNoteRepoImpl instance
func NewTestNoteRepository(db *gorm.DB) repository.TestNoteRepository {
	return &TestNoteRepoImpl{db: db}
}

// Create inserts a new note
func (r *TestNoteRepoImpl) Create(ctx context.Context, note *models.TestNote) error {
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		return apperror.DatabaseError("create test note", err)
	}
	return nil
}

// FindByID retrieves a note by its ID
func (r *TestNoteRepoImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.TestNote, error) {
	var note models.TestNote
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&note).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("test note", apperror.ErrNotFound)
		}
		return nil, apperror.DatabaseError("find test note by id", err)
	}
	return &note, nil
}

// FindByUserAndTest lists a user's notes for one test, newest first
func (r *TestNoteRepoImpl) FindByUserAndTest(ctx context.Context, userID, testID string) ([]*models.TestNote, error) {
	var notes []*models.TestNote
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND test_id = ?", userID, testID).
		Order("created_at DESC").
		Find(&notes).Error
	if err != nil {
		return nil, apperror.DatabaseError("find test notes", err)
	}
	return notes, nil
}

// AddCard appends a card reference; adding an existing reference is a no-op
func (r *TestNoteRepoImpl) AddCard(ctx context.Context, id uuid.UUID, cardID string) error {
	return r.mutateCards(ctx, id, "add card to test note", func(cards []string) []string {
		if slices.Contains(cards, cardID) {
			return cards
		}
		return append(cards, cardID)
	})
}

// RemoveCard drops a card reference; removing a missing reference is a no-op
func (r *TestNoteRepoImpl) RemoveCard(ctx context.Context, id uuid.UUID, cardID string) error {
	return r.mutateCards(ctx, id, "remove card from test note", func(cards []string) []string {
		return slices.DeleteFunc(cards, func(c string) bool { return c == cardID })
	})
}

// mutateCards does a locked read-modify-write so concurrent updates do not lose references
func (r *TestNoteRepoImpl) mutateCards(ctx context.Context, id uuid.UUID, op string, fn func([]string) []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var note models.TestNote
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&note).Error; err != nil {
			return err
		}
		cards := fn(append([]string(nil), note.BasecampCardIDs...))
		return tx.Model(&models.TestNote{}).Where("id = ?", id).
			Update("basecamp_card_ids", models.CardIDs(cards)).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("test note", apperror.ErrNotFound)
		}
		return apperror.DatabaseError(op, err)
	}
	return nil
}

// Verify interface compliance at compile time
var _ repository.TestNoteRepository = (*TestNoteRepoImpl)(nil)
