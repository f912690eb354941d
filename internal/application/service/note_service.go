package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bravo68web/qadeck/internal/domain/models"
	"github.com/bravo68web/qadeck/internal/domain/repository"
	domainservice "github.com/bravo68web/qadeck/internal/domain/service"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
	"github.com/bravo68web/qadeck/pkg/logger"
)

// SaveNoteInput is a QA note to store, optionally mirrored to a Basecamp card
type SaveNoteInput struct {
	UserID     string
	TestID     string
	TestTitle  string
	Notes      string
	CreateCard bool
}

// SaveNoteResult reports the stored note and, separately, the card outcome
type SaveNoteResult struct {
	Note      *models.TestNote
	Card      *models.Card
	CardError string
}

// RemoveCardResult keeps the remote and local outcomes of a card removal apart
type RemoveCardResult struct {
	BasecampDeleted bool   `json:"basecamp_deleted"`
	DBUpdated       bool   `json:"db_updated"`
	BasecampError   string `json:"basecamp_error,omitempty"`
}

// NoteService stores QA notes and tracks the Basecamp cards created for them.
// The local card references are authoritative; remote calls are best-effort.
type NoteService struct {
	noteRepo repository.TestNoteRepository
	cards    *CardService
	cache    domainservice.Cache
	cacheTTL time.Duration
	log      *logger.Logger
}

// NewNoteService creates a new NoteService. cache may be nil.
func NewNoteService(
	noteRepo repository.TestNoteRepository,
	cards *CardService,
	cache domainservice.Cache,
	cacheTTL time.Duration,
) *NoteService {
	return &NoteService{
		noteRepo: noteRepo,
		cards:    cards,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      logger.Get().WithFields(logger.Component("note-service")),
	}
}

// SaveNote persists the note first. A card failure is reported in the result
// and never fails the save.
func (s *NoteService) SaveNote(ctx context.Context, in SaveNoteInput) (*SaveNoteResult, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, apperrors.Unauthorized("", apperrors.ErrUnauthorized)
	}
	if strings.TrimSpace(in.TestID) == "" {
		return nil, apperrors.ValidationError("test_id", "test id is required")
	}

	note := &models.TestNote{
		UserID:          in.UserID,
		TestID:          in.TestID,
		TestTitle:       in.TestTitle,
		Notes:           in.Notes,
		BasecampCardIDs: models.CardIDs(nil),
	}
	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, err
	}

	result := &SaveNoteResult{Note: note}
	if !in.CreateCard {
		return result, nil
	}

	card, err := s.cards.CreateTestNoteCard(ctx, in.UserID, in.TestID, in.Notes, in.TestTitle)
	if err != nil {
		result.CardError = err.Error()
		return result, nil
	}
	result.Card = card

	ref := strconv.FormatInt(card.ID, 10)
	if err := s.noteRepo.AddCard(ctx, note.ID, ref); err != nil {
		// The card exists remotely but is untracked; surface it rather than fail the saved note.
		s.log.WithContext(ctx).Error("Failed to record card reference",
			logger.NoteID(note.ID.String()), logger.CardID(card.ID), logger.Error(err))
		result.CardError = err.Error()
		return result, nil
	}
	note.BasecampCardIDs = append(note.BasecampCardIDs, ref)
	s.invalidate(ctx, in.UserID, note.ID)

	return result, nil
}

// RemoveCard deletes the card remotely (best-effort) and then drops the local
// reference. The local removal happens even when Basecamp refuses the delete.
func (s *NoteService) RemoveCard(ctx context.Context, userID string, noteID uuid.UUID, cardID int64) (*RemoveCardResult, error) {
	note, err := s.ownedNote(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}

	ref := strconv.FormatInt(cardID, 10)
	if !note.HasCard(ref) {
		return nil, apperrors.NotFound("card reference", apperrors.ErrNotFound)
	}

	result := &RemoveCardResult{}
	if err := s.cards.DeleteCard(ctx, userID, cardID); err != nil {
		result.BasecampError = err.Error()
	} else {
		result.BasecampDeleted = true
	}

	if err := s.noteRepo.RemoveCard(ctx, noteID, ref); err != nil {
		return result, err
	}
	result.DBUpdated = true
	s.invalidate(ctx, userID, noteID)

	s.log.WithContext(ctx).Info("Card reference removed",
		logger.NoteID(noteID.String()),
		logger.CardID(cardID),
		logger.Bool("basecamp_deleted", result.BasecampDeleted),
	)
	return result, nil
}

// ListNoteCards returns the Basecamp cards attached to a note. Cards that no
// longer exist remotely are skipped.
func (s *NoteService) ListNoteCards(ctx context.Context, userID string, noteID uuid.UUID) ([]models.Card, error) {
	key := noteCacheKey(userID, noteID)
	if s.cache != nil {
		var cached []models.Card
		if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	note, err := s.ownedNote(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}

	cards := make([]models.Card, 0, len(note.BasecampCardIDs))
	for _, ref := range note.BasecampCardIDs {
		id, err := strconv.ParseInt(ref, 10, 64)
		if err != nil {
			s.log.WithContext(ctx).Warn("Ignoring malformed card reference",
				logger.NoteID(noteID.String()), logger.String("ref", ref))
			continue
		}
		card, err := s.cards.GetCard(ctx, userID, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrRemoteAPI) && apperrors.StatusOf(err) == http.StatusNotFound {
				continue
			}
			return nil, err
		}
		cards = append(cards, *card)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cards, s.cacheTTL); err != nil {
			s.log.WithContext(ctx).Warn("Note card cache write failed", logger.Error(err))
		}
	}
	return cards, nil
}

// ListNotes returns a user's notes for one test
func (s *NoteService) ListNotes(ctx context.Context, userID, testID string) ([]*models.TestNote, error) {
	return s.noteRepo.FindByUserAndTest(ctx, userID, testID)
}

func (s *NoteService) ownedNote(ctx context.Context, userID string, noteID uuid.UUID) (*models.TestNote, error) {
	note, err := s.noteRepo.FindByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.UserID != userID {
		return nil, apperrors.Forbidden("you do not own this note", apperrors.ErrForbidden)
	}
	return note, nil
}

func (s *NoteService) invalidate(ctx context.Context, userID string, noteID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, noteCacheKey(userID, noteID)); err != nil {
		s.log.WithContext(ctx).Warn("Note card cache invalidation failed", logger.Error(err))
	}
}

func noteCacheKey(userID string, noteID uuid.UUID) string {
	return "note-cards:" + userID + ":" + noteID.String()
}
