package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/bravo68web/qadeck/internal/config"
	"github.com/bravo68web/qadeck/internal/domain/models"
	domainservice "github.com/bravo68web/qadeck/internal/domain/service"
	"github.com/bravo68web/qadeck/internal/observability"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
	"github.com/bravo68web/qadeck/pkg/logger"
)

// CardService implements the QA card workflow on top of the Basecamp client:
// test-note cards, accept, reject and delete.
type CardService struct {
	clients  domainservice.BasecampClientFactory
	cfg      config.BasecampConfig
	cache    domainservice.Cache
	cacheTTL time.Duration
	now      func() time.Time
	log      *logger.Logger
}

// NewCardService creates a new CardService. cache may be nil.
func NewCardService(
	clients domainservice.BasecampClientFactory,
	cfg config.BasecampConfig,
	cache domainservice.Cache,
	cacheTTL time.Duration,
) *CardService {
	return &CardService{
		clients:  clients,
		cfg:      cfg,
		cache:    cache,
		cacheTTL: cacheTTL,
		now:      time.Now,
		log:      logger.Get().WithFields(logger.Component("card-service")),
	}
}

// TestNoteCardTitle formats the title of a test-note card
func TestNoteCardTitle(userID, testID, testTitle string) string {
	label := strings.TrimSpace(testTitle)
	if label == "" {
		label = testID
	}
	return fmt.Sprintf("Test Note: %s (User: %s)", label, userID)
}

// TestNoteCardContent renders the HTML body of a test-note card
func TestNoteCardContent(userID, testID, notes, testTitle string, at time.Time) string {
	body := html.EscapeString(notes)
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\n", "<br>")

	title := testTitle
	if strings.TrimSpace(title) == "" {
		title = testID
	}

	var b strings.Builder
	b.WriteString("<div>")
	fmt.Fprintf(&b, "<strong>User:</strong> %s<br>", html.EscapeString(userID))
	fmt.Fprintf(&b, "<strong>Test ID:</strong> %s<br>", html.EscapeString(testID))
	fmt.Fprintf(&b, "<strong>Test:</strong> %s<br>", html.EscapeString(title))
	fmt.Fprintf(&b, "<strong>Created:</strong> %s", at.UTC().Format(time.RFC3339))
	b.WriteString("</div>")
	fmt.Fprintf(&b, "<div><strong>Notes:</strong><br>%s</div>", body)
	return b.String()
}

// CreateTestNoteCard creates a card for a QA note in the default column
func (s *CardService) CreateTestNoteCard(ctx context.Context, userID, testID, notes, testTitle string) (*models.Card, error) {
	if strings.TrimSpace(testID) == "" {
		return nil, apperrors.ValidationError("test_id", "test id is required")
	}

	input := models.CreateCardInput{
		Title:   TestNoteCardTitle(userID, testID, testTitle),
		Content: TestNoteCardContent(userID, testID, notes, testTitle, s.now()),
	}

	card, err := s.clients.ForUser(userID).CreateCard(ctx, s.cfg.ProjectID, s.cfg.ColumnID, input)
	observability.CardOperationsTotal.WithLabelValues("create", observability.Result(err)).Inc()
	if err != nil {
		s.log.WithContext(ctx).Warn("Failed to create test note card",
			logger.UserID(userID), logger.TestID(testID), logger.Error(err))
		return nil, err
	}

	s.invalidateColumns(ctx, userID, s.cfg.ColumnID)
	s.log.WithContext(ctx).Info("Test note card created",
		logger.UserID(userID), logger.TestID(testID), logger.CardID(card.ID))
	return card, nil
}

// AcceptCard moves a card to the column configured for "accept"
func (s *CardService) AcceptCard(ctx context.Context, userID string, cardID int64) error {
	return s.moveTo(ctx, userID, cardID, config.ActionAccept)
}

// RejectCard moves a card to the column configured for "reject"
func (s *CardService) RejectCard(ctx context.Context, userID string, cardID int64) error {
	return s.moveTo(ctx, userID, cardID, config.ActionReject)
}

func (s *CardService) moveTo(ctx context.Context, userID string, cardID int64, action string) error {
	columnID, err := s.cfg.ColumnFor(action)
	if err != nil {
		return apperrors.ConfigError(err.Error())
	}

	err = s.clients.ForUser(userID).MoveCard(ctx, s.cfg.ProjectID, cardID, columnID)
	observability.CardOperationsTotal.WithLabelValues(action, observability.Result(err)).Inc()
	if err != nil {
		s.log.WithContext(ctx).Warn("Failed to move card",
			logger.UserID(userID), logger.CardID(cardID), logger.ColumnID(columnID),
			logger.Operation(action), logger.Error(err))
		return err
	}

	s.invalidateColumns(ctx, userID, s.workflowColumns()...)
	s.log.WithContext(ctx).Info("Card moved",
		logger.UserID(userID), logger.CardID(cardID), logger.ColumnID(columnID), logger.Operation(action))
	return nil
}

// DeleteCard deletes a card remotely. Callers treat a failure as best-effort.
func (s *CardService) DeleteCard(ctx context.Context, userID string, cardID int64) error {
	err := s.clients.ForUser(userID).DeleteCard(ctx, s.cfg.ProjectID, cardID)
	observability.CardOperationsTotal.WithLabelValues("delete", observability.Result(err)).Inc()
	if err != nil {
		s.log.WithContext(ctx).Warn("Failed to delete card",
			logger.UserID(userID), logger.CardID(cardID), logger.Error(err))
		return err
	}

	s.invalidateColumns(ctx, userID, s.workflowColumns()...)
	return nil
}

// GetCard fetches one card from the default project
func (s *CardService) GetCard(ctx context.Context, userID string, cardID int64) (*models.Card, error) {
	return s.clients.ForUser(userID).GetCard(ctx, s.cfg.ProjectID, cardID)
}

// ListColumnCards lists a column's cards through the read-through cache.
// columnID 0 means the default column.
func (s *CardService) ListColumnCards(ctx context.Context, userID string, columnID int64) ([]models.Card, error) {
	if columnID == 0 {
		columnID = s.cfg.ColumnID
	}
	key := columnCacheKey(userID, columnID)

	if s.cache != nil {
		var cached []models.Card
		if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
			s.log.WithContext(ctx).Warn("Card cache read failed", logger.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	cards, err := s.clients.ForUser(userID).ListCards(ctx, s.cfg.ProjectID, columnID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cards, s.cacheTTL); err != nil {
			s.log.WithContext(ctx).Warn("Card cache write failed", logger.Error(err))
		}
	}
	return cards, nil
}

func (s *CardService) workflowColumns() []int64 {
	cols := []int64{s.cfg.ColumnID}
	for _, id := range s.cfg.Columns {
		cols = append(cols, id)
	}
	return cols
}

func (s *CardService) invalidateColumns(ctx context.Context, userID string, columnIDs ...int64) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(columnIDs))
	for _, id := range columnIDs {
		keys = append(keys, columnCacheKey(userID, id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.WithContext(ctx).Warn("Card cache invalidation failed", logger.Error(err))
	}
}

func columnCacheKey(userID string, columnID int64) string {
	return fmt.Sprintf("cards:%s:%d", userID, columnID)
}
