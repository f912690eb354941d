package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bravo68web/qadeck/internal/application/dto"
	"github.com/bravo68web/qadeck/internal/application/service"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
)

// CardHandler exposes the card workflow operations
type CardHandler struct {
	cardService *service.CardService
}

// NewCardHandler creates a new CardHandler instance
func NewCardHandler(cardService *service.CardService) *CardHandler {
	return &CardHandler{cardService: cardService}
}

// CreateCard handles POST /api/v1/basecamp/cards
func (h *CardHandler) CreateCard(c *gin.Context) {
	userID := requireUser(c)
	if userID == "" {
		return
	}

	var req dto.CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.BadRequest("invalid request body", err))
		return
	}

	card, err := h.cardService.CreateTestNoteCard(c.Request.Context(), userID, req.TestID, req.Notes, req.TestTitle)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, card)
}

// GetCard handles GET /api/v1/basecamp/cards/:id
func (h *CardHandler) GetCard(c *gin.Context) {
	userID := requireUser(c)
	if userID == "" {
		return
	}
	cardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	card, err := h.cardService.GetCard(c.Request.Context(), userID, cardID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, card)
}

// ListColumnCards handles GET /api/v1/basecamp/columns/:id/cards
func (h *CardHandler) ListColumnCards(c *gin.Context) {
	userID := requireUser(c)
	if userID == "" {
		return
	}
	columnID, ok := parseID(c, "id")
	if !ok {
		return
	}

	cards, err := h.cardService.ListColumnCards(c.Request.Context(), userID, columnID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, cards)
}

// AcceptCard handles POST /api/v1/basecamp/cards/:id/accept
func (h *CardHandler) AcceptCard(c *gin.Context) {
	h.cardAction(c, h.cardService.AcceptCard)
}

// RejectCard handles POST /api/v1/basecamp/cards/:id/reject
func (h *CardHandler) RejectCard(c *gin.Context) {
	h.cardAction(c, h.cardService.RejectCard)
}

// DeleteCard handles DELETE /api/v1/basecamp/cards/:id
func (h *CardHandler) DeleteCard(c *gin.Context) {
	h.cardAction(c, h.cardService.DeleteCard)
}

func (h *CardHandler) cardAction(c *gin.Context, op func(ctx context.Context, userID string, cardID int64) error) {
	userID := requireUser(c)
	if userID == "" {
		return
	}
	cardID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := op(c.Request.Context(), userID, cardID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"card_id": cardID})
}
