package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bravo68web/qadeck/internal/application/dto"
	"github.com/bravo68web/qadeck/internal/application/service"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
)

// NoteHandler handles QA notes and the cards attached to them
type NoteHandler struct {
	noteService *service.NoteService
}

// NewNoteHandler creates a new NoteHandler instance
func NewNoteHandler(noteService *service.NoteService) *NoteHandler {
	return &NoteHandler{noteService: noteService}
}

// SaveNote handles POST /api/v1/notes. A failed card creation still answers
// 201 with card_error set.
func (h *NoteHandler) SaveNote(c *gin.Context) {
	userID := requireUser(c)
	if userID == "" {
		return
	}

	var req dto.SaveNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.BadRequest("invalid request body", err))
		return
	}

	res, err := h.noteService.SaveNote(c.Request.Context(), service.SaveNoteInput{
		UserID:     userID,
		TestID:     req.TestID,
		TestTitle:  req.TestTitle,
		Notes:      req.Notes,
		CreateCard: req.CreateCard,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	out := dto.NewNoteResponse(res.Note)
	out.Card = res.Card
	out.CardError = res.CardError
	respondOK(c, http.StatusCreated, out)
}

// ListNotes handles GET /api/v1/notes?test_id=
func (h *NoteHandler) ListNotes(c *gin.Context) {
	userID := requireUser(c)
	if userID == "" {
		return
	}
	testID := c.Query("test_id")
	if testID == "" {
		respondError(c, apperrors.ValidationError("test_id", "test_id is required"))
		return
	}

	notes, err := h.noteService.ListNotes(c.Request.Context(), userID, testID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.NoteResponse, len(notes))
	for i, n := range notes {
		out[i] = dto.NewNoteResponse(n)
	}
	respondOK(c, http.StatusOK, out)
}

// ListNoteCards handles GET /api/v1/notes/:id/cards
func (h *NoteHandler) ListNoteCards(c *gin.Context) {
	userID := requireUser(c)
	if userID == "" {
		return
	}
	noteID, ok := parseNoteID(c)
	if !ok {
		return
	}

	cards, err := h.noteService.ListNoteCards(c.Request.Context(), userID, noteID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, cards)
}

// RemoveCard handles DELETE /api/v1/notes/:id/cards/:cardId. The result
// reports the Basecamp delete and the local update separately.
func (h *NoteHandler) RemoveCard(c *gin.Context) {
	userID := requireUser(c)
	if userID == "" {
		return
	}
	noteID, ok := parseNoteID(c)
	if !ok {
		return
	}
	cardID, ok := parseID(c, "cardId")
	if !ok {
		return
	}

	res, err := h.noteService.RemoveCard(c.Request.Context(), userID, noteID, cardID)
	if err != nil {
		if res != nil {
			c.JSON(apperrors.HTTPStatusOf(err), dto.Result{Success: false, Data: res, Error: err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, res)
}

func parseNoteID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.ValidationError("id", "invalid note id"))
		return uuid.Nil, false
	}
	return id, true
}
