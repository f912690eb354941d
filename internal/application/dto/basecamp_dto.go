package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/bravo68web/qadeck/internal/domain/models"
)

// CreateCardRequest creates a test-note card without storing a note
type CreateCardRequest struct {
	TestID    string `json:"test_id" binding:"required"`
	TestTitle string `json:"test_title"`
	Notes     string `json:"notes"`
}

// SaveNoteRequest stores a QA note and optionally mirrors it to Basecamp
type SaveNoteRequest struct {
	TestID     string `json:"test_id" binding:"required"`
	TestTitle  string `json:"test_title"`
	Notes      string `json:"notes"`
	CreateCard bool   `json:"create_card"`
}

// NoteResponse is a stored note with the outcome of its card creation
type NoteResponse struct {
	ID              uuid.UUID    `json:"id"`
	TestID          string       `json:"test_id"`
	TestTitle       string       `json:"test_title"`
	Notes           string       `json:"notes"`
	BasecampCardIDs []string     `json:"basecamp_card_ids"`
	CreatedAt       time.Time    `json:"created_at"`
	Card            *models.Card `json:"card,omitempty"`
	CardError       string       `json:"card_error,omitempty"`
}

// NewNoteResponse builds a NoteResponse from a note
func NewNoteResponse(note *models.TestNote) NoteResponse {
	ids := []string(note.BasecampCardIDs)
	if ids == nil {
		ids = []string{}
	}
	return NoteResponse{
		ID:              note.ID,
		TestID:          note.TestID,
		TestTitle:       note.TestTitle,
		Notes:           note.Notes,
		BasecampCardIDs: ids,
		CreatedAt:       note.CreatedAt,
	}
}

// AuthorizationResponse carries the Launchpad URL to send the browser to
type AuthorizationResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

// TokenInfo describes a stored token without its secrets
type TokenInfo struct {
	ID              uuid.UUID  `json:"id"`
	IsActive        bool       `json:"is_active"`
	TokenType       string     `json:"token_type"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewTokenInfo redacts a token row
func NewTokenInfo(t *models.OAuthToken) TokenInfo {
	return TokenInfo{
		ID:              t.ID,
		IsActive:        t.IsActive,
		TokenType:       t.TokenType,
		HasRefreshToken: t.HasRefreshToken(),
		ExpiresAt:       t.ExpiresAt,
		CreatedAt:       t.CreatedAt,
	}
}
