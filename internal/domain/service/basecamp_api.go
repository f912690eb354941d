package service

import (
	"context"

	"github.com/bravo68web/qadeck/internal/domain/models"
)

// BasecampAPI is the card surface of the Basecamp REST client used by the
// workflow operations. Every method fails with an *errors.AppError.
type BasecampAPI interface {
	GetCard(ctx context.Context, projectID, cardID int64) (*models.Card, error)
	ListCards(ctx context.Context, projectID, columnID int64) ([]models.Card, error)
	CreateCard(ctx context.Context, projectID, columnID int64, input models.CreateCardInput) (*models.Card, error)
	MoveCard(ctx context.Context, projectID, cardID, columnID int64) error
	DeleteCard(ctx context.Context, projectID, cardID int64) error
}

// BasecampClientFactory hands out a client acting on behalf of one user
type BasecampClientFactory interface {
	ForUser(userID string) BasecampAPI
}

// TokenSource yields a currently valid Basecamp access token for a user
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, userID string) (string, error)
}
