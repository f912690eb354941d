package basecamp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bravo68web/qadeck/internal/domain/models"
)

func (c *Client) project(id int64) int64 {
	if id == 0 {
		return c.opts.ProjectID
	}
	return id
}

func (c *Client) cardTable(id int64) int64 {
	if id == 0 {
		return c.opts.CardTableID
	}
	return id
}

func (c *Client) column(id int64) int64 {
	if id == 0 {
		return c.opts.ColumnID
	}
	return id
}

// ListProjects returns every project visible to the user
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	return getAll[models.Project](ctx, c, "/projects.json")
}

// GetProject returns one project
func (c *Client) GetProject(ctx context.Context, projectID int64) (*models.Project, error) {
	var p models.Project
	if err := c.Request(ctx, http.MethodGet, fmt.Sprintf("/buckets/%d.json", c.project(projectID)), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListCardTables returns the card tables of a project
func (c *Client) ListCardTables(ctx context.Context, projectID int64) ([]models.CardTable, error) {
	return getAll[models.CardTable](ctx, c, fmt.Sprintf("/buckets/%d/card_tables.json", c.project(projectID)))
}

// GetCardTable returns one card table including its columns
func (c *Client) GetCardTable(ctx context.Context, projectID, cardTableID int64) (*models.CardTable, error) {
	var ct models.CardTable
	path := fmt.Sprintf("/buckets/%d/card_tables/%d.json", c.project(projectID), c.cardTable(cardTableID))
	if err := c.Request(ctx, http.MethodGet, path, nil, &ct); err != nil {
		return nil, err
	}
	return &ct, nil
}

// ListColumns returns the workflow columns of a card table
func (c *Client) ListColumns(ctx context.Context, projectID, cardTableID int64) ([]models.Column, error) {
	path := fmt.Sprintf("/buckets/%d/card_tables/%d/columns.json", c.project(projectID), c.cardTable(cardTableID))
	return getAll[models.Column](ctx, c, path)
}

// ListCards returns the cards in a column
func (c *Client) ListCards(ctx context.Context, projectID, columnID int64) ([]models.Card, error) {
	path := fmt.Sprintf("/buckets/%d/card_tables/lists/%d/cards.json", c.project(projectID), c.column(columnID))
	return getAll[models.Card](ctx, c, path)
}

// GetCard returns one card
func (c *Client) GetCard(ctx context.Context, projectID, cardID int64) (*models.Card, error) {
	var card models.Card
	if err := c.Request(ctx, http.MethodGet, cardPath(c.project(projectID), cardID), nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// CreateCard creates a card in a column
func (c *Client) CreateCard(ctx context.Context, projectID, columnID int64, input models.CreateCardInput) (*models.Card, error) {
	var card models.Card
	path := fmt.Sprintf("/buckets/%d/card_tables/lists/%d/cards.json", c.project(projectID), c.column(columnID))
	if err := c.Request(ctx, http.MethodPost, path, input, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// UpdateCard changes the given card fields
func (c *Client) UpdateCard(ctx context.Context, projectID, cardID int64, input models.UpdateCardInput) (*models.Card, error) {
	var card models.Card
	if err := c.Request(ctx, http.MethodPut, cardPath(c.project(projectID), cardID), input, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// MoveCard moves a card to another column through the moves sub-resource
func (c *Client) MoveCard(ctx context.Context, projectID, cardID, columnID int64) error {
	path := fmt.Sprintf("/buckets/%d/card_tables/cards/%d/moves.json", c.project(projectID), cardID)
	return c.Request(ctx, http.MethodPost, path, map[string]int64{"column_id": columnID}, nil)
}

// DeleteCard removes a card
func (c *Client) DeleteCard(ctx context.Context, projectID, cardID int64) error {
	return c.Request(ctx, http.MethodDelete, cardPath(c.project(projectID), cardID), nil, nil)
}

func cardPath(projectID, cardID int64) string {
	return fmt.Sprintf("/buckets/%d/card_tables/cards/%d.json", projectID, cardID)
}
