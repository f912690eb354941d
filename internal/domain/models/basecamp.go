package models

import "time"

// Remote Basecamp resources. Only the fields this service reads are decoded;
// anything absent keeps its zero value.

type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	AppURL      string    `json:"app_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CardTable struct {
	ID     int64    `json:"id"`
	Title  string   `json:"title"`
	URL    string   `json:"url"`
	AppURL string   `json:"app_url"`
	Lists  []Column `json:"lists"`
}

// Column is one workflow stage of a card table
type Column struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Color      string `json:"color"`
	CardsCount int    `json:"cards_count"`
	URL        string `json:"url"`
}

type ColumnRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Card is a Basecamp card; Parent is the column it currently sits in
type Card struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	DueOn     string    `json:"due_on"`
	Parent    ColumnRef `json:"parent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	URL       string    `json:"url"`
	AppURL    string    `json:"app_url"`
}

// CreateCardInput is the body of a card creation. DueOn uses YYYY-MM-DD.
type CreateCardInput struct {
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	DueOn   string `json:"due_on,omitempty"`
	Notify  bool   `json:"notify,omitempty"`
}

// UpdateCardInput carries the fields to change; nil fields are left untouched
type UpdateCardInput struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	DueOn   *string `json:"due_on,omitempty"`
}
