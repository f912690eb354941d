package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// TestNote is a QA note a user wrote against a test case. BasecampCardIDs
// tracks the cards created for it; the row is authoritative for which cards
// the dashboard still considers attached.
type TestNote struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	UserID          string         `json:"user_id" gorm:"not null;size:255;index"`
	TestID          string         `json:"test_id" gorm:"not null;size:255;index"`
	TestTitle       string         `json:"test_title" gorm:"size:512"`
	Notes           string         `json:"notes" gorm:"type:text"`
	BasecampCardIDs pq.StringArray `json:"basecamp_card_ids" gorm:"type:text[]"`
	CreatedAt       time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for the TestNote model
func (TestNote) TableName() string {
	return "test_notes"
}

// BeforeCreate assigns the primary key so inserts work on any dialect
func (n *TestNote) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// HasCard reports whether cardID is attached to the note
func (n *TestNote) HasCard(cardID string) bool {
	return slices.Contains(n.BasecampCardIDs, cardID)
}

// CardIDs converts card references to the array column type; nil becomes an empty array
func CardIDs(ids []string) pq.StringArray {
	if ids == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(ids)
}
