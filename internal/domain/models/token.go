package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OAuthToken is one Basecamp OAuth credential set issued to a dashboard user.
// Rotation is logical: older rows are deactivated, never deleted, so at most
// one row per UserID has IsActive set.
type OAuthToken struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       string     `json:"user_id" gorm:"not null;size:255;index:idx_basecamp_tokens_user_active"`
	AccessToken  string     `json:"-" gorm:"not null;type:text"`
	RefreshToken *string    `json:"-" gorm:"type:text"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" gorm:"index"`
	TokenType    string     `json:"token_type" gorm:"not null;size:32;default:Bearer"`
	Scope        *string    `json:"scope,omitempty" gorm:"size:255"`
	IsActive     bool       `json:"is_active" gorm:"not null;default:true;index:idx_basecamp_tokens_user_active"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for the OAuthToken model
func (OAuthToken) TableName() string {
	return "basecamp_tokens"
}

// BeforeCreate assigns the primary key so inserts work on any dialect
func (t *OAuthToken) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.TokenType == "" {
		t.TokenType = "Bearer"
	}
	return nil
}

// HasRefreshToken reports whether the token can be renewed without the user
func (t *OAuthToken) HasRefreshToken() bool {
	return t.RefreshToken != nil && *t.RefreshToken != ""
}

// TokenData is what the OAuth provider hands back for a successful exchange or refresh
type TokenData struct {
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
	TokenType    string
	Scope        *string
}
