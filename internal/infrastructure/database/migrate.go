package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/bravo68web/qadeck/internal/domain/models"
)

// The partial unique index backs the one-active-token-per-user rule at the storage level.
const activeTokenIndex = `CREATE UNIQUE INDEX IF NOT EXISTS uniq_basecamp_tokens_active_user
	ON basecamp_tokens (user_id) WHERE is_active`

const sqliteTestNotes = `CREATE TABLE IF NOT EXISTS test_notes (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	test_id TEXT NOT NULL,
	test_title TEXT,
	notes TEXT,
	basecamp_card_ids TEXT,
	created_at DATETIME,
	updated_at DATETIME
)`

// Migrate creates or updates the schema owned by this service
func (d *Database) Migrate(ctx context.Context) error {
	return Migrate(ctx, d.db)
}

// Migrate creates or updates the schema on any supported dialect
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)

	if err := db.AutoMigrate(&models.OAuthToken{}); err != nil {
		return fmt.Errorf("failed to migrate basecamp_tokens: %w", err)
	}
	if err := db.Exec(activeTokenIndex).Error; err != nil {
		return fmt.Errorf("failed to create active token index: %w", err)
	}

	// text[] only exists on postgres; SQLite keeps the array literal as TEXT
	if db.Dialector.Name() == "sqlite" {
		if err := db.Exec(sqliteTestNotes).Error; err != nil {
			return fmt.Errorf("failed to migrate test_notes: %w", err)
		}
		return nil
	}

	if err := db.AutoMigrate(&models.TestNote{}); err != nil {
		return fmt.Errorf("failed to migrate test_notes: %w", err)
	}
	return nil
}
