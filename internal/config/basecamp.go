package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Workflow actions that map to a destination column
const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

// BasecampConfig holds the Basecamp account, OAuth application and card
// workflow settings.
type BasecampConfig struct {
	AccountID    string `mapstructure:"account_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`

	// UserAgent is mandatory for the Basecamp API, e.g. "QA Dashboard (qa@example.com)"
	UserAgent    string `mapstructure:"user_agent"`
	APIBaseURL   string `mapstructure:"api_base_url"`
	LaunchpadURL string `mapstructure:"launchpad_url"`

	// Default card target
	ProjectID   int64 `mapstructure:"project_id"`
	CardTableID int64 `mapstructure:"card_table_id"`
	ColumnID    int64 `mapstructure:"column_id"`

	// Columns maps workflow actions (accept, reject) to column IDs
	Columns map[string]int64 `mapstructure:"columns"`

	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`

	// ConfigPageURL is where the OAuth callback redirects the browser
	ConfigPageURL   string `mapstructure:"config_page_url"`
	StateCookieName string `mapstructure:"state_cookie_name"`
}

func setBasecampDefaults(v *viper.Viper) {
	v.SetDefault("basecamp.api_base_url", "https://3.basecampapi.com")
	v.SetDefault("basecamp.launchpad_url", "https://launchpad.37signals.com")
	v.SetDefault("basecamp.timeout", "15s")
	v.SetDefault("basecamp.retry_count", 2)
	v.SetDefault("basecamp.config_page_url", "/config")
	v.SetDefault("basecamp.state_cookie_name", "basecamp_oauth_state")
}

// Validate fails fast on missing Basecamp essentials and workflow column mappings
func (b *BasecampConfig) Validate() error {
	required := []struct{ key, val string }{
		{"basecamp.account_id", b.AccountID},
		{"basecamp.client_id", b.ClientID},
		{"basecamp.client_secret", b.ClientSecret},
		{"basecamp.redirect_uri", b.RedirectURI},
		{"basecamp.user_agent", b.UserAgent},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}

	if _, err := url.ParseRequestURI(b.APIBaseURL); err != nil {
		return fmt.Errorf("invalid basecamp.api_base_url: %w", err)
	}
	if _, err := url.ParseRequestURI(b.LaunchpadURL); err != nil {
		return fmt.Errorf("invalid basecamp.launchpad_url: %w", err)
	}

	if b.ProjectID <= 0 {
		return fmt.Errorf("basecamp.project_id is required")
	}
	if b.ColumnID <= 0 {
		return fmt.Errorf("basecamp.column_id is required")
	}

	for _, action := range []string{ActionAccept, ActionReject} {
		if _, err := b.ColumnFor(action); err != nil {
			return err
		}
	}

	if b.Timeout <= 0 {
		return fmt.Errorf("basecamp.timeout must be positive")
	}
	return nil
}

// ColumnFor returns the destination column configured for a workflow action
func (b *BasecampConfig) ColumnFor(action string) (int64, error) {
	id, ok := b.Columns[action]
	if !ok || id <= 0 {
		return 0, fmt.Errorf("basecamp.columns.%s is not configured", action)
	}
	return id, nil
}
