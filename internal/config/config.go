// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Nested provider settings are grouped in their own structs.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"time"

	"github.com/okian/nurture/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabasePath is the sqlite file holding leads and scheduled sends.
	DatabasePath string `koanf:"database_path"`

	// UpstreamTimeoutMS bounds every datastore and provider call.
	UpstreamTimeoutMS int `koanf:"upstream_timeout_ms"`

	// CategoryWeights maps assessment categories to scoring multipliers.
	CategoryWeights map[string]float64 `koanf:"category_weights"`

	// DefaultCategoryWeight is used for categories missing from CategoryWeights.
	DefaultCategoryWeight float64 `koanf:"default_category_weight"`

	// GapCount is how many weakest categories an assessment reports.
	GapCount int `koanf:"gap_count"`

	// DispatchBatchSize caps due sends per sweep.
	DispatchBatchSize int `koanf:"dispatch_batch_size"`

	// DispatchWorkers sets how many leads one sweep delivers in parallel.
	DispatchWorkers int `koanf:"dispatch_workers"`

	// DispatchOnCapture runs a sweep right after capture endpoints schedule sends.
	DispatchOnCapture bool `koanf:"dispatch_on_capture"`

	// DedupeSize bounds the in-memory payment event deduper.
	DedupeSize int `koanf:"dedupe_size"`

	// CronSecret authorizes /nurture/send-scheduled.
	CronSecret string `koanf:"cron_secret"`

	// WebhookSecret signs the outbound lead webhook and is accepted as the
	// shared-secret header on the cron endpoint.
	WebhookSecret string `koanf:"webhook_secret"`

	// AdminEmails is the static allow-list for admin reads.
	AdminEmails []string `koanf:"admin_emails"`

	// NotifyEmail receives an email for every new lead when set.
	NotifyEmail string `koanf:"notify_email"`

	// LeadWebhookURL receives signed lead events when set.
	LeadWebhookURL string `koanf:"lead_webhook_url"`

	Stripe Stripe `koanf:"stripe"`
	LLM    LLM    `koanf:"llm"`
	Email  Email  `koanf:"email"`
	SMS    SMS    `koanf:"sms"`
}

// Stripe configures payment webhook verification.
type Stripe struct {
	WebhookSecret string `koanf:"webhook_secret"`
}

// LLM configures the content-generation provider.
type LLM struct {
	APIKey    string `koanf:"api_key"`
	BaseURL   string `koanf:"base_url"`
	Model     string `koanf:"model"`
	MaxTokens int    `koanf:"max_tokens"`
}

// Email configures the transactional email provider.
type Email struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	From    string `koanf:"from"`
}

// SMS configures the SMS provider.
type SMS struct {
	AccountSID string `koanf:"account_sid"`
	AuthToken  string `koanf:"auth_token"`
	From       string `koanf:"from"`
	BaseURL    string `koanf:"base_url"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		DatabasePath:          "nurture.db",
		UpstreamTimeoutMS:     15_000,
		CategoryWeights:       scoring.DefaultWeights(),
		DefaultCategoryWeight: 1.0,
		GapCount:              3,
		DispatchBatchSize:     50,
		DispatchWorkers:       4,
		DedupeSize:            10_000,
		LLM: LLM{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			MaxTokens: 800,
		},
		Email: Email{BaseURL: "https://api.resend.com"},
		SMS:   SMS{BaseURL: "https://api.twilio.com"},
	}
}

// UpstreamTimeout returns UpstreamTimeoutMS as a duration.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutMS) * time.Millisecond
}

// EmailEnabled reports whether the email provider is configured.
func (c *Config) EmailEnabled() bool { return c.Email.APIKey != "" && c.Email.From != "" }

// SMSEnabled reports whether the SMS provider is configured.
func (c *Config) SMSEnabled() bool {
	return c.SMS.AccountSID != "" && c.SMS.AuthToken != "" && c.SMS.From != ""
}
