// Package config binds the process environment to a typed configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"timesherpa/internal/models"
	"timesherpa/internal/settings"
)

// Calendar backends.
const (
	BackendGoogle = "google"
	BackendCalDAV = "caldav"
)

// AI providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds every setting of the CLI and the HTTP server.
type Config struct {
	LogLevel        string `env:"LOG_LEVEL" env-default:"info"`
	PrimaryTimezone string `env:"PRIMARY_TIMEZONE" env-default:"UTC"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	CalendarBackend    string `env:"CALENDAR_BACKEND" env-default:"google"`
	CalDAVEndpoint     string `env:"CALDAV_ENDPOINT" env-default:"https://caldav.icloud.com/"`
	CalDAVUsername     string `env:"CALDAV_USERNAME"`
	CalDAVPassword     string `env:"CALDAV_PASSWORD"`
	CalDAVCalendarName string `env:"CALDAV_CALENDAR_NAME"`

	AIProvider          string `env:"AI_PROVIDER" env-default:"gemini"`
	GeminiAPIKey        string `env:"GEMINI_API_KEY"`
	GeminiModel         string `env:"GEMINI_MODEL" env-default:"gemini-1.5-flash"`
	OpenAIAPIKey        string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	OpenAIModel         string `env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	AIRequestsPerMinute int    `env:"AI_REQUESTS_PER_MINUTE" env-default:"15"`

	DatabaseURL     string `env:"DATABASE_URL"`
	DefaultWorkweek string `env:"DEFAULT_WORKWEEK" env-default:"mon,tue,wed,thu,fri"`

	HTTPAddr         string `env:"HTTP_ADDR" env-default:":8080"`
	TrendConcurrency int    `env:"TREND_CONCURRENCY" env-default:"1"`

	location *time.Location
	workweek models.WorkweekSettings
}

// Location is the parsed PRIMARY_TIMEZONE.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Workweek is the parsed DEFAULT_WORKWEEK.
func (c *Config) Workweek() models.WorkweekSettings {
	return c.workweek
}

// Load reads the environment (a .env file should already be loaded by the
// caller) and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks enumerations and fills the derived fields.
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.PrimaryTimezone)
	if err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.PrimaryTimezone, err)
	}
	c.location = loc

	ww, err := settings.ParseWorkweek(c.DefaultWorkweek)
	if err != nil {
		return fmt.Errorf("DEFAULT_WORKWEEK: %w", err)
	}
	c.workweek = ww

	c.CalendarBackend = strings.ToLower(c.CalendarBackend)
	switch c.CalendarBackend {
	case BackendGoogle:
	case BackendCalDAV:
		if c.CalDAVUsername == "" || c.CalDAVPassword == "" || c.CalDAVCalendarName == "" {
			return fmt.Errorf("caldav backend needs CALDAV_USERNAME, CALDAV_PASSWORD and CALDAV_CALENDAR_NAME")
		}
	default:
		return fmt.Errorf("unknown CALENDAR_BACKEND %q", c.CalendarBackend)
	}

	c.AIProvider = strings.ToLower(c.AIProvider)
	if c.AIProvider != ProviderGemini && c.AIProvider != ProviderOpenAI {
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AIProvider)
	}
	if c.TrendConcurrency < 1 {
		return fmt.Errorf("TREND_CONCURRENCY must be >= 1 (got %d)", c.TrendConcurrency)
	}
	return nil
}
