package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dayroll/internal/aggregate"
	"github.com/starford/dayroll/internal/models"
	"github.com/starford/dayroll/internal/notion"
	"github.com/starford/dayroll/internal/scheduler"
	"github.com/starford/dayroll/internal/summarize"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig  `yaml:"app"`
	Notion     NotionConfig       `yaml:"notion"`
	Schedule   ScheduleConfig     `yaml:"schedule"`
	Summarizer SummarizerConfig   `yaml:"summarizer"`
	Tasks      models.StatusRules `yaml:"tasks"`
	Review     ReviewConfig       `yaml:"review"`
	Ledger     LedgerConfig       `yaml:"ledger"`
	Auth       AuthConfig         `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Notion.Validate(); err != nil {
		return fmt.Errorf("notion: %w", err)
	}
	if err := c.Schedule.Validate(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if err := validation.ValidateStruct(&c.Tasks,
		validation.Field(&c.Tasks.Done, validation.Required),
		validation.Field(&c.Tasks.NotStarted, validation.Required),
	); err != nil {
		return fmt.Errorf("tasks: %w", err)
	}
	if err := c.Review.Validate(); err != nil {
		return fmt.Errorf("review: %w", err)
	}
	if err := c.Ledger.Validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if !c.HTTP.Enabled {
		return nil
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds the ops HTTP server configuration.
type HTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NotionConfig holds document-database credentials and database ids.
// The daily and cycle review ids may be equal or empty.
type NotionConfig struct {
	Token                 string        `yaml:"token"`
	BaseURL               string        `yaml:"base_url"`
	Version               string        `yaml:"version"`
	Timeout               time.Duration `yaml:"timeout"`
	TaskDatabaseID        string        `yaml:"task_database_id"`
	DailyReviewDatabaseID string        `yaml:"daily_review_database_id"`
	CycleReviewDatabaseID string        `yaml:"cycle_review_database_id"`
}

// Validate validates the notion configuration.
func (c *NotionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.TaskDatabaseID, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// Options returns client options for c.
func (c *NotionConfig) Options() notion.Options {
	return notion.Options{Token: c.Token, BaseURL: c.BaseURL, Version: c.Version, Timeout: c.Timeout}
}

// ScheduleConfig holds the daily trigger configuration.
type ScheduleConfig struct {
	Enabled        bool          `yaml:"enabled"`
	RunOnStart     bool          `yaml:"run_on_start"`
	Timezone       string        `yaml:"timezone"`
	RolloverTime   string        `yaml:"rollover_time"`
	ReviewTime     string        `yaml:"review_time"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
}

var (
	validTimeOfDay = validation.By(func(v interface{}) error {
		_, err := scheduler.ParseTimeOfDay(v.(string))
		return err
	})
	validZone = validation.By(func(v interface{}) error {
		_, err := time.LoadLocation(v.(string))
		return err
	})
)

// Validate validates the schedule configuration.
func (c *ScheduleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timezone, validation.Required, validZone),
		validation.Field(&c.RolloverTime, validation.Required, validTimeOfDay),
		validation.Field(&c.ReviewTime, validation.Required, validTimeOfDay),
		validation.Field(&c.PollInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.HandlerTimeout, validation.Required, validation.Min(time.Second)),
	)
}

// Times returns the parsed trigger times keyed by job name.
func (c *ScheduleConfig) Times() (rollover, review scheduler.TimeOfDay, err error) {
	if rollover, err = scheduler.ParseTimeOfDay(c.RolloverTime); err != nil {
		return
	}
	review, err = scheduler.ParseTimeOfDay(c.ReviewTime)
	return
}

// SummarizerConfig holds the optional text-generation service settings.
// An empty APIKey disables summaries.
type SummarizerConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Options returns client options for c.
func (c *SummarizerConfig) Options() summarize.Options {
	return summarize.Options{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
	}
}

// ReviewConfig holds review-database layout and aggregation settings.
type ReviewConfig struct {
	Layout          models.ReviewLayout `yaml:"layout"`
	EnsureSchema    bool                `yaml:"ensure_schema"`
	TopKeywords     int                 `yaml:"top_keywords"`
	FilterStopwords bool                `yaml:"filter_stopwords"`
}

// Validate validates the review configuration.
func (c *ReviewConfig) Validate() error {
	l := &c.Layout
	if err := validation.ValidateStruct(l,
		validation.Field(&l.Title, validation.Required),
		validation.Field(&l.Date, validation.Required),
		validation.Field(&l.Completed, validation.Required),
		validation.Field(&l.Incomplete, validation.Required),
		validation.Field(&l.Difficulty, validation.Required),
		validation.Field(&l.Solution, validation.Required),
		validation.Field(&l.Summary, validation.Required),
		validation.Field(&l.Type, validation.Required),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.TopKeywords, validation.Min(1)),
	)
}

// Keywords returns the aggregation keyword options.
func (c *ReviewConfig) Keywords() aggregate.Options {
	return aggregate.Options{TopN: c.TopKeywords, FilterStopwords: c.FilterStopwords}
}

// LedgerConfig holds the SQLite run ledger location.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the ledger configuration.
func (c *LedgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the ops HTTP surface.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Enabled: false,
				Port:    8080,
			},
		},
		Notion: NotionConfig{
			BaseURL: notion.DefaultBaseURL,
			Version: notion.DefaultVersion,
			Timeout: 30 * time.Second,
		},
		Schedule: ScheduleConfig{
			Enabled:        true,
			RunOnStart:     true,
			Timezone:       "Asia/Shanghai",
			RolloverTime:   "00:00",
			ReviewTime:     "23:55",
			PollInterval:   10 * time.Second,
			HandlerTimeout: 10 * time.Minute,
		},
		Summarizer: SummarizerConfig{
			BaseURL:     summarize.DefaultBaseURL,
			Model:       summarize.DefaultModel,
			MaxTokens:   summarize.DefaultMaxTokens,
			Temperature: summarize.DefaultTemperature,
			Timeout:     60 * time.Second,
		},
		Tasks: models.DefaultStatusRules(),
		Review: ReviewConfig{
			Layout:      models.DefaultReviewLayout(),
			TopKeywords: aggregate.DefaultTopN,
		},
		Ledger: LedgerConfig{
			Path: "./dayroll.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
