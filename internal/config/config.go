package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Completion gateway
	OpenAIKey         string        `envconfig:"OPEN_AI_KEY"`
	OpenAIOrg         string        `envconfig:"OPEN_AI_ORG"`
	OpenAIBaseURL     string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel       string        `envconfig:"OPENAI_MODEL" default:"gpt-3.5-turbo"`
	OpenAITemperature float64       `envconfig:"OPENAI_TEMPERATURE" default:"0.1"`
	LLMTimeout        time.Duration `envconfig:"LLM_TIMEOUT" default:"120s"`

	// Workspace files
	TemplatePath  string `envconfig:"TEMPLATE_PATH" default:"web_template/src/code_template.rs"`
	OutputPath    string `envconfig:"OUTPUT_PATH" default:"web_template/src/main.rs"`
	APISchemaPath string `envconfig:"API_SCHEMA_PATH" default:"schemas/api_schema.json"`

	// Run store (optional, disabled when empty)
	DBPath string `envconfig:"DB_PATH"`

	// Metrics listener (optional, disabled when empty)
	MetricsAddr string `envconfig:"METRICS_ADDR"`

	// Unit testing (optional, reference short-circuit when empty)
	VerifyCommand string        `envconfig:"VERIFY_COMMAND"`
	VerifyTimeout time.Duration `envconfig:"VERIFY_TIMEOUT" default:"2m"`
	MaxBugFixes   int           `envconfig:"MAX_BUG_FIXES" default:"2"`

	URLCheckTimeout time.Duration `envconfig:"URL_CHECK_TIMEOUT" default:"10s"`
}

// StoreEnabled returns true if a run database is configured.
func (c *Config) StoreEnabled() bool {
	return strings.TrimSpace(c.DBPath) != ""
}

// VerifyEnabled returns true if generated code should be verified.
func (c *Config) VerifyEnabled() bool {
	return strings.TrimSpace(c.VerifyCommand) != ""
}

// Validate checks the settings a project run cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.OpenAIKey == "" {
		errs = append(errs, errors.New("OPEN_AI_KEY is required"))
	}
	if c.TemplatePath == "" || c.OutputPath == "" || c.APISchemaPath == "" {
		errs = append(errs, errors.New("TEMPLATE_PATH, OUTPUT_PATH and API_SCHEMA_PATH must not be empty"))
	}
	if c.MaxBugFixes < 0 {
		errs = append(errs, fmt.Errorf("MAX_BUG_FIXES must be >= 0, got %d", c.MaxBugFixes))
	}
	if c.OpenAITemperature < 0 || c.OpenAITemperature > 2 {
		errs = append(errs, fmt.Errorf("OPENAI_TEMPERATURE must be in [0, 2], got %g", c.OpenAITemperature))
	}
	return errors.Join(errs...)
}

// Load reads a .env file (if present) and then configuration from
// environment variables. Variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}
	return LoadWithPrefix("")
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	return &cfg, nil
}
