package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

var genieKeyPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

type Config struct {
	Environment     string `default:"development" validate:"oneof=development test staging production"`
	SignatureBypass bool   `split_words:"true" default:"false"`

	// HTTP configuration
	HTTPAddr string `split_words:"true" default:"0.0.0.0:8080"`

	// Slack configuration
	SlackSigningSecret string `split_words:"true" required:"true" validate:"required"`
	SlackBotToken      string `split_words:"true" required:"true" validate:"required"`
	SlackAPIURL        string `envconfig:"SLACK_API_URL" default:"https://slack.com/api" validate:"url"`

	// OpsGenie configuration
	OpsGenieAPIKey string `envconfig:"OPSGENIE_API_KEY" required:"true" validate:"genie_key"`
	OpsGenieTeamID string `envconfig:"OPSGENIE_TEAM_ID" required:"true" validate:"required"`
	OpsGenieAPIURL string `envconfig:"OPSGENIE_API_URL" default:"https://api.opsgenie.com/v2" validate:"url"`
	OpsGenieDomain string `envconfig:"OPSGENIE_DOMAIN" default:"app" validate:"required"`

	AlertDefaultsFile string `split_words:"true"`

	// Telemetry configuration
	SentryDSN       string  `envconfig:"SENTRY_DSN"`
	TraceExporter   string  `split_words:"true" default:"none" validate:"oneof=none otlp"`
	TraceSampleRate float64 `split_words:"true" default:"0.1" validate:"gte=0,lte=1"`
}

func (c Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func (c Config) IsTest() bool {
	return c.Environment == EnvTest
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env file: %w", err)
	} else if err != nil {
		slog.Debug(".env file not found, using environment variables")
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("processing environment: %w", err)
	}

	c.Normalize()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

func Usage() error {
	return envconfig.Usage("", &Config{})
}

// Normalize makes SlackAPIURL end in /api.
func (c *Config) Normalize() {
	if c.SlackAPIURL == "" {
		c.SlackAPIURL = "https://slack.com/api"
	}
	c.SlackAPIURL = strings.TrimRight(c.SlackAPIURL, "/")
	if !strings.HasSuffix(c.SlackAPIURL, "/api") {
		c.SlackAPIURL += "/api"
	}

	c.OpsGenieAPIURL = strings.TrimRight(c.OpsGenieAPIURL, "/")
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
}

func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("genie_key", func(fl validator.FieldLevel) bool {
		return genieKeyPattern.MatchString(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("registering validation: %w", err)
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Tag() == "genie_key" {
					return errors.New("OPSGENIE_API_KEY must be a valid 36-character UUID")
				}
			}
		}
		return fmt.Errorf("validation error: %w", err)
	}

	if c.SignatureBypass && !c.IsDevelopment() {
		return fmt.Errorf("SIGNATURE_BYPASS is only allowed in %s, got ENVIRONMENT=%s", EnvDevelopment, c.Environment)
	}

	return nil
}
