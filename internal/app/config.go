// Package app assembles the form bot from its configuration.
package app

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/linzabot/core/config"
	coredatabase "github.com/m3rciful/linzabot/core/database"
	"github.com/m3rciful/linzabot/internal/form"
)

const (
	defaultIdleTTL       = 30 * time.Minute
	defaultSweepInterval = 5 * time.Minute
)

// FormConfig customises the questionnaire.
type FormConfig struct {
	SupportURL string   `yaml:"support_url" envconfig:"FORM_SUPPORT_URL" validate:"omitempty,url"`
	Questions  []string `yaml:"questions"`
}

// SessionConfig controls eviction of idle conversations.
type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl" envconfig:"SESSION_IDLE_TTL" validate:"gte=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SESSION_SWEEP_INTERVAL" validate:"gte=0"`
}

// MetricsConfig enables the Prometheus listener when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN" validate:"omitempty,hostname_port"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Form     FormConfig          `yaml:"form"`
	Session  SessionConfig       `yaml:"session"`
	Metrics  MetricsConfig       `yaml:"metrics"`
}

// CoreConfig returns the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads path, overlays the environment and fills defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if err := coreconfig.Validate(c); err != nil {
		return err
	}
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	c.Form.SupportURL = strings.TrimSpace(c.Form.SupportURL)
	if c.Form.SupportURL == "" {
		c.Form.SupportURL = form.DefaultSupportURL
	}
	if n := len(c.Form.Questions); n != 0 && n != form.QuestionCount {
		return fmt.Errorf("form.questions: %d configured, want %d", n, form.QuestionCount)
	}

	if c.Session.IdleTTL == 0 {
		c.Session.IdleTTL = defaultIdleTTL
	}
	if c.Session.SweepInterval == 0 {
		c.Session.SweepInterval = defaultSweepInterval
	}
	return nil
}
