// Package config loads gogenie configuration from defaults, an optional YAML
// file, GOGENIE_* environment variables and runtime overrides, in increasing
// order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/3leaps/gogenie/pkg/mail"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GOGENIE"

// Config is the effective configuration of a gogenie process.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Jobs       JobsConfig       `mapstructure:"jobs" yaml:"jobs"`
	Completion CompletionConfig `mapstructure:"completion" yaml:"completion"`
	Archive    ArchiveConfig    `mapstructure:"archive" yaml:"archive"`
	Mail       MailConfig       `mapstructure:"mail" yaml:"mail"`
	S3         S3Config         `mapstructure:"s3" yaml:"s3"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Profile string `mapstructure:"profile" yaml:"profile"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// JobsConfig locates job working directories and the job registry.
type JobsConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	RegistryDir string `mapstructure:"registry_dir" yaml:"registry_dir"`
}

// CompletionConfig sizes the completion worker pool and its queue.
type CompletionConfig struct {
	Workers      int           `mapstructure:"workers" yaml:"workers"`
	Buffer       int           `mapstructure:"buffer" yaml:"buffer"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout" yaml:"drain_timeout"`
}

// ArchiveConfig lists extra doublestar patterns left out of job archives.
type ArchiveConfig struct {
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
}

// MailConfig configures completion notifications. When disabled, messages
// are only logged.
type MailConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Host          string `mapstructure:"host" yaml:"host"`
	Port          int    `mapstructure:"port" yaml:"port"`
	Username      string `mapstructure:"username" yaml:"username"`
	Password      string `mapstructure:"password" yaml:"password"`
	From          string `mapstructure:"from" yaml:"from"`
	RatePerMinute int    `mapstructure:"rate_per_minute" yaml:"rate_per_minute"`
}

// SMTP converts the mail settings for the SMTP mailer.
func (m MailConfig) SMTP() mail.Config {
	return mail.Config{
		Host:          m.Host,
		Port:          m.Port,
		Username:      m.Username,
		Password:      m.Password,
		From:          m.From,
		RatePerMinute: m.RatePerMinute,
	}
}

// S3Config configures s3:// archive destinations.
type S3Config struct {
	Region         string `mapstructure:"region" yaml:"region"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	Profile        string `mapstructure:"profile" yaml:"profile"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}

var (
	validLevels   = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validProfiles = map[string]bool{"structured": true, "console": true}
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	if !validProfiles[strings.ToLower(c.Logging.Profile)] {
		return fmt.Errorf("logging.profile must be structured or console; got %q", c.Logging.Profile)
	}
	if strings.TrimSpace(c.Jobs.Dir) == "" {
		return fmt.Errorf("jobs.dir is required")
	}
	if strings.TrimSpace(c.Jobs.RegistryDir) == "" {
		return fmt.Errorf("jobs.registry_dir is required")
	}
	if c.Completion.Workers < 1 {
		return fmt.Errorf("completion.workers must be >= 1, got %d", c.Completion.Workers)
	}
	if c.Completion.Buffer < 1 {
		return fmt.Errorf("completion.buffer must be >= 1, got %d", c.Completion.Buffer)
	}
	if c.Completion.DrainTimeout < 0 {
		return fmt.Errorf("completion.drain_timeout must be >= 0")
	}
	if c.Mail.Enabled {
		if err := c.Mail.SMTP().Validate(); err != nil {
			return fmt.Errorf("mail: %w", err)
		}
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Mail.Password != "" {
		c.Mail.Password = "********"
	}
	c.Archive.Exclude = append([]string(nil), c.Archive.Exclude...)
	return c
}
