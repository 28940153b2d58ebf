// Package config loads the formforge application configuration from YAML.
package config

import (
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/formforge/formforge/internal/errs"
)

// Config is the root configuration for a formforge deployment.
type Config struct {
	HTTP      HTTP      `yaml:"http"`
	Database  Database  `yaml:"database"`
	Filestore Filestore `yaml:"filestore"`
	Email     Email     `yaml:"email"`
	Export    Export    `yaml:"export"`
	Logger    Logger    `yaml:"logger"`
}

// HTTP configures the listener.
type HTTP struct {
	Listen string `yaml:"listen"`
}

// Database selects and configures the persistence backend.
type Database struct {
	// Driver is one of "postgres", "sqlite", "mysql".
	Driver string `yaml:"driver"`
	// DSN is the driver-specific connection string.
	DSN string `yaml:"dsn"`

	MaxConns int32 `yaml:"max_conns"`
	MinConns int32 `yaml:"min_conns"`
}

// Filestore configures where uploaded files are kept.
type Filestore struct {
	// Provider is one of "local", "minio".
	Provider string `yaml:"provider"`

	// Root is the base directory for the local provider.
	Root string `yaml:"root"`

	// MinIO / S3 style settings.
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
}

// Email configures notification composition.
type Email struct {
	// From is the fallback sender address when a form has none configured.
	From string `yaml:"from"`
	// SMTPAddr is the host:port of the outbound relay. Empty means emails
	// are logged instead of delivered.
	SMTPAddr string `yaml:"smtp_addr"`
	// FailSilently downgrades send failures to log entries.
	FailSilently bool `yaml:"fail_silently"`
}

// Export configures tabular serialization.
type Export struct {
	// CSVDelimiter is a single-character field separator. Defaults to ",".
	CSVDelimiter string `yaml:"csv_delimiter"`
}

// Logger mirrors logger.Config for YAML loading.
type Logger struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a config suitable for local development.
func Default() *Config {
	return &Config{
		HTTP: HTTP{
			Listen: ":8080",
		},
		Database: Database{
			Driver:   "sqlite",
			DSN:      "formforge.db",
			MaxConns: 10,
			MinConns: 2,
		},
		Filestore: Filestore{
			Provider: "local",
			Root:     "uploads",
			Bucket:   "forms",
		},
		Email: Email{
			FailSilently: true,
		},
		Export: Export{
			CSVDelimiter: ",",
		},
		Logger: Logger{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML file and merges it over Default.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindNotFound, "config file unreadable", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "config file malformed", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "mysql":
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported database driver %q", c.Database.Driver)
	}
	switch c.Filestore.Provider {
	case "local", "minio":
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported filestore provider %q", c.Filestore.Provider)
	}
	if len(c.Export.CSVDelimiter) != 1 {
		return errs.New(errs.ErrKindInvalidInput, "csv_delimiter must be a single character")
	}
	return nil
}
