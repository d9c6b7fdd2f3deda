// Package config defines the fabrik service configuration, populated from the
// yaml config file, environment and CLI flags.
package config

import (
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sinzlab/fabrik/internal/db"
	"github.com/sinzlab/fabrik/internal/storage"
)

// Config is the top-level fabrik configuration.
type Config struct {
	ConfigFile string          `json:"config_file"`
	LogLevel   string          `json:"log_level"`
	DB         *db.Config      `json:"db"`
	Storage    *storage.Config `json:"storage"`
	// Repos lists the source repositories whose commit state gates and is
	// recorded with every computed run. Empty disables provenance tracking.
	Repos    []string       `json:"repos"`
	Identity IdentityConfig `json:"identity"`
}

// IdentityConfig configures how the current contributor is determined. When
// Username is empty the OS user is used.
type IdentityConfig struct {
	Username string `json:"username"`
}

// DefaultConfig returns the default fabrik configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		DB:       db.DefaultConfig(),
		Storage:  storage.DefaultConfig(),
	}
}

// Resolve validates the configuration and applies it to global state (log
// level).
func (c *Config) Resolve() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", c.LogLevel)
	}
	log.SetLevel(level)

	if c.DB == nil {
		c.DB = db.DefaultConfig()
	}
	if c.Storage == nil {
		c.Storage = storage.DefaultConfig()
	}
	switch c.Storage.Type {
	case storage.TypeSharedFS, storage.TypeS3:
	default:
		return errors.Errorf("invalid storage type %q", c.Storage.Type)
	}
	return nil
}

// Printable returns the configuration as JSON with credentials elided.
func (c *Config) Printable() ([]byte, error) {
	printable := *c
	if printable.DB != nil {
		dbCopy := *printable.DB
		dbCopy.Password = hiddenValue
		printable.DB = &dbCopy
	}
	if printable.Storage != nil {
		storageCopy := *printable.Storage
		storageCopy.S3.SecretKey = hiddenValue
		printable.Storage = &storageCopy
	}
	bs, err := json.Marshal(&printable)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling config")
	}
	return bs, nil
}

const hiddenValue = "********"
