package app

import (
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/sharebot/core/config"
	coredatabase "github.com/m3rciful/sharebot/core/database"
)

// DefaultStorageDir holds persisted bundle files when share.storage_dir is unset.
const DefaultStorageDir = "data/files"

// ShareConfig tunes uploads and deliveries.
type ShareConfig struct {
	StorageDir string `yaml:"storage_dir" envconfig:"SHARE_STORAGE_DIR"`
	// ForwardToAdmins forwards every non-admin upload to the admins.
	ForwardToAdmins  bool    `yaml:"forward_to_admins" envconfig:"SHARE_FORWARD_TO_ADMINS"`
	AllowedUploaders []int64 `yaml:"allowed_uploaders" envconfig:"SHARE_ALLOWED_UPLOADERS"`
	// Workers bounds concurrent downloads while a bundle is stored; 0 -> default
	Workers int `yaml:"workers" envconfig:"SHARE_WORKERS"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen    string `yaml:"listen" envconfig:"METRICS_LISTEN"`
	Namespace string `yaml:"namespace" envconfig:"METRICS_NAMESPACE"`
}

// Config is the full bot configuration: the core sections plus share, metrics
// and an optional database.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Share    ShareConfig         `yaml:"share"`
	Metrics  MetricsConfig       `yaml:"metrics"`
	Database coredatabase.Config `yaml:"database"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads path, overlays the environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the configuration and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	c.Share.StorageDir = strings.TrimSpace(c.Share.StorageDir)
	if c.Share.StorageDir == "" {
		c.Share.StorageDir = DefaultStorageDir
	}
	if c.Share.Workers < 0 {
		return fmt.Errorf("share.workers must be >= 0")
	}
	for _, id := range c.Share.AllowedUploaders {
		if id <= 0 {
			return fmt.Errorf("share.allowed_uploaders must contain positive user IDs, got %d", id)
		}
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "sharebot"
	}
	return nil
}
