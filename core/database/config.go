package database

import (
	"cmp"
	"fmt"
	"net"
	"net/url"
	"strings"
)

const (
	// DefaultMigrationsDir is resolved against the working directory.
	DefaultMigrationsDir = "migrations"
	defaultPort          = "5432"
	defaultSSLMode       = "disable"
	defaultMaxConns      = 10
)

// Config holds the Postgres connection settings. The database is optional;
// it is used only when Host is set.
type Config struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// Enabled reports whether a database is configured at all.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

func (c Config) port() string    { return cmp.Or(strings.TrimSpace(c.Port), defaultPort) }
func (c Config) sslMode() string { return cmp.Or(strings.TrimSpace(c.SSLMode), defaultSSLMode) }

func (c Config) maxConns() int {
	if c.MaxConnections > 0 {
		return c.MaxConnections
	}
	return defaultMaxConns
}

// URL is the postgres:// form expected by golang-migrate. Credentials are
// escaped.
func (c Config) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.Host, c.port()),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.sslMode()}}.Encode(),
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

// String describes the target without credentials.
func (c Config) String() string {
	return fmt.Sprintf("postgres://%s/%s", net.JoinHostPort(c.Host, c.port()), c.Name)
}
