package db

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// Supported storage engines
const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

// Config describes how to reach the tweet store. For sqlite, Name is the
// database file path.
type Config struct {
	Engine   string
	Name     string
	User     string
	Password string
	Host     string
	Port     string
	SSLMode  string
}

// NewConfig builds a Config from DB_* environment variables
func NewConfig() Config {
	return Config{
		Engine:   getEnvOrDefault("DB_ENGINE", EnginePostgres),
		Name:     getEnvOrDefault("DB_NAME", "tweets"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}
}

// Validate checks the engine name and the fields it requires
func (c Config) Validate() error {
	switch c.Engine {
	case EnginePostgres:
		if c.Name == "" || c.User == "" || c.Host == "" {
			return fmt.Errorf("postgres requires database name, user and host")
		}
	case EngineSQLite:
		if c.Name == "" {
			return fmt.Errorf("sqlite requires a database file name")
		}
	default:
		return fmt.Errorf("unsupported storage engine %q", c.Engine)
	}
	return nil
}

// DSN returns the key/value connection string used by gorm. Every value is
// quoted so an empty or spaced value cannot swallow the next key.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		quoteDSN(c.Host), quoteDSN(c.User), quoteDSN(c.Password),
		quoteDSN(c.Name), quoteDSN(c.Port), quoteDSN(c.SSLMode))
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quoteDSN(v string) string {
	return "'" + dsnEscaper.Replace(v) + "'"
}

// URL returns the postgres:// form used by the migrator
func (c Config) URL() string {
	return c.url().String()
}

// RedactedURL is URL with the password masked, for logs and errors
func (c Config) RedactedURL() string {
	return c.url().Redacted()
}

func (c Config) url() *url.URL {
	return &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
}

// redact masks the connection URL and password wherever they appear in msg
func (c Config) redact(msg string) string {
	msg = strings.ReplaceAll(msg, c.URL(), c.RedactedURL())
	return strings.ReplaceAll(msg, url.UserPassword(c.User, c.Password).String()+"@", url.User(c.User).String()+":xxxxx@")
}

// redactedError keeps the cause for errors.Is while hiding credentials
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.err }

// Helper function to get environment variable with default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
