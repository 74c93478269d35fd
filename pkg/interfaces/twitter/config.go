package twitter

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Defaults for the v1.1 search endpoint
const (
	DefaultBaseURL        = "https://api.twitter.com/1.1"
	DefaultSearchEndpoint = "/search/tweets.json"
	DefaultResultType     = "recent"
	DefaultLanguage       = "en"
	DefaultPageSize       = 100
	DefaultMaxPages       = 15
	MaxPageSize           = 100
)

// Credentials holds the secrets used to sign search requests. Either the
// four OAuth 1.0a values or a bearer token must be set.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
	BearerToken       string
}

// HasOAuth returns true if all OAuth 1.0a credentials are configured
func (c Credentials) HasOAuth() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" &&
		c.AccessToken != "" && c.AccessTokenSecret != ""
}

// Validate reports a MissingCredentialError when no usable credential set exists
func (c Credentials) Validate() error {
	if c.HasOAuth() || c.BearerToken != "" {
		return nil
	}
	var missing []string
	for name, v := range map[string]string{
		"consumer_key":        c.ConsumerKey,
		"consumer_secret":     c.ConsumerSecret,
		"access_token":        c.AccessToken,
		"access_token_secret": c.AccessTokenSecret,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return &MissingCredentialError{Missing: append(missing, "bearer_token")}
}

type TwitterConfig struct {
	// API Authentication
	Credentials Credentials

	// API Endpoints
	BaseURL        string
	SearchEndpoint string

	// Search defaults
	ResultType string
	Language   string
	PageSize   int
	MaxPages   int

	// Rate Limiting, RateLimit requests per RateWindow minutes
	RateLimit      int
	RateWindow     int
	RetryAttempts  int
	RetryBackoff   time.Duration
	RequestTimeout time.Duration

	// General Config
	Logger *logrus.Logger
}

// NewTwitterConfig reads TWITTER_* environment variables. Callers load any
// .env file beforehand.
func NewTwitterConfig() (*TwitterConfig, error) {
	config := &TwitterConfig{
		Credentials: Credentials{
			ConsumerKey:       os.Getenv("TWITTER_CONSUMER_KEY"),
			ConsumerSecret:    os.Getenv("TWITTER_CONSUMER_SECRET"),
			AccessToken:       os.Getenv("TWITTER_ACCESS_TOKEN"),
			AccessTokenSecret: os.Getenv("TWITTER_ACCESS_TOKEN_SECRET"),
			BearerToken:       os.Getenv("TWITTER_BEARER_TOKEN"),
		},

		BaseURL:        getEnvOrDefault("TWITTER_API_BASE_URL", DefaultBaseURL),
		SearchEndpoint: getEnvOrDefault("TWITTER_SEARCH_ENDPOINT", DefaultSearchEndpoint),

		ResultType: getEnvOrDefault("TWITTER_RESULT_TYPE", DefaultResultType),
		Language:   getEnvOrDefault("TWITTER_LANGUAGE", DefaultLanguage),
		PageSize:   getEnvIntOrDefault("TWITTER_PAGE_SIZE", DefaultPageSize),
		MaxPages:   getEnvIntOrDefault("TWITTER_MAX_PAGES", DefaultMaxPages),

		RateLimit:      getEnvIntOrDefault("TWITTER_RATE_LIMIT", 180),
		RateWindow:     getEnvIntOrDefault("TWITTER_RATE_WINDOW", 15),
		RetryAttempts:  getEnvIntOrDefault("TWITTER_RETRY_ATTEMPTS", 3),
		RetryBackoff:   time.Duration(getEnvIntOrDefault("TWITTER_RETRY_BACKOFF_MS", 1000)) * time.Millisecond,
		RequestTimeout: time.Duration(getEnvIntOrDefault("TWITTER_REQUEST_TIMEOUT", 30)) * time.Second,

		Logger: func() *logrus.Logger {
			log := logrus.New()
			// Set log level from environment variable
			if level := os.Getenv("LOG_LEVEL"); level != "" {
				if parsedLevel, err := logrus.ParseLevel(level); err == nil {
					log.SetLevel(parsedLevel)
				}
			}
			return log
		}(),
	}

	config.Logger.WithFields(logrus.Fields{
		"oauth_configured":    config.Credentials.HasOAuth(),
		"bearer_token_exists": config.Credentials.BearerToken != "",
		"base_url":            config.BaseURL,
		"rate_limit":          config.RateLimit,
	}).Debug("Twitter config initialized")

	return config, nil
}

func (c *TwitterConfig) Validate() error {
	// Validate logger
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	c.Logger.Debug("Validating Twitter configuration")

	if err := c.Credentials.Validate(); err != nil {
		c.Logger.WithFields(logrus.Fields{
			"consumer_key_exists":        c.Credentials.ConsumerKey != "",
			"consumer_secret_exists":     c.Credentials.ConsumerSecret != "",
			"access_token_exists":        c.Credentials.AccessToken != "",
			"access_token_secret_exists": c.Credentials.AccessTokenSecret != "",
		}).Debug("OAuth credentials validation")
		return err
	}

	// Validate rate limiting
	if c.RateLimit < 1 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.RateWindow < 1 {
		return fmt.Errorf("rate window must be positive")
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative")
	}
	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		return fmt.Errorf("page size must be between 1 and %d, got %d", MaxPageSize, c.PageSize)
	}

	// Set defaults if not provided
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.SearchEndpoint == "" {
		c.SearchEndpoint = DefaultSearchEndpoint
	}
	if c.ResultType == "" {
		c.ResultType = DefaultResultType
	}
	if c.MaxPages < 1 {
		c.MaxPages = DefaultMaxPages
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}

	c.Logger.Debug("Twitter configuration validation completed successfully")
	return nil
}

// GetEndpoint returns the full URL for a given endpoint
func (c *TwitterConfig) GetEndpoint(endpoint string) string {
	return c.BaseURL + endpoint
}

// Helper function to get environment variable with default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"key":     key,
			"value":   value,
			"default": defaultValue,
		}).Warn("Invalid integer in environment, using default")
		return defaultValue
	}
	return n
}
