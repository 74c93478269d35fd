package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ClientOption allows for customization of the client
type ClientOption func(*TwitterClient)

// WithLimiter replaces the limiter derived from RateLimit and RateWindow
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(c *TwitterClient) {
		c.limiter = l
	}
}

type TwitterClient struct {
	config  *TwitterConfig
	auth    *Authenticator
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewTwitterClient creates a new Twitter API client
func NewTwitterClient(config *TwitterConfig, opts ...ClientOption) (*TwitterClient, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	auth, err := NewAuthenticator(config.Credentials, config.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	// RateLimit requests per window, allowed to burst up to the full budget
	every := time.Duration(config.RateWindow) * time.Minute / time.Duration(config.RateLimit)

	client := &TwitterClient{
		config:  config,
		auth:    auth,
		limiter: rate.NewLimiter(rate.Every(every), config.RateLimit),
		logger:  config.Logger,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// handleResponse checks for API errors in the response
func (c *TwitterClient) handleResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	var errResp struct {
		Errors []TwitterError `json:"errors"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil || len(errResp.Errors) == 0 {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	c.logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"error_code":  errResp.Errors[0].Code,
		"message":     errResp.Errors[0].Message,
	}).Error("Twitter API error")

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       errResp.Errors[0].Code,
		Message:    errResp.Errors[0].Message,
	}
}

// getJSON issues a signed GET and decodes a 2xx body into out. A non-2xx
// status is returned as *APIError.
func (c *TwitterClient) getJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	fullURL := c.config.GetEndpoint(endpoint)
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.auth.SetAuthHeader(req)

	c.logger.WithField("url", fullURL).Debug("Sending API request")

	// OAuth 1.0a client will handle the authentication headers
	resp, err := c.auth.GetClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if err := c.handleResponse(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
