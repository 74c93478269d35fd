package twitter

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mrjones/oauth"
)

const (
	RequestTokenURL   = "https://api.twitter.com/oauth/request_token"
	AuthorizeTokenURL = "https://api.twitter.com/oauth/authorize"
	AccessTokenURL    = "https://api.twitter.com/oauth/access_token"
)

// Authenticator signs outgoing requests, either with OAuth 1.0a through a
// signing http.Client or with an application bearer token header
type Authenticator struct {
	client      *http.Client
	bearerToken string
}

// NewAuthenticator prefers OAuth 1.0a user credentials and falls back to the
// bearer token
func NewAuthenticator(creds Credentials, timeout time.Duration) (*Authenticator, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	if creds.HasOAuth() {
		return newUserAuthenticator(creds, timeout)
	}
	return newAppAuthenticator(creds.BearerToken, timeout), nil
}

func newAppAuthenticator(bearerToken string, timeout time.Duration) *Authenticator {
	return &Authenticator{
		client:      &http.Client{Timeout: timeout},
		bearerToken: bearerToken,
	}
}

func newUserAuthenticator(creds Credentials, timeout time.Duration) (*Authenticator, error) {
	consumer := oauth.NewConsumer(creds.ConsumerKey, creds.ConsumerSecret, oauth.ServiceProvider{
		RequestTokenUrl:   RequestTokenURL,
		AuthorizeTokenUrl: AuthorizeTokenURL,
		AccessTokenUrl:    AccessTokenURL,
	})
	consumer.HttpClient = &http.Client{Timeout: timeout}

	token := oauth.AccessToken{
		Token:  creds.AccessToken,
		Secret: creds.AccessTokenSecret,
	}

	client, err := consumer.MakeHttpClient(&token)
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth client: %w", err)
	}
	client.Timeout = timeout

	return &Authenticator{client: client}, nil
}

func (a *Authenticator) GetClient() *http.Client {
	return a.client
}

// SetAuthHeader adds the bearer token; OAuth clients sign in their transport
func (a *Authenticator) SetAuthHeader(req *http.Request) {
	if a.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.bearerToken)
	}
}
