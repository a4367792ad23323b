package spotify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAccountsURL = "https://accounts.spotify.com"
	defaultAPIURL      = "https://api.spotify.com"
)

// Credentials are the inputs to authentication.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Session is the explicit authenticated-state value threaded into the
// resolver and the stream client. There is no process-wide session.
type Session struct {
	AccessToken string
	TokenType   string
	Premium     bool
	ExpiresAt   time.Time
}

// Authenticator exchanges credentials for a Session against the accounts
// service.
type Authenticator struct {
	accountsURL string
	apiURL      string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewAuthenticator creates an Authenticator against the public accounts
// endpoint.
func NewAuthenticator(logger *zap.Logger) *Authenticator {
	return &Authenticator{
		accountsURL: defaultAccountsURL,
		apiURL:      defaultAPIURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type profileResponse struct {
	Product string `json:"product"`
}

// Authenticate performs the refresh-token grant and probes the account
// profile to pick the stream quality tier. Premium accounts stream at the
// highest quality.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, NewResolutionError(ResolutionUnauthorized, "missing credentials")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.accountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, NewResolutionErrorWithCause(ResolutionTransient, "failed to build token request", err)
	}
	req.SetBasicAuth(creds.ClientID, creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, NewResolutionErrorWithCause(ResolutionTransient, "token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusToResolutionError(resp.StatusCode, "token exchange rejected")
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, NewResolutionErrorWithCause(ResolutionTransient, "malformed token response", err)
	}
	if token.AccessToken == "" {
		return nil, NewResolutionError(ResolutionUnauthorized, "empty access token")
	}

	session := &Session{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresAt:   time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}

	premium, err := a.fetchPremium(ctx, session)
	if err != nil {
		// Quality probing is best effort; fall back to the standard tier.
		a.logger.Warn("could not determine account tier", zap.Error(err))
	}
	session.Premium = premium

	return session, nil
}

func (a *Authenticator) fetchPremium(ctx context.Context, session *Session) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+"/v1/me", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, statusToResolutionError(resp.StatusCode, "profile lookup failed")
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return false, err
	}
	return profile.Product == "premium", nil
}

// statusToResolutionError maps an HTTP status to the resolution taxonomy.
func statusToResolutionError(status int, message string) *ResolutionError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewResolutionError(ResolutionUnauthorized, message)
	case status == http.StatusNotFound:
		return NewResolutionError(ResolutionNotFound, message)
	default:
		return NewResolutionError(ResolutionTransient, message)
	}
}
