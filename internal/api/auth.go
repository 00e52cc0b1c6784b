package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenLifetimeFallback is assumed when the sign-in token carries no usable
// expiry claim.
const tokenLifetimeFallback = time.Hour

// TokenProvider supplies the bearer token for API requests.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider for a pre-acquired token.
type StaticToken string

// Token returns the static token.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", AuthenticationError{Message: "no API token configured"}
	}
	return string(t), nil
}

// TokenSource signs in with username/password at {baseURL}/api/auth/signin
// and caches the returned JWT until shortly before it expires.
type TokenSource struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	now        func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewTokenSource creates a sign-in token source for the given credentials.
func NewTokenSource(baseURL, username, password string) *TokenSource {
	return &TokenSource{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username:   username,
		password:   password,
		now:        time.Now,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// bind adopts the owning client's transport and base URL so the token source
// and client always talk to the same backend.
func (s *TokenSource) bind(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseURL == "" {
		s.baseURL = c.baseURL
	}
	s.httpClient = c.httpClient
}

// Token returns the cached token, refreshing it when missing or expired.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expiry) {
		return s.token, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.token, nil
}

// Refresh forces a new sign-in regardless of the cached token's state.
func (s *TokenSource) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *TokenSource) refreshLocked(ctx context.Context) error {
	if s.username == "" || s.password == "" {
		return AuthenticationError{Message: "username and password are required"}
	}

	body, err := json.Marshal(map[string]string{
		"username": s.username,
		"password": s.password,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sign-in request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/auth/signin", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create sign-in request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sign-in request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read sign-in response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		s.token = ""
		s.expiry = time.Time{}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return AuthenticationError{Message: "sign-in failed: invalid username or password"}
		}
		return fmt.Errorf("sign-in failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var signin struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(respBody, &signin); err != nil {
		return fmt.Errorf("failed to parse sign-in response: %w", err)
	}
	if signin.Token == "" {
		return AuthenticationError{Message: "sign-in response contained no token"}
	}

	s.token = signin.Token
	s.expiry = tokenExpiry(signin.Token, s.now())
	return nil
}

// tokenExpiry reads the exp claim from the JWT without verifying the
// signature; the token is opaque to us beyond its lifetime. Tokens without a
// readable expiry get a fixed fallback lifetime.
func tokenExpiry(token string, now time.Time) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return now.Add(tokenLifetimeFallback)
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return now.Add(tokenLifetimeFallback)
	}
	return exp.Time
}
