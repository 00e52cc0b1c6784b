package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signedToken builds a syntactically valid JWT with the given expiry claim.
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": "test-user",
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = StaticToken("").Token(context.Background())
	var authErr AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

func TestTokenSourceSignsInAndCaches(t *testing.T) {
	requests := 0
	var signinBody map[string]string
	jwtToken := signedToken(t, time.Now().Add(2*time.Hour))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/signin", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&signinBody))
		json.NewEncoder(w).Encode(map[string]string{"token": jwtToken})
	}))
	defer server.Close()

	source := NewTokenSource(server.URL, "alice", "s3cret")

	tok, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, jwtToken, tok)
	assert.Equal(t, "alice", signinBody["username"])
	assert.Equal(t, "s3cret", signinBody["password"])

	tok, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, jwtToken, tok)
	assert.Equal(t, 1, requests, "second Token call must reuse the cached token")
}

func TestTokenSourceRefreshesExpiredToken(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		// An opaque token gets the fallback lifetime.
		json.NewEncoder(w).Encode(map[string]string{"token": "opaque-token"})
	}))
	defer server.Close()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	source := NewTokenSource(server.URL, "alice", "s3cret")
	source.now = func() time.Time { return base }

	_, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, requests)

	// Still within the fallback lifetime.
	source.now = func() time.Time { return base.Add(30 * time.Minute) }
	_, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, requests)

	// Past the fallback lifetime the source signs in again.
	source.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, requests)
}

func TestTokenSourceInvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	source := NewTokenSource(server.URL, "alice", "wrong")
	_, err := source.Token(context.Background())
	var authErr AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "sign-in failed: invalid username or password", authErr.Message)
}

func TestTokenSourceRequiresCredentials(t *testing.T) {
	source := NewTokenSource("http://example.com", "", "")
	_, err := source.Token(context.Background())
	var authErr AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Message, "username and password")
}

func TestTokenSourceEmptyTokenResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	source := NewTokenSource(server.URL, "alice", "s3cret")
	_, err := source.Token(context.Background())
	var authErr AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Message, "no token")
}

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	exp := time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC)
	got := tokenExpiry(signedToken(t, exp), now)
	assert.True(t, got.Equal(exp), "expiry %v should match the exp claim %v", got, exp)

	got = tokenExpiry("not-a-jwt", now)
	assert.True(t, got.Equal(now.Add(tokenLifetimeFallback)))
}

func TestClientBindsTokenSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/signin" {
			json.NewEncoder(w).Encode(map[string]string{"token": "opaque-token"})
			return
		}
		assert.Equal(t, "Bearer opaque-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"collection": []}`))
	}))
	defer server.Close()

	// The token source starts without a base URL and adopts the client's.
	source := NewTokenSource("", "alice", "s3cret")
	client, err := NewClient(server.URL, source)
	require.NoError(t, err)

	_, err = client.ListDatasets(context.Background())
	require.NoError(t, err)
}
