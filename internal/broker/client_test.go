package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/ees/internal/secrets"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	s := &Session{
		cfg:    SessionConfig{ClockSkewTolerance: 2 * time.Minute},
		store:  secrets.NewEnvStore(),
		signer: newOAuth1Signer("consumer-key", "consumer-secret"),
		log:    zerolog.Nop(),
		current: tokenPair{
			Token:       "stale-token",
			TokenSecret: "stale-secret",
			IssuedAt:    time.Now(),
			LastUsedAt:  time.Now(),
		},
	}
	return NewClient(baseURL, s, zerolog.Nop())
}

// TestClient_RenewsOnceAndReplaysOn401 exercises Scenario D (spec
// §4.3/§6.1): a 401 on any broker call renews the session exactly once
// and replays the original request exactly once.
func TestClient_RenewsOnceAndReplaysOn401(t *testing.T) {
	var quoteCalls, renewCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/market/quote/AAPL", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&quoteCalls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(quoteResponse{Symbol: "AAPL", Bid: 100, Ask: 100.5, Last: 100.2, Volume: 10})
	})
	mux.HandleFunc("/oauth/renew_access_token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&renewCalls, 1)
		_ = json.NewEncoder(w).Encode(struct {
			Token       string `json:"oauth_token"`
			TokenSecret string `json:"oauth_token_secret"`
		}{Token: "fresh-token", TokenSecret: "fresh-secret"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	quote, err := c.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, int32(2), atomic.LoadInt32(&quoteCalls), "original call plus exactly one replay")
	assert.Equal(t, int32(1), atomic.LoadInt32(&renewCalls), "exactly one renewal")
}

// TestClient_NotAuthenticatedWhenRenewalItselfFails confirms a 401 from
// the renewal endpoint itself does not recurse: it surfaces
// ErrNotAuthenticated without ever replaying the original request.
func TestClient_NotAuthenticatedWhenRenewalItselfFails(t *testing.T) {
	var quoteCalls, renewCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/market/quote/AAPL", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&quoteCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/oauth/renew_access_token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&renewCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.GetQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAuthenticated))
	assert.Equal(t, int32(1), atomic.LoadInt32(&quoteCalls), "renewal failed, so no replay of the original request")
	assert.Equal(t, int32(1), atomic.LoadInt32(&renewCalls))
}

// TestClient_NotAuthenticatedWhenReplayStillUnauthorized confirms a
// renewal that succeeds but a replay that still 401s ends the cycle
// rather than renewing again.
func TestClient_NotAuthenticatedWhenReplayStillUnauthorized(t *testing.T) {
	var quoteCalls, renewCalls int32

	mux := http.NewServeMux()
	mux.HandleFunc("/market/quote/AAPL", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&quoteCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/oauth/renew_access_token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&renewCalls, 1)
		_ = json.NewEncoder(w).Encode(struct {
			Token       string `json:"oauth_token"`
			TokenSecret string `json:"oauth_token_secret"`
		}{Token: "fresh-token", TokenSecret: "fresh-secret"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.GetQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAuthenticated))
	assert.Equal(t, int32(2), atomic.LoadInt32(&quoteCalls), "original call plus exactly one replay, no more")
	assert.Equal(t, int32(1), atomic.LoadInt32(&renewCalls), "exactly one renewal attempt")
}
