package broker

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionForSkew(tolerance time.Duration) *Session {
	return &Session{
		cfg:    SessionConfig{ClockSkewTolerance: tolerance},
		signer: newOAuth1Signer("consumer-key", "consumer-secret"),
		log:    zerolog.Nop(),
		current: tokenPair{
			Token:       "access-token",
			TokenSecret: "access-token-secret",
			IssuedAt:    time.Now(),
			LastUsedAt:  time.Now(),
		},
	}
}

func TestSession_ClockSkewFatalFalseUntilObserved(t *testing.T) {
	s := newTestSessionForSkew(2 * time.Minute)
	fatal, skew := s.ClockSkewFatal()
	assert.False(t, fatal)
	assert.Zero(t, skew)
}

func TestSession_AuthorizeSignsWhenSkewWithinTolerance(t *testing.T) {
	s := newTestSessionForSkew(2 * time.Minute)
	s.ObserveServerTime(time.Now().Add(-30 * time.Second))

	header, err := s.Authorize("GET", "https://api.broker.example.com/market/quote/AAPL")
	require.NoError(t, err)
	assert.Contains(t, header, "OAuth ")
}

func TestSession_AuthorizeRefusesWhenSkewExceedsTolerance(t *testing.T) {
	s := newTestSessionForSkew(2 * time.Minute)
	s.ObserveServerTime(time.Now().Add(-5 * time.Minute))

	_, err := s.Authorize("GET", "https://api.broker.example.com/market/quote/AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClockSkewExceeded))
}

func TestSession_ClockSkewFatalUsesDefaultToleranceWhenUnset(t *testing.T) {
	s := newTestSessionForSkew(0)
	s.ObserveServerTime(time.Now().Add(-150 * time.Second))

	fatal, _ := s.ClockSkewFatal()
	assert.True(t, fatal, "150s skew should exceed the 120s default tolerance")
}
