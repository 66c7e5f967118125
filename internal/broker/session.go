package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ajitpratap0/ees/internal/secrets"
	"github.com/rs/zerolog"
)

// ErrClockSkewExceeded is returned by Authorize when the skew between this
// process's clock and the broker's observed clock exceeds the configured
// tolerance — signing is refused rather than producing a signature the
// broker will reject as expired or not-yet-valid (spec §4.3/§8.3).
var ErrClockSkewExceeded = errors.New("broker: clock skew exceeds tolerance, refusing to sign")

// tokenPair is the broker's OAuth1 access token and secret.
type tokenPair struct {
	Token       string
	TokenSecret string
	IssuedAt    time.Time
	LastUsedAt  time.Time
}

func (t tokenPair) empty() bool { return t.Token == "" }

// Environment separates sandbox credentials/base-URL from production.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// SessionConfig configures the OAuth session manager.
type SessionConfig struct {
	Environment       Environment
	ConsumerKeySecret    string // secret store name for the consumer key
	ConsumerSecretSecret string // secret store name for the consumer secret
	TokenSecretName      string // secret store name for the access token
	TokenSecretSecretName string // secret store name for the access token secret
	IdleExpiry        time.Duration // session goes stale after this much idle time
	DailyExpiryHour   int           // exchange-local hour of day the broker force-expires all sessions
	KeepAliveInterval time.Duration
	ClockSkewTolerance time.Duration // max acceptable |local - broker| clock skew before signing is refused
}

// Session manages the lifetime of an OAuth 1.0a broker session: it loads
// consumer/access tokens from the secret store, signs requests, renews on
// 401, tracks idle/daily expiry, and runs a keep-alive heartbeat against
// the broker's session-renewal endpoint. It deliberately holds no
// package-level state — callers construct one explicitly and inject it,
// per this system's preference for injected services over singletons.
type Session struct {
	cfg    SessionConfig
	store  secrets.Store
	signer *oauth1Signer
	log    zerolog.Logger

	mu      sync.RWMutex
	current tokenPair

	skewMu       sync.RWMutex
	skew         time.Duration
	skewObserved bool

	onRotate []func(tokenPair)
}

// NewSession constructs a Session, loading the consumer key/secret and the
// current access token/secret from store. It does not start the
// keep-alive loop; call Start for that.
func NewSession(ctx context.Context, cfg SessionConfig, store secrets.Store, log zerolog.Logger) (*Session, error) {
	consumerKey, err := store.Get(ctx, cfg.ConsumerKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to load consumer key: %w", err)
	}
	consumerSecret, err := store.Get(ctx, cfg.ConsumerSecretSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to load consumer secret: %w", err)
	}

	s := &Session{
		cfg:    cfg,
		store:  store,
		signer: newOAuth1Signer(string(consumerKey), string(consumerSecret)),
		log:    log,
	}

	if token, err := store.Get(ctx, cfg.TokenSecretName); err == nil {
		tokenSecret, err := store.Get(ctx, cfg.TokenSecretSecretName)
		if err != nil {
			return nil, fmt.Errorf("failed to load access token secret: %w", err)
		}
		s.current = tokenPair{Token: string(token), TokenSecret: string(tokenSecret), IssuedAt: time.Now(), LastUsedAt: time.Now()}
	}

	return s, nil
}

// Start launches the secret-store watch (renew-on-rotation, §4.3) and the
// keep-alive heartbeat. It returns immediately; both loops run until ctx
// is cancelled.
func (s *Session) Start(ctx context.Context, keepAlive func(ctx context.Context) error) {
	go func() {
		if err := s.store.Watch(ctx, s.cfg.TokenSecretName, func(v []byte) {
			s.mu.Lock()
			s.current.Token = string(v)
			s.current.IssuedAt = time.Now()
			pair := s.current
			s.mu.Unlock()
			s.notifyRotate(pair)
		}); err != nil && ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("secret watch for access token ended unexpectedly")
		}
	}()

	if s.cfg.KeepAliveInterval <= 0 || keepAlive == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.KeepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.Expired() {
					continue
				}
				if err := keepAlive(ctx); err != nil {
					s.log.Warn().Err(err).Msg("broker keep-alive failed")
				}
			}
		}
	}()
}

// OnTokensRotated registers fn to be called whenever the access token
// changes, whether from a renewal the broker pushed or an operator
// rotating the secret directly in the store.
func (s *Session) OnTokensRotated(fn func(tokenPair)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRotate = append(s.onRotate, fn)
}

func (s *Session) notifyRotate(pair tokenPair) {
	s.mu.RLock()
	fns := append([]func(tokenPair){}, s.onRotate...)
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(pair)
	}
}

// Authorize returns the Authorization header value for an outbound
// broker request, and marks the session as used (resetting idle expiry).
// It refuses to sign if the session's observed clock skew exceeds its
// configured tolerance (spec §4.3: "Clock skew > 120 s from NTP
// reference is a fatal condition — refuse to sign"), deferring the
// actual HMAC computation to oauth1Signer.Authorize once that
// precondition passes.
func (s *Session) Authorize(method, rawURL string) (string, error) {
	if fatal, _ := s.ClockSkewFatal(); fatal {
		return "", ErrClockSkewExceeded
	}

	s.mu.Lock()
	pair := s.current
	s.current.LastUsedAt = time.Now()
	s.mu.Unlock()

	if pair.empty() {
		return "", fmt.Errorf("no active broker session: renew before placing requests")
	}
	return s.signer.Authorize(method, rawURL, pair.Token, pair.TokenSecret, nil)
}

// ObserveServerTime records a clock reading attributed to the broker
// (typically the HTTP Date header off a response) so subsequent calls to
// ClockSkewFatal/Authorize can tell whether this process's clock has
// drifted. There is no NTP client anywhere in the retrieval corpus, so
// the broker's own response clock serves as the reference instead of
// reaching for a dependency nothing else in the system uses.
func (s *Session) ObserveServerTime(serverTime time.Time) {
	skew := time.Since(serverTime)
	if skew < 0 {
		skew = -skew
	}
	s.skewMu.Lock()
	s.skew = skew
	s.skewObserved = true
	s.skewMu.Unlock()
}

// ClockSkewFatal reports whether the last observed clock skew exceeds
// cfg.ClockSkewTolerance. It is false until a server time has been
// observed at least once.
func (s *Session) ClockSkewFatal() (bool, time.Duration) {
	s.skewMu.RLock()
	skew, observed := s.skew, s.skewObserved
	s.skewMu.RUnlock()
	if !observed {
		return false, 0
	}
	tolerance := s.cfg.ClockSkewTolerance
	if tolerance <= 0 {
		tolerance = 120 * time.Second
	}
	return skew > tolerance, skew
}

// Renew replaces the current access token/secret, persists them to the
// secret store, and notifies watchers. Called after a successful
// renew-session call (on 401) or the initial OAuth dance.
func (s *Session) Renew(ctx context.Context, token, tokenSecret string) error {
	if err := s.store.Put(ctx, s.cfg.TokenSecretName, []byte(token)); err != nil {
		return fmt.Errorf("failed to persist renewed access token: %w", err)
	}
	if err := s.store.Put(ctx, s.cfg.TokenSecretSecretName, []byte(tokenSecret)); err != nil {
		return fmt.Errorf("failed to persist renewed access token secret: %w", err)
	}

	pair := tokenPair{Token: token, TokenSecret: tokenSecret, IssuedAt: time.Now(), LastUsedAt: time.Now()}
	s.mu.Lock()
	s.current = pair
	s.mu.Unlock()

	s.notifyRotate(pair)
	s.log.Info().Msg("broker session renewed")
	return nil
}

// Expired reports whether the session is idle-expired, daily-expired, or
// simply never established.
func (s *Session) Expired() bool {
	s.mu.RLock()
	pair := s.current
	s.mu.RUnlock()

	if pair.empty() {
		return true
	}
	if time.Since(pair.LastUsedAt) > s.cfg.IdleExpiry {
		return true
	}
	now := time.Now()
	dailyBoundary := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.DailyExpiryHour, 0, 0, 0, now.Location())
	if now.After(dailyBoundary) && pair.IssuedAt.Before(dailyBoundary) {
		return true
	}
	return false
}
