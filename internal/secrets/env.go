package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// EnvStore is a Store backed by process environment variables, for
// development and sandbox use where running a Vault instance is
// unnecessary overhead. name is upper-cased and each "/", "-" and "." is
// replaced with an underscore to form the env var name, e.g.
// "broker/consumer_key" -> "BROKER_CONSUMER_KEY".
type EnvStore struct {
	mu   sync.RWMutex
	over map[string][]byte // values written via Put, not backed by the environment
}

// NewEnvStore creates an environment-backed Store.
func NewEnvStore() *EnvStore {
	return &EnvStore{over: make(map[string][]byte)}
}

func envName(name string) string {
	replacer := strings.NewReplacer("/", "_", "-", "_", ".", "_")
	return strings.ToUpper(replacer.Replace(name))
}

// Get returns the override written by Put if present, otherwise the
// environment variable derived from name.
func (s *EnvStore) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	if v, ok := s.over[name]; ok {
		s.mu.RUnlock()
		return v, nil
	}
	s.mu.RUnlock()

	key := envName(name)
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil, fmt.Errorf("secret %q not set (expected environment variable %s)", name, key)
	}
	return []byte(v), nil
}

// Put stores value in-memory for this process only; it does not persist
// across restarts. Used in development when the broker rotates a token.
func (s *EnvStore) Put(_ context.Context, name string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.over[name] = value
	return nil
}

// Watch is a no-op for EnvStore: environment variables and in-memory
// overrides never change out from under a running process.
func (s *EnvStore) Watch(ctx context.Context, _ string, _ func(value []byte)) error {
	<-ctx.Done()
	return ctx.Err()
}
