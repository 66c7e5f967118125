package secrets

import (
	"bytes"
	"context"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/rs/zerolog/log"
)

// VaultConfig holds Vault connection configuration.
type VaultConfig struct {
	Address       string
	Token         string
	MountPath     string        // KV v2 mount, default "secret"
	WatchInterval time.Duration // polling interval for Watch (Vault KV v2 has no native push)
}

// VaultStore is a Store backed by HashiCorp Vault's KV v2 secrets engine.
type VaultStore struct {
	client    *vault.Client
	mountPath string
	interval  time.Duration
}

// NewVaultStore creates a Store backed by Vault.
func NewVaultStore(cfg VaultConfig) (*VaultStore, error) {
	vc := vault.DefaultConfig()
	vc.Address = cfg.Address

	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	mountPath := cfg.MountPath
	if mountPath == "" {
		mountPath = "secret"
	}
	interval := cfg.WatchInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	log.Info().
		Str("address", cfg.Address).
		Str("mount_path", mountPath).
		Msg("vault secret store initialized")

	return &VaultStore{client: client, mountPath: mountPath, interval: interval}, nil
}

// Get reads name from Vault's KV v2 engine, returning the "value" field of
// the secret as raw bytes.
func (s *VaultStore) Get(ctx context.Context, name string) ([]byte, error) {
	fullPath := fmt.Sprintf("%s/data/%s", s.mountPath, name)
	secret, err := s.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %q from vault: %w", name, err)
	}
	if secret == nil {
		return nil, fmt.Errorf("secret not found at path: %s", name)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		data = secret.Data
	}

	value, ok := data["value"].(string)
	if !ok {
		return nil, fmt.Errorf("secret %q has no string \"value\" field", name)
	}
	return []byte(value), nil
}

// Put writes name to Vault's KV v2 engine under a single "value" field.
func (s *VaultStore) Put(ctx context.Context, name string, value []byte) error {
	fullPath := fmt.Sprintf("%s/data/%s", s.mountPath, name)
	_, err := s.client.Logical().WriteWithContext(ctx, fullPath, map[string]interface{}{
		"data": map[string]interface{}{"value": string(value)},
	})
	if err != nil {
		return fmt.Errorf("failed to write secret %q to vault: %w", name, err)
	}
	return nil
}

// Watch polls Get at the configured interval and invokes fn whenever the
// returned bytes differ from the last observed value, until ctx is
// cancelled. This is the pragmatic idiom for KV v2, which has no native
// change-notification mechanism.
func (s *VaultStore) Watch(ctx context.Context, name string, fn func(value []byte)) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var last []byte
	if v, err := s.Get(ctx, name); err == nil {
		last = v
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			v, err := s.Get(ctx, name)
			if err != nil {
				log.Warn().Err(err).Str("name", name).Msg("secret watch poll failed")
				continue
			}
			if !bytes.Equal(v, last) {
				last = v
				fn(v)
			}
		}
	}
}
