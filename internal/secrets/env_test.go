package secrets

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvStore_GetFromEnvironment(t *testing.T) {
	require.NoError(t, os.Setenv("BROKER_CONSUMER_KEY", "abc123"))
	defer os.Unsetenv("BROKER_CONSUMER_KEY")

	store := NewEnvStore()
	v, err := store.Get(context.Background(), "broker/consumer_key")
	require.NoError(t, err)
	assert.Equal(t, "abc123", string(v))
}

func TestEnvStore_GetMissing(t *testing.T) {
	store := NewEnvStore()
	_, err := store.Get(context.Background(), "broker/does_not_exist")
	assert.Error(t, err)
}

func TestEnvStore_PutOverridesEnvironment(t *testing.T) {
	require.NoError(t, os.Setenv("BROKER_ACCESS_TOKEN", "old"))
	defer os.Unsetenv("BROKER_ACCESS_TOKEN")

	store := NewEnvStore()
	require.NoError(t, store.Put(context.Background(), "broker/access_token", []byte("new")))

	v, err := store.Get(context.Background(), "broker/access_token")
	require.NoError(t, err)
	assert.Equal(t, "new", string(v))
}

func TestEnvStore_WatchStopsOnContextCancel(t *testing.T) {
	store := NewEnvStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Watch(ctx, "broker/access_token", func([]byte) {})
	assert.ErrorIs(t, err, context.Canceled)
}
