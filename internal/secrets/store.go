// Package secrets implements the SecretStore interface the broker's OAuth
// session manager and other components use to read, write and watch
// credentials, without any component needing to know whether those
// credentials live in Vault or a local environment.
package secrets

import "context"

// Store is the get/put/watch interface every credential-consuming
// component depends on. Get returns the raw secret bytes for name. Put
// writes a new value (used when the broker rotates an access token). Watch
// invokes fn whenever the value at name changes, until ctx is cancelled.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, value []byte) error
	Watch(ctx context.Context, name string, fn func(value []byte)) error
}
