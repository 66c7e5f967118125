package secrets

import "fmt"

// NewStore builds the configured Store adapter. adapter is "vault" or
// "env"; address/token/mountPath are only used for the vault adapter.
func NewStore(adapter, address, token, mountPath string) (Store, error) {
	switch adapter {
	case "vault":
		return NewVaultStore(VaultConfig{Address: address, Token: token, MountPath: mountPath})
	case "env", "":
		return NewEnvStore(), nil
	default:
		return nil, fmt.Errorf("unknown secret store adapter: %s", adapter)
	}
}
