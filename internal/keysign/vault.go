package keysign

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"
)

const (
	defaultVaultMount = "secret"
	defaultVaultField = "privateKey"
)

// NewVault reads a hex-encoded private key from a Vault KV v2 secret and
// returns a local signer for it. Vault holds the key at rest; digests are
// signed in process and never sent to Vault.
func NewVault(ctx context.Context, cfg Config) (*Local, error) {
	if cfg.VaultAddress == "" {
		return nil, fmt.Errorf("vault address is required")
	}
	if cfg.VaultToken == "" {
		return nil, fmt.Errorf("vault token is required")
	}
	if cfg.VaultPath == "" {
		return nil, fmt.Errorf("vault secret path is required")
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.VaultAddress

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.VaultToken)

	mount := cfg.VaultMount
	if mount == "" {
		mount = defaultVaultMount
	}
	field := cfg.VaultField
	if field == "" {
		field = defaultVaultField
	}

	secret, err := client.Logical().ReadWithContext(ctx, fmt.Sprintf("%s/data/%s", mount, cfg.VaultPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read vault secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("vault secret %s not found", cfg.VaultPath)
	}

	// KV v2 nests the stored fields under a second data envelope.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("vault secret %s has no KV v2 data envelope", cfg.VaultPath)
	}
	keyHex, ok := data[field].(string)
	if !ok {
		return nil, fmt.Errorf("vault secret %s has no %s field", cfg.VaultPath, field)
	}

	signer, err := NewLocal(keyHex)
	if err != nil {
		return nil, fmt.Errorf("vault secret %s: %w", cfg.VaultPath, err)
	}
	return signer, nil
}
