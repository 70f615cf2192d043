// Package keysign provides the signing backends behind types.Signer.
// Keys can live in process memory (raw hex or mnemonic-derived), in AWS
// KMS, or in a Vault KV secret. Every backend produces 65-byte r||s||v
// signatures with v in {27, 28}.
package keysign

import (
	"context"
	"fmt"

	"github.com/polywallet/polywallet/pkg/types"
)

// Backend selects a key storage backend.
type Backend string

const (
	// BackendLocal signs with a hex-encoded private key held in memory.
	BackendLocal Backend = "local"

	// BackendMnemonic derives the key from a BIP-39 mnemonic.
	BackendMnemonic Backend = "mnemonic"

	// BackendKMS signs through an AWS KMS secp256k1 key. The private key
	// never leaves KMS.
	BackendKMS Backend = "aws-kms"

	// BackendVault reads a hex-encoded key from a Vault KV v2 secret and
	// signs locally.
	BackendVault Backend = "vault"
)

// Config selects and configures a signing backend.
type Config struct {
	Backend Backend

	// Local backend
	PrivateKeyHex string

	// Mnemonic backend
	Mnemonic     string
	Passphrase   string
	AccountIndex uint32

	// AWS KMS backend
	KMSKeyID  string
	KMSRegion string

	// Vault backend
	VaultAddress string
	VaultToken   string
	VaultMount   string
	VaultPath    string
	VaultField   string
}

// New creates a signer for the configured backend.
func New(ctx context.Context, cfg Config) (types.Signer, error) {
	switch cfg.Backend {
	case BackendLocal, "": // Default to local
		return NewLocal(cfg.PrivateKeyHex)

	case BackendMnemonic:
		return NewMnemonic(cfg.Mnemonic, cfg.Passphrase, cfg.AccountIndex)

	case BackendKMS:
		return NewKMS(ctx, cfg.KMSKeyID, cfg.KMSRegion)

	case BackendVault:
		return NewVault(ctx, cfg)

	default:
		return nil, fmt.Errorf("unsupported signing backend: %s (supported: %s, %s, %s, %s)",
			cfg.Backend, BackendLocal, BackendMnemonic, BackendKMS, BackendVault)
	}
}
