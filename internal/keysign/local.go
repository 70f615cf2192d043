package keysign

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Local signs with a secp256k1 private key held in process memory.
type Local struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocal creates a signer from a hex-encoded private key. A 0x prefix is
// accepted.
func NewLocal(privateKeyHex string) (*Local, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required for local signer")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return FromKey(key), nil
}

// FromKey wraps an already-parsed private key.
func FromKey(key *ecdsa.PrivateKey) *Local {
	return &Local{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address returns the EOA address controlled by the key.
func (s *Local) Address() common.Address {
	return s.address
}

// SignHash signs the digest directly without additional hashing.
func (s *Local) SignHash(ctx context.Context, hash [32]byte) ([]byte, error) {
	signature, err := crypto.Sign(hash[:], s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign hash: %w", err)
	}

	// crypto.Sign yields the recovery id in {0, 1}; callers expect the
	// ecrecover convention.
	signature[64] += 27
	return signature, nil
}
