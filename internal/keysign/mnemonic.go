package keysign

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

const hardened = 0x80000000

// Accounts derive at the standard Ethereum path m/44'/60'/0'/0/index.
var ethereumPathPrefix = []uint32{
	44 | hardened,
	60 | hardened,
	0 | hardened,
	0,
}

// NewMnemonic derives the account at m/44'/60'/0'/0/index from a BIP-39
// mnemonic and returns a local signer for it.
func NewMnemonic(mnemonic, passphrase string, index uint32) (*Local, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return nil, fmt.Errorf("mnemonic is required")
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	if index >= hardened {
		return nil, fmt.Errorf("account index %d out of range", index)
	}

	seed := bip39.NewSeed(mnemonic, passphrase)
	path := append(append([]uint32{}, ethereumPathPrefix...), index)

	key, err := deriveKey(seed, path)
	if err != nil {
		return nil, fmt.Errorf("failed to derive account %d: %w", index, err)
	}
	return FromKey(key), nil
}

// deriveKey walks a BIP-32 path over secp256k1 starting from the seed.
func deriveKey(seed []byte, path []uint32) (*ecdsa.PrivateKey, error) {
	curveOrder := crypto.S256().Params().N

	mac := hmac.New(sha512.New, []byte("Bitcoin seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)

	key := new(big.Int).SetBytes(sum[:32])
	chainCode := sum[32:]
	if key.Sign() == 0 || key.Cmp(curveOrder) >= 0 {
		return nil, fmt.Errorf("seed produces an invalid master key")
	}

	for _, segment := range path {
		var data []byte
		if segment >= hardened {
			// Hardened: 0x00 || ser256(k) || ser32(i)
			data = make([]byte, 37)
			key.FillBytes(data[1:33])
		} else {
			// Normal: serP(K) || ser32(i)
			parent, err := toPrivateKey(key)
			if err != nil {
				return nil, err
			}
			data = make([]byte, 37)
			copy(data, crypto.CompressPubkey(&parent.PublicKey))
		}
		binary.BigEndian.PutUint32(data[33:], segment)

		mac := hmac.New(sha512.New, chainCode)
		mac.Write(data)
		sum := mac.Sum(nil)

		tweak := new(big.Int).SetBytes(sum[:32])
		if tweak.Cmp(curveOrder) >= 0 {
			return nil, fmt.Errorf("derivation step %d is out of range", segment)
		}
		key.Add(key, tweak).Mod(key, curveOrder)
		if key.Sign() == 0 {
			return nil, fmt.Errorf("derivation step %d yields a zero key", segment)
		}
		chainCode = sum[32:]
	}

	return toPrivateKey(key)
}

func toPrivateKey(key *big.Int) (*ecdsa.PrivateKey, error) {
	raw := make([]byte, 32)
	key.FillBytes(raw)
	parsed, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to build private key: %w", err)
	}
	return parsed, nil
}
