package types

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/polywallet/polywallet/pkg/errors"
)

// Signer is a reference to a secp256k1 key that can sign 32-byte digests.
// Implementations produce 65-byte r||s||v signatures with v in {27, 28}.
type Signer interface {
	// Address returns the EOA address controlled by the key.
	Address() common.Address
	// SignHash signs the digest. Implementations backed by remote key
	// stores honor ctx cancellation.
	SignHash(ctx context.Context, hash [32]byte) ([]byte, error)
}

// AddressOnly returns a Signer that knows its address but holds no key
// material. Signing with it fails with a signing_unsupported error, so
// address-only owners can participate in encoding but never in signing.
func AddressOnly(addr common.Address) Signer {
	return addressOnlySigner{addr: addr}
}

type addressOnlySigner struct {
	addr common.Address
}

func (s addressOnlySigner) Address() common.Address { return s.addr }

func (s addressOnlySigner) SignHash(_ context.Context, _ [32]byte) ([]byte, error) {
	return nil, apperrors.ErrSigningUnsupported
}

// WebAuthnCredential is the public half of a P-256 passkey credential.
type WebAuthnCredential struct {
	// PubKeyX and PubKeyY are the affine coordinates of the P-256 public key.
	PubKeyX *big.Int
	PubKeyY *big.Int
	// ID is the authenticator credential identifier, used by signers to
	// select the credential during an assertion. Optional.
	ID string
	// RequireUV requests user verification during assertions.
	RequireUV bool
}

// ParseWebAuthnPublicKey decodes an uncompressed P-256 public key into a
// credential. Accepts the 65-byte SEC1 form (0x04 || x || y) and the bare
// 64-byte x || y form.
func ParseWebAuthnPublicKey(pub []byte) (WebAuthnCredential, error) {
	switch len(pub) {
	case 65:
		if pub[0] != 0x04 {
			return WebAuthnCredential{}, apperrors.Configuration(
				apperrors.CodeUnsupportedConfiguration,
				"webauthn public key is not in uncompressed SEC1 form")
		}
		pub = pub[1:]
	case 64:
	default:
		return WebAuthnCredential{}, apperrors.Configuration(
			apperrors.CodeUnsupportedConfiguration,
			"webauthn public key must be 64 or 65 bytes")
	}
	return WebAuthnCredential{
		PubKeyX: new(big.Int).SetBytes(pub[:32]),
		PubKeyY: new(big.Int).SetBytes(pub[32:]),
	}, nil
}

// Validate checks that the credential carries a plausible public key.
func (c WebAuthnCredential) Validate() error {
	if c.PubKeyX == nil || c.PubKeyY == nil {
		return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"webauthn credential is missing public key coordinates")
	}
	if c.PubKeyX.Sign() <= 0 || c.PubKeyY.Sign() <= 0 {
		return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"webauthn credential public key coordinates must be positive")
	}
	if c.PubKeyX.BitLen() > 256 || c.PubKeyY.BitLen() > 256 {
		return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"webauthn credential public key coordinates exceed 256 bits")
	}
	return nil
}

// WebAuthnAssertion is an authenticator's response to a signing challenge.
type WebAuthnAssertion struct {
	AuthenticatorData []byte
	ClientDataJSON    string
	// R and S are the raw P-256 signature scalars.
	R *big.Int
	S *big.Int
}

// WebAuthnSigner produces assertions for 32-byte challenges. The credential
// ceremony itself (platform authenticator, browser bridge) is supplied by
// the caller.
type WebAuthnSigner interface {
	SignChallenge(ctx context.Context, challenge [32]byte) (*WebAuthnAssertion, error)
}

// OwnerSetKind discriminates the owner topologies an account can be
// configured with.
type OwnerSetKind string

const (
	// OwnerKindEcdsa is a k-of-n set of secp256k1 keys.
	OwnerKindEcdsa OwnerSetKind = "ecdsa"
	// OwnerKindPasskey is a single WebAuthn P-256 credential.
	OwnerKindPasskey OwnerSetKind = "passkey"
	// OwnerKindMultiFactor is a k-of-n set over nested owner sets, each
	// pinned to its own validator slot.
	OwnerKindMultiFactor OwnerSetKind = "multi_factor"
)

// OwnerSet is the tagged union describing who controls an account. Exactly
// one arm matching Kind is populated.
type OwnerSet struct {
	Kind        OwnerSetKind
	Ecdsa       *EcdsaOwnerSet
	Passkey     *PasskeyOwnerSet
	MultiFactor *MultiFactorOwnerSet
}

// EcdsaOwnerSet holds the signing keys (or address-only references) of a
// threshold ECDSA owner group.
type EcdsaOwnerSet struct {
	Signers   []Signer
	Threshold int
}

// Addresses returns the owner addresses in their configured order.
func (s *EcdsaOwnerSet) Addresses() []common.Address {
	addrs := make([]common.Address, len(s.Signers))
	for i, signer := range s.Signers {
		addrs[i] = signer.Address()
	}
	return addrs
}

// PasskeyOwnerSet holds a single WebAuthn credential owner.
type PasskeyOwnerSet struct {
	Credential WebAuthnCredential
}

// MultiFactorOwnerSet combines nested owner sets behind one threshold. The
// slice index of each entry is its validator slot identifier; nil entries
// mark unused slots and are skipped during encoding.
type MultiFactorOwnerSet struct {
	Factors   []*OwnerSet
	Threshold int
}

// EcdsaOwners builds an ECDSA owner set arm.
func EcdsaOwners(threshold int, signers ...Signer) OwnerSet {
	return OwnerSet{
		Kind:  OwnerKindEcdsa,
		Ecdsa: &EcdsaOwnerSet{Signers: signers, Threshold: threshold},
	}
}

// PasskeyOwner builds a passkey owner set arm.
func PasskeyOwner(credential WebAuthnCredential) OwnerSet {
	return OwnerSet{
		Kind:    OwnerKindPasskey,
		Passkey: &PasskeyOwnerSet{Credential: credential},
	}
}

// MultiFactorOwners builds a multi-factor owner set arm. Factor positions
// are validator slot identifiers; pass nil to leave a slot unused.
func MultiFactorOwners(threshold int, factors ...*OwnerSet) OwnerSet {
	return OwnerSet{
		Kind:        OwnerKindMultiFactor,
		MultiFactor: &MultiFactorOwnerSet{Factors: factors, Threshold: threshold},
	}
}

// Validate checks the structural invariants of the owner set: the kind tag
// matches the populated arm, thresholds are within bounds, and multi-factor
// sets nest only ECDSA or passkey factors.
func (o OwnerSet) Validate() error {
	switch o.Kind {
	case OwnerKindEcdsa:
		if o.Ecdsa == nil {
			return armMissing(o.Kind)
		}
		if len(o.Ecdsa.Signers) == 0 {
			return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
				"ecdsa owner set has no signers")
		}
		for _, s := range o.Ecdsa.Signers {
			if s == nil {
				return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
					"ecdsa owner set contains a nil signer")
			}
		}
		if o.Ecdsa.Threshold < 1 || o.Ecdsa.Threshold > len(o.Ecdsa.Signers) {
			return apperrors.ConfigurationDetail(apperrors.CodeUnsupportedConfiguration,
				"ecdsa owner threshold out of range",
				"threshold must be between 1 and the signer count")
		}
		return nil
	case OwnerKindPasskey:
		if o.Passkey == nil {
			return armMissing(o.Kind)
		}
		return o.Passkey.Credential.Validate()
	case OwnerKindMultiFactor:
		if o.MultiFactor == nil {
			return armMissing(o.Kind)
		}
		populated := 0
		for _, factor := range o.MultiFactor.Factors {
			if factor == nil {
				continue
			}
			populated++
			if factor.Kind == OwnerKindMultiFactor {
				return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
					"multi-factor owner sets cannot nest further multi-factor sets")
			}
			if err := factor.Validate(); err != nil {
				return err
			}
		}
		if populated == 0 {
			return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
				"multi-factor owner set has no factors")
		}
		if o.MultiFactor.Threshold < 1 || o.MultiFactor.Threshold > populated {
			return apperrors.ConfigurationDetail(apperrors.CodeUnsupportedConfiguration,
				"multi-factor owner threshold out of range",
				"threshold must be between 1 and the populated factor count")
		}
		return nil
	default:
		return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"unknown owner set kind "+string(o.Kind))
	}
}

func armMissing(kind OwnerSetKind) error {
	return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
		"owner set kind "+string(kind)+" has no matching payload")
}
