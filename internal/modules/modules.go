package modules

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/polywallet/polywallet/internal/codec"
	"github.com/polywallet/polywallet/internal/contracts"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

// maxUint48 is the default owner expiration, meaning never.
const maxUint48 = (uint64(1) << 48) - 1

var (
	ownableInitArgs = codec.Args(codec.TypeUint256, codec.TypeAddressSlice)

	webAuthnCredentialsType = codec.MustType("tuple[]",
		abi.ArgumentMarshaling{Name: "pubKeyX", Type: "uint256"},
		abi.ArgumentMarshaling{Name: "pubKeyY", Type: "uint256"},
		abi.ArgumentMarshaling{Name: "requireUV", Type: "bool"},
	)
	webAuthnInitArgs = codec.Args(codec.TypeUint256, webAuthnCredentialsType)

	multiFactorEntriesType = codec.MustType("tuple[]",
		abi.ArgumentMarshaling{Name: "packedValidatorAndId", Type: "bytes32"},
		abi.ArgumentMarshaling{Name: "data", Type: "bytes"},
	)
	multiFactorInitArgs = codec.Args(multiFactorEntriesType)

	expiringOwnersType = codec.MustType("tuple[]",
		abi.ArgumentMarshaling{Name: "addr", Type: "address"},
		abi.ArgumentMarshaling{Name: "expiration", Type: "uint48"},
	)
	expiringInitArgs = codec.Args(codec.TypeUint256, expiringOwnersType)
)

type webAuthnCredentialABI struct {
	PubKeyX   *big.Int
	PubKeyY   *big.Int
	RequireUV bool
}

type multiFactorEntryABI struct {
	PackedValidatorAndId [32]byte
	Data                 []byte
}

type expiringOwnerABI struct {
	Addr       common.Address
	Expiration *big.Int
}

// Catalog builds validator modules against an address book.
type Catalog struct {
	book contracts.Deployments
}

// NewCatalog returns a catalog over the given address book.
func NewCatalog(book contracts.Deployments) *Catalog {
	return &Catalog{book: book}
}

// Book exposes the catalog's address book.
func (c *Catalog) Book() contracts.Deployments { return c.book }

// OwnerValidator builds the validator module matching the owner topology:
// ownable for ECDSA sets, WebAuthn for passkeys, multi-factor for nested
// sets.
func (c *Catalog) OwnerValidator(owners types.OwnerSet) (types.Module, error) {
	if err := owners.Validate(); err != nil {
		return types.Module{}, err
	}
	switch owners.Kind {
	case types.OwnerKindEcdsa:
		return c.OwnableValidator(owners.Ecdsa.Threshold, owners.Ecdsa.Addresses())
	case types.OwnerKindPasskey:
		return c.WebAuthnValidator(1, []types.WebAuthnCredential{owners.Passkey.Credential})
	case types.OwnerKindMultiFactor:
		factors := make([]*types.Module, len(owners.MultiFactor.Factors))
		for i, factor := range owners.MultiFactor.Factors {
			if factor == nil {
				continue
			}
			inner, err := c.OwnerValidator(*factor)
			if err != nil {
				return types.Module{}, fmt.Errorf("factor %d: %w", i, err)
			}
			factors[i] = &inner
		}
		return c.MultiFactorValidator(owners.MultiFactor.Threshold, factors)
	default:
		return types.Module{}, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"no validator module for owner set kind "+string(owners.Kind))
	}
}

// OwnableValidator builds the threshold-ECDSA validator. Owners are
// deduplicated by the contract, not here; they are sorted byte-wise, which
// matches lowercase hex ordering.
func (c *Catalog) OwnableValidator(threshold int, owners []common.Address) (types.Module, error) {
	if threshold < 1 || len(owners) == 0 {
		return types.Module{}, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"ownable validator needs at least one owner and a positive threshold")
	}
	sorted := make([]common.Address, len(owners))
	copy(sorted, owners)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	initData, err := codec.Encode(ownableInitArgs, big.NewInt(int64(threshold)), sorted)
	if err != nil {
		return types.Module{}, fmt.Errorf("encode ownable init data: %w", err)
	}
	return validatorModule(c.book.OwnableValidator, initData), nil
}

// WebAuthnValidator builds the passkey validator over P-256 credentials.
func (c *Catalog) WebAuthnValidator(threshold int, credentials []types.WebAuthnCredential) (types.Module, error) {
	if threshold < 1 || len(credentials) == 0 {
		return types.Module{}, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"webauthn validator needs at least one credential and a positive threshold")
	}
	encoded := make([]webAuthnCredentialABI, len(credentials))
	for i, cred := range credentials {
		if err := cred.Validate(); err != nil {
			return types.Module{}, err
		}
		encoded[i] = webAuthnCredentialABI{
			PubKeyX:   cred.PubKeyX,
			PubKeyY:   cred.PubKeyY,
			RequireUV: cred.RequireUV,
		}
	}

	initData, err := codec.Encode(webAuthnInitArgs, big.NewInt(int64(threshold)), encoded)
	if err != nil {
		return types.Module{}, fmt.Errorf("encode webauthn init data: %w", err)
	}
	return validatorModule(c.book.WebAuthnValidator, initData), nil
}

// MultiFactorValidator combines pre-built validator modules behind one
// threshold. The slice index of each factor is its validator slot id; nil
// entries mark unused slots and are skipped, preserving the ids of the
// remaining factors.
func (c *Catalog) MultiFactorValidator(threshold int, factors []*types.Module) (types.Module, error) {
	if threshold < 1 || threshold > 255 {
		return types.Module{}, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"multi-factor threshold must fit one byte")
	}
	entries := make([]multiFactorEntryABI, 0, len(factors))
	for index, factor := range factors {
		if factor == nil {
			continue
		}
		entries = append(entries, multiFactorEntryABI{
			PackedValidatorAndId: PackValidatorAndID(index, factor.Address),
			Data:                 factor.InitData,
		})
	}
	if len(entries) == 0 {
		return types.Module{}, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"multi-factor validator has no factors")
	}

	encoded, err := codec.Encode(multiFactorInitArgs, entries)
	if err != nil {
		return types.Module{}, fmt.Errorf("encode multi-factor entries: %w", err)
	}
	initData := codec.Packed([]byte{byte(threshold)}, encoded)
	return validatorModule(c.book.MultiFactorValidator, initData), nil
}

// ExpiringOwner is an owner whose authority lapses at ExpiresAt. The zero
// time means the authority never expires.
type ExpiringOwner struct {
	Address   common.Address
	ExpiresAt time.Time
}

// ExpiringOwnableValidator builds the threshold validator over owners with
// per-owner expiry. Owners are sorted byte-wise by address.
func (c *Catalog) ExpiringOwnableValidator(threshold int, owners []ExpiringOwner) (types.Module, error) {
	if threshold < 1 || len(owners) == 0 {
		return types.Module{}, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"expiring ownable validator needs at least one owner and a positive threshold")
	}
	sorted := make([]ExpiringOwner, len(owners))
	copy(sorted, owners)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Address[:], sorted[j].Address[:]) < 0
	})

	encoded := make([]expiringOwnerABI, len(sorted))
	for i, owner := range sorted {
		expiration := maxUint48
		if !owner.ExpiresAt.IsZero() {
			expiration = uint64(owner.ExpiresAt.Unix()) & maxUint48
		}
		encoded[i] = expiringOwnerABI{
			Addr:       owner.Address,
			Expiration: new(big.Int).SetUint64(expiration),
		}
	}

	initData, err := codec.Encode(expiringInitArgs, big.NewInt(int64(threshold)), encoded)
	if err != nil {
		return types.Module{}, fmt.Errorf("encode expiring owners: %w", err)
	}
	return validatorModule(c.book.ExpiringOwnableValidator, initData), nil
}

// SocialRecoveryValidator builds the guardian recovery validator. Guardians
// are sorted byte-wise at installation; recovery calls later preserve
// caller order instead.
func (c *Catalog) SocialRecoveryValidator(threshold int, guardians []common.Address) (types.Module, error) {
	if threshold < 1 || len(guardians) == 0 {
		return types.Module{}, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"social recovery needs at least one guardian and a positive threshold")
	}
	sorted := make([]common.Address, len(guardians))
	copy(sorted, guardians)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	initData, err := codec.Encode(ownableInitArgs, big.NewInt(int64(threshold)), sorted)
	if err != nil {
		return types.Module{}, fmt.Errorf("encode social recovery init data: %w", err)
	}
	return validatorModule(c.book.SocialRecoveryValidator, initData), nil
}

// PackValidatorAndID packs the slot index as a 12-byte big-endian integer
// followed by the validator address.
func PackValidatorAndID(index int, validator common.Address) [32]byte {
	var packed [32]byte
	copy(packed[:12], codec.PackedUint64(uint64(index), 12))
	copy(packed[12:], validator.Bytes())
	return packed
}

func validatorModule(address common.Address, initData []byte) types.Module {
	return types.Module{
		Address:  address,
		Kind:     types.ModuleKindValidator,
		InitData: initData,
	}
}
