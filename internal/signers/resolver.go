// Package signers resolves owner and signer topologies into the signature
// payloads their validator modules verify.
package signers

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/polywallet/polywallet/internal/codec"
	"github.com/polywallet/polywallet/internal/contracts"
	"github.com/polywallet/polywallet/internal/modules"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

// multiFactorSigArgs lays out the per-slot sub-signatures the multi-factor
// validator verifies: (bytes32 packedValidatorAndId, bytes data)[].
var multiFactorSigArgs = codec.Args(codec.MustType("tuple[]",
	abi.ArgumentMarshaling{Name: "packedValidatorAndId", Type: "bytes32"},
	abi.ArgumentMarshaling{Name: "data", Type: "bytes"},
))

type multiFactorSigABI struct {
	PackedValidatorAndId [32]byte
	Data                 []byte
}

// Resolver turns signer sets into signature bytes. It is bound to a chain so
// passkey signatures can select the P-256 verification route.
type Resolver struct {
	book  contracts.Deployments
	chain types.Chain
}

// NewResolver builds a resolver against the given deployment book and chain.
func NewResolver(book contracts.Deployments, chain types.Chain) *Resolver {
	return &Resolver{book: book, chain: chain}
}

// Convert maps an owner set onto the signer topology that controls it.
// Passkey owners convert without an assertion ceremony; attach one with
// types.PasskeySigner before signing.
func Convert(owners types.OwnerSet) (types.SignerSet, error) {
	if err := owners.Validate(); err != nil {
		return types.SignerSet{}, err
	}
	switch owners.Kind {
	case types.OwnerKindEcdsa:
		return types.EcdsaSigners(owners.Ecdsa.Threshold, owners.Ecdsa.Signers...), nil
	case types.OwnerKindPasskey:
		return types.PasskeySigner(owners.Passkey.Credential, nil), nil
	case types.OwnerKindMultiFactor:
		factors := make([]*types.SignerSet, len(owners.MultiFactor.Factors))
		for i, factor := range owners.MultiFactor.Factors {
			if factor == nil {
				continue
			}
			converted, err := Convert(*factor)
			if err != nil {
				return types.SignerSet{}, err
			}
			factors[i] = &converted
		}
		return types.SignerSet{
			Kind: types.SignerKindMultiFactor,
			MultiFactor: &types.MultiFactorSignerSet{
				Factors:   factors,
				Threshold: owners.MultiFactor.Threshold,
			},
		}, nil
	default:
		return types.SignerSet{}, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"unknown owner set kind "+string(owners.Kind))
	}
}

// Sign produces the signature payload for the digest according to the signer
// topology. Session signatures come back raw; the smart-session wrapping is
// applied by the caller.
func (r *Resolver) Sign(ctx context.Context, set types.SignerSet, hash [32]byte) ([]byte, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	switch set.Kind {
	case types.SignerKindEcdsa:
		return signAll(ctx, set.Ecdsa.Signers, hash)
	case types.SignerKindPasskey:
		return r.signPasskey(ctx, set.Passkey, hash)
	case types.SignerKindMultiFactor:
		return r.signMultiFactor(ctx, set.MultiFactor, hash)
	case types.SignerKindSession:
		converted, err := Convert(set.Session.Session.Owners)
		if err != nil {
			return nil, err
		}
		return r.Sign(ctx, converted, hash)
	case types.SignerKindGuardians:
		return signAll(ctx, set.Guardians.Signers, hash)
	default:
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"unknown signer set kind "+string(set.Kind))
	}
}

// signAll fans out one goroutine per key and concatenates the signatures in
// the listed order.
func signAll(ctx context.Context, keys []types.Signer, hash [32]byte) ([]byte, error) {
	sigs := make([][]byte, len(keys))
	errs := make([]error, len(keys))
	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key types.Signer) {
			defer wg.Done()
			sigs[i], errs[i] = key.SignHash(ctx, hash)
		}(i, key)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("signing with key %s: %w", keys[i].Address().Hex(), err)
		}
	}
	return bytes.Join(sigs, nil), nil
}

func (r *Resolver) signMultiFactor(ctx context.Context, set *types.MultiFactorSignerSet, hash [32]byte) ([]byte, error) {
	entries := make([]multiFactorSigABI, 0, len(set.Factors))
	for index, factor := range set.Factors {
		if factor == nil {
			continue
		}
		validator, err := r.factorValidator(factor.Kind)
		if err != nil {
			return nil, err
		}
		sig, err := r.Sign(ctx, *factor, hash)
		if err != nil {
			return nil, fmt.Errorf("multi-factor slot %d: %w", index, err)
		}
		entries = append(entries, multiFactorSigABI{
			PackedValidatorAndId: modules.PackValidatorAndID(index, validator),
			Data:                 sig,
		})
	}
	return codec.Encode(multiFactorSigArgs, entries)
}

// factorValidator maps a nested factor kind onto the validator module that
// verifies its sub-signature.
func (r *Resolver) factorValidator(kind types.SignerSetKind) (common.Address, error) {
	switch kind {
	case types.SignerKindEcdsa:
		return r.book.OwnableValidator, nil
	case types.SignerKindPasskey:
		return r.book.WebAuthnValidator, nil
	default:
		return common.Address{}, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"multi-factor signer sets nest only ecdsa or passkey factors")
	}
}
