package account

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polywallet/polywallet/internal/providers"
	"github.com/polywallet/polywallet/internal/signers"
	"github.com/polywallet/polywallet/pkg/types"
)

// SmartAccount is a bound handle over one configured account: its address,
// entry-point nonce lanes, call encoding and signing, with the provider
// differences already resolved.
type SmartAccount struct {
	facade    *Facade
	adapter   providers.Adapter
	cfg       types.AccountConfig
	address   common.Address
	validator types.ValidatorConfig
}

// SmartAccount binds a handle for the config. Construction is pure; chain
// access happens only on the handle's nonce reads.
func (f *Facade) SmartAccount(cfg types.AccountConfig) (*SmartAccount, error) {
	adapter, err := f.adapter(cfg)
	if err != nil {
		return nil, err
	}
	address, err := adapter.Address(cfg)
	if err != nil {
		return nil, err
	}
	validator, err := f.rootValidator(cfg)
	if err != nil {
		return nil, err
	}
	return &SmartAccount{
		facade:    f,
		adapter:   adapter,
		cfg:       cfg,
		address:   address,
		validator: validator,
	}, nil
}

// Address returns the account address.
func (a *SmartAccount) Address() common.Address {
	return a.address
}

// Nonce reads the account's next entry-point nonce on the root validator's
// key. localKey selects a parallel lane; zero is the default lane.
func (a *SmartAccount) Nonce(ctx context.Context, localKey uint64) (*big.Int, error) {
	if a.facade.node == nil {
		return nil, errNodeRequired()
	}
	key, err := a.adapter.NonceKey(a.cfg, a.validator.Address, localKey)
	if err != nil {
		return nil, err
	}
	return a.facade.node.EntryPointNonce(ctx, a.facade.book.EntryPoint, a.address, key)
}

// EncodeCalls encodes calls into the account's execution calldata, using
// the provider's single-call form when only one call is given.
func (a *SmartAccount) EncodeCalls(calls []types.Call) ([]byte, error) {
	return a.adapter.EncodeCalls(calls)
}

// SigningDigest maps a digest through the provider's signing domain. For
// most providers this is the digest itself; providers with an EIP-1271
// root domain rehash it. Sign applies the same mapping, so callers only
// need this to verify signatures out of band.
func (a *SmartAccount) SigningDigest(hash [32]byte) ([32]byte, error) {
	return a.adapter.SignDigest(a.cfg, hash, a.validator)
}

// Sign signs a digest for the account with its configured owners and wraps
// the result in the provider's signature envelope.
func (a *SmartAccount) Sign(ctx context.Context, hash [32]byte) ([]byte, error) {
	prepared, err := a.adapter.SignDigest(a.cfg, hash, a.validator)
	if err != nil {
		return nil, err
	}
	set, err := signers.Convert(a.cfg.Owners)
	if err != nil {
		return nil, err
	}
	raw, err := a.facade.resolver.Sign(ctx, set, prepared)
	if err != nil {
		return nil, err
	}
	a.facade.metrics.Signatures.WithLabelValues(string(a.cfg.Provider), string(set.Kind)).Inc()
	return a.adapter.PackSignature(raw, a.validator)
}

// SignWith signs a digest with an explicit signer topology instead of the
// configured owners, for session keys and guardian sets acting on the
// account. The packed envelope still targets the given validator.
func (a *SmartAccount) SignWith(ctx context.Context, set types.SignerSet, validator types.ValidatorConfig, hash [32]byte) ([]byte, error) {
	prepared, err := a.adapter.SignDigest(a.cfg, hash, validator)
	if err != nil {
		return nil, err
	}
	raw, err := a.facade.resolver.Sign(ctx, set, prepared)
	if err != nil {
		return nil, err
	}
	a.facade.metrics.Signatures.WithLabelValues(string(a.cfg.Provider), string(set.Kind)).Inc()
	return a.adapter.PackSignature(raw, validator)
}
