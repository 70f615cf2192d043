// Package providers adapts the uniform account contract onto the supported
// smart-account implementations. Each adapter produces the exact calldata
// its target contracts expect; when supplied data matches no known schema
// the adapter fails instead of guessing.
package providers

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polywallet/polywallet/internal/contracts"
	"github.com/polywallet/polywallet/internal/modules"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

// Adapter is the per-provider contract: deterministic addressing, deploy
// calldata, module management, signature wrapping and the nonce-key layout
// of one account implementation.
type Adapter interface {
	// Kind names the provider.
	Kind() types.ProviderKind

	// DeployArgs builds the deployment description for the config. Factory
	// providers fill Factory/FactoryData; delegation-only providers fill
	// Implementation/InitCall.
	DeployArgs(cfg types.AccountConfig) (types.DeployArgs, error)

	// Address derives the deterministic account address for the config.
	Address(cfg types.AccountConfig) (common.Address, error)

	// InstallCalls encodes the ordered calls that install the module on the
	// config's account.
	InstallCalls(cfg types.AccountConfig, module types.Module) ([]types.Call, error)

	// UninstallCalls encodes the ordered calls that remove the module.
	UninstallCalls(cfg types.AccountConfig, module types.Module) ([]types.Call, error)

	// PackSignature wraps a raw signature the way the account contract
	// routes it to the target validator.
	PackSignature(sig []byte, validator types.ValidatorConfig) ([]byte, error)

	// SignDigest maps a digest through the provider's own signing domain
	// where one applies; most providers sign the digest as is.
	SignDigest(cfg types.AccountConfig, hash [32]byte, validator types.ValidatorConfig) ([32]byte, error)

	// NonceKey lays out the 192-bit entry-point nonce key that selects the
	// validator, with a caller-chosen parallel lane.
	NonceKey(cfg types.AccountConfig, validator common.Address, localKey uint64) (*big.Int, error)

	// EncodeCalls encodes calls into the account's execution calldata.
	EncodeCalls(calls []types.Call) ([]byte, error)

	// SupportsDelegation reports whether the account can live behind an
	// EIP-7702 delegation.
	SupportsDelegation() bool

	// SupportsModules reports whether the account has a module surface for
	// validators, executors and hooks.
	SupportsModules() bool
}

// ForKind returns the adapter for a provider kind. The switch is exhaustive
// over the closed provider set; a config never falls through to a different
// provider.
func ForKind(kind types.ProviderKind, book contracts.Deployments, chain types.Chain) (Adapter, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	catalog := modules.NewCatalog(book)
	switch kind {
	case types.ProviderSafe:
		return &safeAdapter{book: book, chain: chain, catalog: catalog}, nil
	case types.ProviderKernel:
		return &kernelAdapter{book: book, catalog: catalog}, nil
	case types.ProviderNexus:
		return &nexusAdapter{book: book, catalog: catalog}, nil
	case types.ProviderStartale:
		return &startaleAdapter{book: book, catalog: catalog}, nil
	case types.ProviderSimple7702:
		return &simple7702Adapter{book: book}, nil
	default:
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"no adapter for provider "+kind.String())
	}
}

// localKeyFits reports whether the caller-chosen lane fits the provider's
// local-key field. Nonce keys are 24 bytes, the high 192 bits of the
// entry-point nonce.
func localKeyFits(localKey uint64, width int) bool {
	if width >= 8 {
		return true
	}
	return localKey < uint64(1)<<(8*width)
}

func localKeyOverflow(provider types.ProviderKind, width int) error {
	return apperrors.ConfigurationDetail(apperrors.CodeUnsupportedConfiguration,
		"local nonce key does not fit the provider layout",
		provider.String()+" reserves "+strconv.Itoa(width)+" bytes for the local key").
		WithProvider(provider.String())
}
