package types

import (
	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/polywallet/polywallet/pkg/errors"
)

// AccountConfig is the complete description of a smart account. Two equal
// configs always derive the same address, deploy arguments and signature
// layout; nothing about an account is stored, it is re-derived from the
// config on every call.
type AccountConfig struct {
	// Provider selects the account implementation family.
	Provider ProviderKind
	// Owners is the initial owner topology installed at deployment.
	Owners OwnerSet
	// Delegate is the EOA whose code is delegated via EIP-7702. Required
	// for simple7702 accounts, optional for providers that support
	// delegated deployment, nil otherwise.
	Delegate Signer
	// Deployer funds direct deployment transactions. Nil routes
	// deployments through a bundler instead.
	Deployer Signer
	// InitData overrides the derived factory calldata with an externally
	// prepared one. It is decoded and cross-checked against the provider's
	// factory ABI before use.
	InitData []byte
	// Salt feeds counterfactual address derivation. The zero salt is valid.
	Salt [32]byte
	// ExtraValidators are spare validator modules bootstrapped alongside the
	// owner validator, in order. Changing them changes the derived address
	// on providers whose init data feeds the salt.
	ExtraValidators []Module
}

// Validate fails eagerly on structurally invalid configs so that signing
// and submission never observe one.
func (c AccountConfig) Validate() error {
	if err := c.Provider.Validate(); err != nil {
		return err
	}
	if err := c.Owners.Validate(); err != nil {
		return err
	}
	if c.Provider == ProviderSimple7702 && len(c.InitData) > 0 {
		return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"factory call data supplied for a factoryless provider").WithProvider(string(c.Provider))
	}
	if c.Provider == ProviderSimple7702 && len(c.ExtraValidators) > 0 {
		return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"spare validators supplied for a provider without a module system").WithProvider(string(c.Provider))
	}
	return nil
}

// DelegateAddress returns the delegate EOA address, or the zero address
// when no delegate key is configured.
func (c AccountConfig) DelegateAddress() common.Address {
	if c.Delegate == nil {
		return common.Address{}
	}
	return c.Delegate.Address()
}

// DeployArgs carries everything needed to create an account on chain.
// Fields are populated per deployment flavor: factory deployments set
// Factory, FactoryData and Salt; delegated deployments set Implementation
// and InitCall; InitCodeHash feeds counterfactual address derivation.
// Absent fields are zero.
type DeployArgs struct {
	Factory        common.Address
	FactoryData    []byte
	Salt           [32]byte
	Implementation common.Address
	InitCall       []byte
	InitCodeHash   common.Hash
}

// HasFactory reports whether the args describe a factory deployment.
func (d DeployArgs) HasFactory() bool {
	return d.Factory != (common.Address{})
}

// HasImplementation reports whether the args describe a delegated
// deployment.
func (d DeployArgs) HasImplementation() bool {
	return d.Implementation != (common.Address{})
}
