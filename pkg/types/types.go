package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/polywallet/polywallet/pkg/errors"
)

// ProviderKind identifies a supported smart-account implementation family.
type ProviderKind string

const (
	// ProviderSafe is the Safe proxy account with the 7579 adapter and launchpad.
	ProviderSafe ProviderKind = "safe"
	// ProviderKernel is the ZeroDev Kernel v3 account.
	ProviderKernel ProviderKind = "kernel"
	// ProviderNexus is the Biconomy Nexus account.
	ProviderNexus ProviderKind = "nexus"
	// ProviderStartale is the Startale smart account.
	ProviderStartale ProviderKind = "startale"
	// ProviderSimple7702 is the minimal EIP-7702 delegate account.
	ProviderSimple7702 ProviderKind = "simple7702"
)

// Validate reports whether the provider kind is one of the supported families.
func (p ProviderKind) Validate() error {
	switch p {
	case ProviderSafe, ProviderKernel, ProviderNexus, ProviderStartale, ProviderSimple7702:
		return nil
	default:
		return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"unknown account provider "+string(p))
	}
}

// String returns the wire name of the provider kind.
func (p ProviderKind) String() string { return string(p) }

// Chain describes an EVM chain by its numeric identifier.
type Chain struct {
	ID   uint64
	Name string
}

// BigID returns the chain identifier as a big integer for ABI and
// typed-data use.
func (c Chain) BigID() *big.Int { return new(big.Int).SetUint64(c.ID) }

// Call is a single account execution: a target, an attached value and
// calldata. A nil Value means zero.
type Call struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// CallValue returns the attached value, substituting zero for nil.
func (c Call) CallValue() *big.Int {
	if c.Value == nil {
		return new(big.Int)
	}
	return c.Value
}
