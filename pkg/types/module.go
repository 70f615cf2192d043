package types

import (
	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/polywallet/polywallet/pkg/errors"
)

// ModuleKind is an ERC-7579 module type identifier.
type ModuleKind uint8

const (
	// ModuleKindValidator modules approve user operations and signatures.
	ModuleKindValidator ModuleKind = 1
	// ModuleKindExecutor modules execute on behalf of the account.
	ModuleKindExecutor ModuleKind = 2
	// ModuleKindFallback modules extend the account's function surface.
	ModuleKindFallback ModuleKind = 3
	// ModuleKindHook modules run before and after executions.
	ModuleKindHook ModuleKind = 4
)

// Validate reports whether the module kind is a known ERC-7579 type id.
func (k ModuleKind) Validate() error {
	if k < ModuleKindValidator || k > ModuleKindHook {
		return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"unknown module kind")
	}
	return nil
}

// Module describes an ERC-7579 module installation target.
type Module struct {
	Address common.Address
	Kind    ModuleKind
	// InitData is passed to onInstall.
	InitData []byte
	// DeInitData is passed to onUninstall.
	DeInitData []byte
	// AdditionalContext carries provider-specific install context, such as
	// the fallback selector and call type for fallback modules.
	AdditionalContext []byte
}

// ValidatorConfig selects the validator a signature is produced for and
// whether it is the account's root validator.
type ValidatorConfig struct {
	Address common.Address
	IsRoot  bool
}

// RootValidator marks a validator as the account's root validator.
func RootValidator(addr common.Address) ValidatorConfig {
	return ValidatorConfig{Address: addr, IsRoot: true}
}
