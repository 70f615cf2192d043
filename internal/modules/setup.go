package modules

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polywallet/polywallet/pkg/types"
)

// Setup is the complete module configuration an account boots with.
type Setup struct {
	// Validators always start with the owner validator; extra validators
	// keep the order they were supplied in. Providers that bootstrap spare
	// validators through a generic init-config array process them in
	// exactly this order.
	Validators []types.Module
	Executors  []types.Module
	Fallbacks  []types.Module
	Hooks      []types.Module
	Registry   RegistryConfig
}

// RegistryConfig points the account at the module registry and the
// attesters it trusts.
type RegistryConfig struct {
	Address   common.Address
	Attesters []common.Address
	Threshold int
}

// RootValidator returns the owner validator the account boots with.
func (s Setup) RootValidator() types.Module {
	return s.Validators[0]
}

// DefaultSetup derives the boot module set for a config: the owner
// validator first, then any extra validators (sessions, recovery) in the
// order given. The intent executor is installed so cross-chain settlement
// works without a follow-up transaction.
func (c *Catalog) DefaultSetup(cfg types.AccountConfig, extraValidators ...types.Module) (Setup, error) {
	owner, err := c.OwnerValidator(cfg.Owners)
	if err != nil {
		return Setup{}, fmt.Errorf("owner validator: %w", err)
	}

	validators := make([]types.Module, 0, 1+len(extraValidators))
	validators = append(validators, owner)
	for _, extra := range extraValidators {
		if extra.Kind != types.ModuleKindValidator {
			return Setup{}, fmt.Errorf("extra module %s is not a validator", extra.Address)
		}
		validators = append(validators, extra)
	}

	var executors []types.Module
	if c.book.IntentExecutor != (common.Address{}) {
		executors = append(executors, types.Module{
			Address: c.book.IntentExecutor,
			Kind:    types.ModuleKindExecutor,
		})
	}

	return Setup{
		Validators: validators,
		Executors:  executors,
		Registry: RegistryConfig{
			Address:   c.book.Registry,
			Attesters: c.book.Attesters,
			Threshold: c.book.AttesterThreshold,
		},
	}, nil
}
