package account

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/polywallet/polywallet/internal/codec"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

var (
	isModuleInstalledSelector = codec.Selector("isModuleInstalled(uint256,address,bytes)")
	isModuleInstalledArgs     = codec.Args(codec.TypeUint256, codec.TypeAddress, codec.TypeBytes)
)

// ModuleInstallCalls builds the ordered calls installing a module on the
// config's account: one call on most providers, install plus access grant
// on providers that gate module entry points.
func (f *Facade) ModuleInstallCalls(cfg types.AccountConfig, module types.Module) ([]types.Call, error) {
	adapter, err := f.adapter(cfg)
	if err != nil {
		return nil, err
	}
	return adapter.InstallCalls(cfg, module)
}

// ModuleUninstallCalls builds the calls removing a module. With a node
// attached the module's presence is checked first, so a revert on a module
// that was never installed surfaces as a typed error instead.
func (f *Facade) ModuleUninstallCalls(ctx context.Context, cfg types.AccountConfig, module types.Module) ([]types.Call, error) {
	adapter, err := f.adapter(cfg)
	if err != nil {
		return nil, err
	}
	if f.node != nil {
		address, aerr := adapter.Address(cfg)
		if aerr != nil {
			return nil, aerr
		}
		installed, ierr := f.moduleInstalled(ctx, address, module)
		if ierr != nil {
			return nil, ierr
		}
		if !installed {
			return nil, apperrors.Capability(apperrors.CodeModuleNotInstalled,
				"module is not installed on the account").WithProvider(string(cfg.Provider))
		}
	}
	return adapter.UninstallCalls(cfg, module)
}

// EnableSessionCalls builds the calls enabling sessions on the account.
// When the session validator is already installed this is a single
// enableSessions call; otherwise the validator is installed with the
// sessions in its init data. Without a node the validator is assumed
// installed.
func (f *Facade) EnableSessionCalls(ctx context.Context, cfg types.AccountConfig, sessionList ...types.Session) ([]types.Call, error) {
	adapter, err := f.adapter(cfg)
	if err != nil {
		return nil, err
	}
	if !adapter.SupportsModules() {
		return nil, apperrors.UnsupportedForProvider(string(cfg.Provider), "smart sessions")
	}
	if len(sessionList) == 0 {
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration, "at least one session is required")
	}

	module, err := f.sessions.SessionValidatorModule(sessionList...)
	if err != nil {
		return nil, err
	}

	installed := true
	if f.node != nil {
		address, aerr := adapter.Address(cfg)
		if aerr != nil {
			return nil, aerr
		}
		installed, err = f.moduleInstalled(ctx, address, module)
		if err != nil {
			return nil, err
		}
	}
	if !installed {
		return adapter.InstallCalls(cfg, module)
	}

	call, err := f.sessions.EnableSessionsCall(sessionList...)
	if err != nil {
		return nil, err
	}
	return []types.Call{call}, nil
}

// moduleInstalled asks the account's ERC-7579 introspection whether the
// module is installed.
func (f *Facade) moduleInstalled(ctx context.Context, account common.Address, module types.Module) (bool, error) {
	args, err := codec.Encode(isModuleInstalledArgs,
		new(big.Int).SetUint64(uint64(module.Kind)), module.Address, []byte{})
	if err != nil {
		return false, err
	}
	data := codec.Packed(isModuleInstalledSelector[:], args)
	out, err := f.node.CallContract(ctx, ethereum.CallMsg{To: &account, Data: data})
	if err != nil {
		return false, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to query installed modules", err)
	}
	return len(out) == 32 && out[31] == 1, nil
}
