package providers

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/polywallet/polywallet/internal/codec"
	"github.com/polywallet/polywallet/internal/contracts"
	"github.com/polywallet/polywallet/internal/modules"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

var kernelFactoryABI = codec.MustParseABI(`[{
	"type": "function",
	"name": "createAccount",
	"inputs": [
		{"name": "data", "type": "bytes"},
		{"name": "salt", "type": "bytes32"}
	],
	"outputs": [{"name": "", "type": "address"}],
	"stateMutability": "payable"
}]`)

var kernelAccountABI = codec.MustParseABI(`[{
	"type": "function",
	"name": "initialize",
	"inputs": [
		{"name": "_rootValidator", "type": "bytes21"},
		{"name": "hook", "type": "address"},
		{"name": "validatorData", "type": "bytes"},
		{"name": "hookData", "type": "bytes"},
		{"name": "initConfig", "type": "bytes[]"}
	],
	"outputs": []
}, {
	"type": "function",
	"name": "grantAccess",
	"inputs": [
		{"name": "vId", "type": "bytes21"},
		{"name": "selector", "type": "bytes4"},
		{"name": "allowed", "type": "bool"}
	],
	"outputs": []
}]`)

// Kernel validation identifiers: a mode byte, a validation-type byte, then
// type-specific payload. Validator-backed validation ids are the type byte
// followed by the validator address.
const (
	kernelValidationModeDefault   byte = 0x00
	kernelValidationTypeRoot      byte = 0x00
	kernelValidationTypeValidator byte = 0x01
)

func kernelValidatorID(validator common.Address) [21]byte {
	var id [21]byte
	id[0] = kernelValidationTypeValidator
	copy(id[1:], validator.Bytes())
	return id
}

// kernelInstallData wraps module init data in kernel's install layout: the
// hook address (zero for none, normalized on chain) followed by the module
// and hook payloads.
func kernelInstallData(initData []byte) ([]byte, error) {
	inner, err := codec.Encode(codec.Args(codec.TypeBytes, codec.TypeBytes), initData, []byte{})
	if err != nil {
		return nil, err
	}
	return codec.Packed(make([]byte, 20), inner), nil
}

// kernelAdapter drives Kernel v3 accounts behind the ERC-1967 factory.
type kernelAdapter struct {
	book    contracts.Deployments
	catalog *modules.Catalog
}

func (a *kernelAdapter) Kind() types.ProviderKind { return types.ProviderKernel }

func (a *kernelAdapter) SupportsDelegation() bool { return true }

func (a *kernelAdapter) SupportsModules() bool { return true }

// initializeCall resolves the account initialization calldata and salt,
// either decoded from externally supplied factory calldata or derived from
// the config. Spare validators and executors flow through initConfig in
// catalog order.
func (a *kernelAdapter) initializeCall(cfg types.AccountConfig) ([]byte, [32]byte, error) {
	if len(cfg.InitData) > 0 {
		method, values, derr := codec.DecodeCall(kernelFactoryABI, cfg.InitData)
		if derr != nil {
			return nil, [32]byte{}, apperrors.UnsupportedConfiguration(types.ProviderKernel.String(), derr.Error())
		}
		if method.Name != "createAccount" {
			return nil, [32]byte{}, apperrors.UnsupportedConfiguration(types.ProviderKernel.String(),
				"factory calldata is not a createAccount call")
		}
		data := values[0].([]byte)
		if inner, _, ierr := codec.DecodeCall(kernelAccountABI, data); ierr != nil || inner.Name != "initialize" {
			return nil, [32]byte{}, apperrors.UnsupportedConfiguration(types.ProviderKernel.String(),
				"factory calldata does not carry an initialize call")
		}
		return data, values[1].([32]byte), nil
	}

	setup, err := a.catalog.DefaultSetup(cfg, cfg.ExtraValidators...)
	if err != nil {
		return nil, [32]byte{}, err
	}
	root := setup.RootValidator()

	var initConfig [][]byte
	for _, extra := range setup.Validators[1:] {
		wrapped, err := kernelInstallData(extra.InitData)
		if err != nil {
			return nil, [32]byte{}, err
		}
		install, err := installModuleData(extra, wrapped)
		if err != nil {
			return nil, [32]byte{}, err
		}
		grant, err := kernelAccountABI.Pack("grantAccess",
			kernelValidatorID(extra.Address), executeSelector, true)
		if err != nil {
			return nil, [32]byte{}, err
		}
		initConfig = append(initConfig, install, grant)
	}
	for _, executor := range setup.Executors {
		wrapped, err := kernelInstallData(executor.InitData)
		if err != nil {
			return nil, [32]byte{}, err
		}
		install, err := installModuleData(executor, wrapped)
		if err != nil {
			return nil, [32]byte{}, err
		}
		initConfig = append(initConfig, install)
	}
	if initConfig == nil {
		initConfig = [][]byte{}
	}

	initCall, err := kernelAccountABI.Pack("initialize",
		kernelValidatorID(root.Address),
		common.Address{},
		root.InitData,
		[]byte{},
		initConfig,
	)
	if err != nil {
		return nil, [32]byte{}, err
	}
	return initCall, cfg.Salt, nil
}

func (a *kernelAdapter) DeployArgs(cfg types.AccountConfig) (types.DeployArgs, error) {
	if err := checkConfig(cfg, types.ProviderKernel); err != nil {
		return types.DeployArgs{}, err
	}
	initCall, salt, err := a.initializeCall(cfg)
	if err != nil {
		return types.DeployArgs{}, err
	}
	factoryData, err := kernelFactoryABI.Pack("createAccount", initCall, salt)
	if err != nil {
		return types.DeployArgs{}, err
	}
	return types.DeployArgs{
		Factory:        a.book.Kernel.Factory,
		FactoryData:    factoryData,
		Salt:           salt,
		Implementation: a.book.Kernel.Implementation,
		InitCall:       initCall,
		InitCodeHash:   codec.ERC1967InitCodeHash(a.book.Kernel.Implementation),
	}, nil
}

func (a *kernelAdapter) Address(cfg types.AccountConfig) (common.Address, error) {
	if err := checkConfig(cfg, types.ProviderKernel); err != nil {
		return common.Address{}, err
	}
	initCall, salt, err := a.initializeCall(cfg)
	if err != nil {
		return common.Address{}, err
	}
	// The factory salts CREATE2 with keccak(initData || salt) over the
	// minimal ERC-1967 proxy.
	actualSalt := codec.Keccak(initCall, salt[:])
	initCodeHash := codec.ERC1967InitCodeHash(a.book.Kernel.Implementation)
	return crypto.CreateAddress2(a.book.Kernel.Factory, actualSalt, initCodeHash.Bytes()), nil
}

// InstallCalls emits two calls for validators: the install itself and the
// access grant letting the validator reach the execute selector. Other
// module kinds install with a single call.
func (a *kernelAdapter) InstallCalls(cfg types.AccountConfig, module types.Module) ([]types.Call, error) {
	account, err := a.Address(cfg)
	if err != nil {
		return nil, err
	}
	wrapped, err := kernelInstallData(module.InitData)
	if err != nil {
		return nil, err
	}
	install, err := installModuleCall(account, module, wrapped)
	if err != nil {
		return nil, err
	}
	if module.Kind != types.ModuleKindValidator {
		return []types.Call{install}, nil
	}

	grant, err := kernelAccountABI.Pack("grantAccess",
		kernelValidatorID(module.Address), executeSelector, true)
	if err != nil {
		return nil, err
	}
	return []types.Call{install, {To: account, Data: grant}}, nil
}

func (a *kernelAdapter) UninstallCalls(cfg types.AccountConfig, module types.Module) ([]types.Call, error) {
	account, err := a.Address(cfg)
	if err != nil {
		return nil, err
	}
	call, err := uninstallModuleCall(account, module, module.DeInitData)
	if err != nil {
		return nil, err
	}
	return []types.Call{call}, nil
}

// PackSignature prefixes the validation route: a lone root byte for the
// root validator, the validator type byte plus address otherwise.
func (a *kernelAdapter) PackSignature(sig []byte, validator types.ValidatorConfig) ([]byte, error) {
	if validator.IsRoot {
		return codec.Packed([]byte{kernelValidationTypeRoot}, sig), nil
	}
	return codec.Packed([]byte{kernelValidationTypeValidator}, validator.Address.Bytes(), sig), nil
}

func (a *kernelAdapter) SignDigest(_ types.AccountConfig, hash [32]byte, _ types.ValidatorConfig) ([32]byte, error) {
	return hash, nil
}

// NonceKey lays out mode || validation type || validator || 2-byte lane.
// The root validator keeps its address in the key; the type byte is what
// selects root validation.
func (a *kernelAdapter) NonceKey(cfg types.AccountConfig, validator common.Address, localKey uint64) (*big.Int, error) {
	if err := checkConfig(cfg, types.ProviderKernel); err != nil {
		return nil, err
	}
	if !localKeyFits(localKey, 2) {
		return nil, localKeyOverflow(types.ProviderKernel, 2)
	}
	vType := kernelValidationTypeValidator
	root, err := a.catalog.OwnerValidator(cfg.Owners)
	if err != nil {
		return nil, err
	}
	if validator == root.Address {
		vType = kernelValidationTypeRoot
	}
	key := codec.Packed(
		[]byte{kernelValidationModeDefault, vType},
		validator.Bytes(),
		codec.PackedUint64(localKey, 2),
	)
	return new(big.Int).SetBytes(key), nil
}

func (a *kernelAdapter) EncodeCalls(calls []types.Call) ([]byte, error) {
	return encode7579Calls(calls)
}
