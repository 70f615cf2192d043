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

var startaleFactoryABI = codec.MustParseABI(`[{
	"type": "function",
	"name": "createAccount",
	"inputs": [
		{"name": "initData", "type": "bytes"},
		{"name": "salt", "type": "bytes32"}
	],
	"outputs": [{"name": "", "type": "address"}],
	"stateMutability": "payable"
}]`)

var startaleBootstrapABI = codec.MustParseABI(`[{
	"type": "function",
	"name": "initAccount",
	"inputs": [
		{"name": "validators", "type": "tuple[]", "components": [
			{"name": "module", "type": "address"}, {"name": "data", "type": "bytes"}]},
		{"name": "executors", "type": "tuple[]", "components": [
			{"name": "module", "type": "address"}, {"name": "data", "type": "bytes"}]},
		{"name": "hook", "type": "tuple", "components": [
			{"name": "module", "type": "address"}, {"name": "data", "type": "bytes"}]},
		{"name": "fallbacks", "type": "tuple[]", "components": [
			{"name": "module", "type": "address"}, {"name": "data", "type": "bytes"}]},
		{"name": "registry", "type": "address"}
	],
	"outputs": []
}]`)

var startaleAccountABI = codec.MustParseABI(`[{
	"type": "function",
	"name": "initializeAccount",
	"inputs": [{"name": "initData", "type": "bytes"}],
	"outputs": []
}]`)

// startaleAdapter drives Startale accounts. Structurally a sibling of
// nexus with its own bootstrap ABI and an always-explicit signature prefix.
type startaleAdapter struct {
	book    contracts.Deployments
	catalog *modules.Catalog
}

func (a *startaleAdapter) Kind() types.ProviderKind { return types.ProviderStartale }

func (a *startaleAdapter) SupportsDelegation() bool { return true }

func (a *startaleAdapter) SupportsModules() bool { return true }

func (a *startaleAdapter) factoryInit(cfg types.AccountConfig) ([]byte, [32]byte, error) {
	if len(cfg.InitData) > 0 {
		method, values, derr := codec.DecodeCall(startaleFactoryABI, cfg.InitData)
		if derr != nil {
			return nil, [32]byte{}, apperrors.UnsupportedConfiguration(types.ProviderStartale.String(), derr.Error())
		}
		if method.Name != "createAccount" {
			return nil, [32]byte{}, apperrors.UnsupportedConfiguration(types.ProviderStartale.String(),
				"factory calldata is not a createAccount call")
		}
		return values[0].([]byte), values[1].([32]byte), nil
	}

	setup, err := a.catalog.DefaultSetup(cfg, cfg.ExtraValidators...)
	if err != nil {
		return nil, [32]byte{}, err
	}
	bootstrapCall, err := startaleBootstrapABI.Pack("initAccount",
		bootstrapConfigs(setup.Validators),
		bootstrapConfigs(setup.Executors),
		bootstrapConfigABI{Data: []byte{}},
		bootstrapConfigs(setup.Fallbacks),
		setup.Registry.Address,
	)
	if err != nil {
		return nil, [32]byte{}, err
	}
	initData, err := codec.Encode(factoryInitArgs, a.book.Startale.Bootstrap, bootstrapCall)
	if err != nil {
		return nil, [32]byte{}, err
	}
	return initData, cfg.Salt, nil
}

func (a *startaleAdapter) DeployArgs(cfg types.AccountConfig) (types.DeployArgs, error) {
	if err := checkConfig(cfg, types.ProviderStartale); err != nil {
		return types.DeployArgs{}, err
	}
	initData, salt, err := a.factoryInit(cfg)
	if err != nil {
		return types.DeployArgs{}, err
	}
	factoryData, err := startaleFactoryABI.Pack("createAccount", initData, salt)
	if err != nil {
		return types.DeployArgs{}, err
	}
	initCall, err := startaleAccountABI.Pack("initializeAccount", initData)
	if err != nil {
		return types.DeployArgs{}, err
	}
	return types.DeployArgs{
		Factory:        a.book.Startale.Factory,
		FactoryData:    factoryData,
		Salt:           salt,
		Implementation: a.book.Startale.Implementation,
		InitCall:       initCall,
		InitCodeHash:   codec.ERC1967InitCodeHash(a.book.Startale.Implementation),
	}, nil
}

func (a *startaleAdapter) Address(cfg types.AccountConfig) (common.Address, error) {
	if err := checkConfig(cfg, types.ProviderStartale); err != nil {
		return common.Address{}, err
	}
	initData, salt, err := a.factoryInit(cfg)
	if err != nil {
		return common.Address{}, err
	}
	actualSalt := codec.Keccak(initData, salt[:])
	initCodeHash := codec.ERC1967InitCodeHash(a.book.Startale.Implementation)
	return crypto.CreateAddress2(a.book.Startale.Factory, actualSalt, initCodeHash.Bytes()), nil
}

func (a *startaleAdapter) InstallCalls(cfg types.AccountConfig, module types.Module) ([]types.Call, error) {
	account, err := a.Address(cfg)
	if err != nil {
		return nil, err
	}
	call, err := installModuleCall(account, module, module.InitData)
	if err != nil {
		return nil, err
	}
	return []types.Call{call}, nil
}

func (a *startaleAdapter) UninstallCalls(cfg types.AccountConfig, module types.Module) ([]types.Call, error) {
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

// PackSignature always prefixes the explicit validator address; startale
// accounts have no zero-address shorthand for the default validator.
func (a *startaleAdapter) PackSignature(sig []byte, validator types.ValidatorConfig) ([]byte, error) {
	return codec.Packed(validator.Address.Bytes(), sig), nil
}

func (a *startaleAdapter) SignDigest(_ types.AccountConfig, hash [32]byte, _ types.ValidatorConfig) ([32]byte, error) {
	return hash, nil
}

func (a *startaleAdapter) NonceKey(cfg types.AccountConfig, validator common.Address, localKey uint64) (*big.Int, error) {
	if err := checkConfig(cfg, types.ProviderStartale); err != nil {
		return nil, err
	}
	if !localKeyFits(localKey, 3) {
		return nil, localKeyOverflow(types.ProviderStartale, 3)
	}
	key := codec.Packed(
		codec.PackedUint64(localKey, 3),
		[]byte{nexusValidationMode},
		validator.Bytes(),
	)
	return new(big.Int).SetBytes(key), nil
}

func (a *startaleAdapter) EncodeCalls(calls []types.Call) ([]byte, error) {
	return encode7579Calls(calls)
}
