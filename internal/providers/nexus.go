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

var nexusFactoryABI = codec.MustParseABI(`[{
	"type": "function",
	"name": "createAccount",
	"inputs": [
		{"name": "initData", "type": "bytes"},
		{"name": "salt", "type": "bytes32"}
	],
	"outputs": [{"name": "", "type": "address"}],
	"stateMutability": "payable"
}]`)

var nexusBootstrapABI = codec.MustParseABI(`[{
	"type": "function",
	"name": "initNexus",
	"inputs": [
		{"name": "validators", "type": "tuple[]", "components": [
			{"name": "module", "type": "address"}, {"name": "data", "type": "bytes"}]},
		{"name": "executors", "type": "tuple[]", "components": [
			{"name": "module", "type": "address"}, {"name": "data", "type": "bytes"}]},
		{"name": "hook", "type": "tuple", "components": [
			{"name": "module", "type": "address"}, {"name": "data", "type": "bytes"}]},
		{"name": "fallbacks", "type": "tuple[]", "components": [
			{"name": "module", "type": "address"}, {"name": "data", "type": "bytes"}]},
		{"name": "registry", "type": "address"},
		{"name": "attesters", "type": "address[]"},
		{"name": "threshold", "type": "uint8"}
	],
	"outputs": []
}]`)

var nexusAccountABI = codec.MustParseABI(`[{
	"type": "function",
	"name": "initializeAccount",
	"inputs": [{"name": "initData", "type": "bytes"}],
	"outputs": []
}]`)

var factoryInitArgs = codec.Args(codec.TypeAddress, codec.TypeBytes)

// nexusValidationMode is the nonce-key mode byte selecting plain validation.
const nexusValidationMode byte = 0x00

// nexusAdapter drives Nexus accounts bootstrapped through initNexus.
type nexusAdapter struct {
	book    contracts.Deployments
	catalog *modules.Catalog
}

func (a *nexusAdapter) Kind() types.ProviderKind { return types.ProviderNexus }

func (a *nexusAdapter) SupportsDelegation() bool { return true }

func (a *nexusAdapter) SupportsModules() bool { return true }

// factoryInit resolves the factory init payload and salt: abi.encode of the
// bootstrap address and its initNexus calldata, or the decoded externally
// supplied factory call.
func (a *nexusAdapter) factoryInit(cfg types.AccountConfig) ([]byte, [32]byte, error) {
	if len(cfg.InitData) > 0 {
		method, values, derr := codec.DecodeCall(nexusFactoryABI, cfg.InitData)
		if derr != nil {
			return nil, [32]byte{}, apperrors.UnsupportedConfiguration(types.ProviderNexus.String(), derr.Error())
		}
		if method.Name != "createAccount" {
			return nil, [32]byte{}, apperrors.UnsupportedConfiguration(types.ProviderNexus.String(),
				"factory calldata is not a createAccount call")
		}
		return values[0].([]byte), values[1].([32]byte), nil
	}

	setup, err := a.catalog.DefaultSetup(cfg, cfg.ExtraValidators...)
	if err != nil {
		return nil, [32]byte{}, err
	}
	bootstrapCall, err := nexusBootstrapABI.Pack("initNexus",
		bootstrapConfigs(setup.Validators),
		bootstrapConfigs(setup.Executors),
		bootstrapConfigABI{Data: []byte{}},
		bootstrapConfigs(setup.Fallbacks),
		setup.Registry.Address,
		setup.Registry.Attesters,
		uint8(setup.Registry.Threshold),
	)
	if err != nil {
		return nil, [32]byte{}, err
	}
	initData, err := codec.Encode(factoryInitArgs, a.book.Nexus.Bootstrap, bootstrapCall)
	if err != nil {
		return nil, [32]byte{}, err
	}
	return initData, cfg.Salt, nil
}

func (a *nexusAdapter) DeployArgs(cfg types.AccountConfig) (types.DeployArgs, error) {
	if err := checkConfig(cfg, types.ProviderNexus); err != nil {
		return types.DeployArgs{}, err
	}
	initData, salt, err := a.factoryInit(cfg)
	if err != nil {
		return types.DeployArgs{}, err
	}
	factoryData, err := nexusFactoryABI.Pack("createAccount", initData, salt)
	if err != nil {
		return types.DeployArgs{}, err
	}
	initCall, err := nexusAccountABI.Pack("initializeAccount", initData)
	if err != nil {
		return types.DeployArgs{}, err
	}
	return types.DeployArgs{
		Factory:        a.book.Nexus.Factory,
		FactoryData:    factoryData,
		Salt:           salt,
		Implementation: a.book.Nexus.Implementation,
		InitCall:       initCall,
		InitCodeHash:   codec.ERC1967InitCodeHash(a.book.Nexus.Implementation),
	}, nil
}

func (a *nexusAdapter) Address(cfg types.AccountConfig) (common.Address, error) {
	if err := checkConfig(cfg, types.ProviderNexus); err != nil {
		return common.Address{}, err
	}
	initData, salt, err := a.factoryInit(cfg)
	if err != nil {
		return common.Address{}, err
	}
	actualSalt := codec.Keccak(initData, salt[:])
	initCodeHash := codec.ERC1967InitCodeHash(a.book.Nexus.Implementation)
	return crypto.CreateAddress2(a.book.Nexus.Factory, actualSalt, initCodeHash.Bytes()), nil
}

func (a *nexusAdapter) InstallCalls(cfg types.AccountConfig, module types.Module) ([]types.Call, error) {
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

func (a *nexusAdapter) UninstallCalls(cfg types.AccountConfig, module types.Module) ([]types.Call, error) {
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

// PackSignature prefixes the validator address, zeroed for the root
// validator so the account routes to its default.
func (a *nexusAdapter) PackSignature(sig []byte, validator types.ValidatorConfig) ([]byte, error) {
	prefix := validator.Address
	if validator.IsRoot {
		prefix = common.Address{}
	}
	return codec.Packed(prefix.Bytes(), sig), nil
}

func (a *nexusAdapter) SignDigest(_ types.AccountConfig, hash [32]byte, _ types.ValidatorConfig) ([32]byte, error) {
	return hash, nil
}

// NonceKey lays out a 3-byte caller lane, the validation mode byte, then
// the validator address.
func (a *nexusAdapter) NonceKey(cfg types.AccountConfig, validator common.Address, localKey uint64) (*big.Int, error) {
	if err := checkConfig(cfg, types.ProviderNexus); err != nil {
		return nil, err
	}
	if !localKeyFits(localKey, 3) {
		return nil, localKeyOverflow(types.ProviderNexus, 3)
	}
	key := codec.Packed(
		codec.PackedUint64(localKey, 3),
		[]byte{nexusValidationMode},
		validator.Bytes(),
	)
	return new(big.Int).SetBytes(key), nil
}

func (a *nexusAdapter) EncodeCalls(calls []types.Call) ([]byte, error) {
	return encode7579Calls(calls)
}
