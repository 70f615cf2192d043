package providers

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/polywallet/polywallet/internal/codec"
	"github.com/polywallet/polywallet/internal/contracts"
	"github.com/polywallet/polywallet/internal/modules"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

var safeFactoryABI = codec.MustParseABI(`[{
	"type": "function",
	"name": "createProxyWithNonce",
	"inputs": [
		{"name": "_singleton", "type": "address"},
		{"name": "initializer", "type": "bytes"},
		{"name": "saltNonce", "type": "uint256"}
	],
	"outputs": [{"name": "proxy", "type": "address"}]
}]`)

var safeSetupABI = codec.MustParseABI(`[{
	"type": "function",
	"name": "setup",
	"inputs": [
		{"name": "_owners", "type": "address[]"},
		{"name": "_threshold", "type": "uint256"},
		{"name": "to", "type": "address"},
		{"name": "data", "type": "bytes"},
		{"name": "fallbackHandler", "type": "address"},
		{"name": "paymentToken", "type": "address"},
		{"name": "payment", "type": "uint256"},
		{"name": "paymentReceiver", "type": "address"}
	],
	"outputs": []
}]`)

var safeLaunchpadABI = codec.MustParseABI(`[{
	"type": "function",
	"name": "addSafe7579",
	"inputs": [
		{"name": "safe7579", "type": "address"},
		{"name": "validators", "type": "tuple[]", "components": [
			{"name": "module", "type": "address"}, {"name": "initData", "type": "bytes"}]},
		{"name": "executors", "type": "tuple[]", "components": [
			{"name": "module", "type": "address"}, {"name": "initData", "type": "bytes"}]},
		{"name": "fallbacks", "type": "tuple[]", "components": [
			{"name": "module", "type": "address"}, {"name": "initData", "type": "bytes"}]},
		{"name": "hooks", "type": "tuple[]", "components": [
			{"name": "module", "type": "address"}, {"name": "initData", "type": "bytes"}]},
		{"name": "attesters", "type": "address[]"},
		{"name": "threshold", "type": "uint8"}
	],
	"outputs": []
}]`)

type safeModuleInitABI struct {
	Module   common.Address
	InitData []byte
}

func safeModuleInits(mods []types.Module) []safeModuleInitABI {
	out := make([]safeModuleInitABI, len(mods))
	for i, m := range mods {
		out[i] = safeModuleInitABI{Module: m.Address, InitData: m.InitData}
	}
	return out
}

// safePlaceholderOwner fills the native Safe owner slot when the configured
// owners cannot be expressed as Safe owners (passkey or multi-factor sets).
// Validation then flows exclusively through the 7579 validators.
var safePlaceholderOwner = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// safeAdapter drives Safe proxies initialized through the 7579 launchpad.
type safeAdapter struct {
	book    contracts.Deployments
	chain   types.Chain
	catalog *modules.Catalog
}

func (a *safeAdapter) Kind() types.ProviderKind { return types.ProviderSafe }

func (a *safeAdapter) SupportsDelegation() bool { return false }

func (a *safeAdapter) SupportsModules() bool { return true }

func safeNativeOwners(owners types.OwnerSet) ([]common.Address, *big.Int) {
	if owners.Kind == types.OwnerKindEcdsa {
		return owners.Ecdsa.Addresses(), big.NewInt(int64(owners.Ecdsa.Threshold))
	}
	return []common.Address{safePlaceholderOwner}, big.NewInt(1)
}

// initializer builds the Safe setup call: native owners, a delegatecall into
// the launchpad wiring up the 7579 adapter and modules, and the adapter as
// fallback handler.
func (a *safeAdapter) initializer(cfg types.AccountConfig) ([]byte, error) {
	setup, err := a.catalog.DefaultSetup(cfg, cfg.ExtraValidators...)
	if err != nil {
		return nil, err
	}

	launchpadCall, err := safeLaunchpadABI.Pack("addSafe7579",
		a.book.Safe.Adapter,
		safeModuleInits(setup.Validators),
		safeModuleInits(setup.Executors),
		safeModuleInits(setup.Fallbacks),
		safeModuleInits(setup.Hooks),
		setup.Registry.Attesters,
		uint8(setup.Registry.Threshold),
	)
	if err != nil {
		return nil, err
	}

	owners, threshold := safeNativeOwners(cfg.Owners)
	return safeSetupABI.Pack("setup",
		owners,
		threshold,
		a.book.Safe.Launchpad,
		launchpadCall,
		a.book.Safe.Adapter,
		common.Address{},
		big.NewInt(0),
		common.Address{},
	)
}

// factoryCall resolves the proxy-factory arguments, either from externally
// supplied factory calldata (decoded and cross-checked) or derived from the
// config.
func (a *safeAdapter) factoryCall(cfg types.AccountConfig) (initializer []byte, saltNonce *big.Int, err error) {
	if len(cfg.InitData) > 0 {
		method, values, derr := codec.DecodeCall(safeFactoryABI, cfg.InitData)
		if derr != nil {
			return nil, nil, apperrors.UnsupportedConfiguration(types.ProviderSafe.String(), derr.Error())
		}
		if method.Name != "createProxyWithNonce" {
			return nil, nil, apperrors.UnsupportedConfiguration(types.ProviderSafe.String(),
				"factory calldata is not a createProxyWithNonce call")
		}
		singleton := values[0].(common.Address)
		if singleton != a.book.Safe.Singleton {
			return nil, nil, apperrors.UnsupportedConfiguration(types.ProviderSafe.String(),
				"factory calldata targets an unknown singleton")
		}
		return values[1].([]byte), values[2].(*big.Int), nil
	}

	init, err := a.initializer(cfg)
	if err != nil {
		return nil, nil, err
	}
	return init, new(big.Int).SetBytes(cfg.Salt[:]), nil
}

func (a *safeAdapter) DeployArgs(cfg types.AccountConfig) (types.DeployArgs, error) {
	if err := checkConfig(cfg, types.ProviderSafe); err != nil {
		return types.DeployArgs{}, err
	}
	initializer, saltNonce, err := a.factoryCall(cfg)
	if err != nil {
		return types.DeployArgs{}, err
	}

	factoryData := cfg.InitData
	if len(factoryData) == 0 {
		factoryData, err = safeFactoryABI.Pack("createProxyWithNonce",
			a.book.Safe.Singleton, initializer, saltNonce)
		if err != nil {
			return types.DeployArgs{}, err
		}
	}

	var salt [32]byte
	copy(salt[:], codec.PackedUint(saltNonce, 32))
	return types.DeployArgs{
		Factory:        a.book.Safe.ProxyFactory,
		FactoryData:    factoryData,
		Salt:           salt,
		Implementation: a.book.Safe.Singleton,
		InitCall:       initializer,
		InitCodeHash:   a.book.Safe.ProxyInitCodeHash,
	}, nil
}

func (a *safeAdapter) Address(cfg types.AccountConfig) (common.Address, error) {
	if err := checkConfig(cfg, types.ProviderSafe); err != nil {
		return common.Address{}, err
	}
	initializer, saltNonce, err := a.factoryCall(cfg)
	if err != nil {
		return common.Address{}, err
	}
	// The proxy factory salts CREATE2 with keccak(keccak(initializer) ||
	// saltNonce).
	initHash := codec.Keccak(initializer)
	salt := codec.Keccak(initHash.Bytes(), codec.PackedUint(saltNonce, 32))
	return crypto.CreateAddress2(a.book.Safe.ProxyFactory, salt, a.book.Safe.ProxyInitCodeHash.Bytes()), nil
}

func (a *safeAdapter) InstallCalls(cfg types.AccountConfig, module types.Module) ([]types.Call, error) {
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

func (a *safeAdapter) UninstallCalls(cfg types.AccountConfig, module types.Module) ([]types.Call, error) {
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

// PackSignature routes non-root signatures by prefixing the validator
// address; root signatures pass through unchanged because the Safe itself
// verifies them after the SignDigest rehash.
func (a *safeAdapter) PackSignature(sig []byte, validator types.ValidatorConfig) ([]byte, error) {
	if validator.IsRoot {
		return sig, nil
	}
	return codec.Packed(validator.Address.Bytes(), sig), nil
}

// SignDigest rehashes root-validator digests through the Safe's own EIP-712
// message domain. Auxiliary validators verify the digest as is.
func (a *safeAdapter) SignDigest(cfg types.AccountConfig, hash [32]byte, validator types.ValidatorConfig) ([32]byte, error) {
	if !validator.IsRoot {
		return hash, nil
	}
	account, err := a.Address(cfg)
	if err != nil {
		return [32]byte{}, err
	}

	typed := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"SafeMessage": []apitypes.Type{
				{Name: "message", Type: "bytes"},
			},
		},
		PrimaryType: "SafeMessage",
		Domain: apitypes.TypedDataDomain{
			ChainId:           math.NewHexOrDecimal256(int64(a.chain.ID)),
			VerifyingContract: account.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"message": hexutil.Encode(hash[:]),
		},
	}
	rehash, err := codec.HashTypedData(typed)
	if err != nil {
		return [32]byte{}, err
	}
	return [32]byte(rehash), nil
}

// NonceKey lays the validator address into the high bytes of the key with a
// 4-byte caller lane below it.
func (a *safeAdapter) NonceKey(cfg types.AccountConfig, validator common.Address, localKey uint64) (*big.Int, error) {
	if err := checkConfig(cfg, types.ProviderSafe); err != nil {
		return nil, err
	}
	if !localKeyFits(localKey, 4) {
		return nil, localKeyOverflow(types.ProviderSafe, 4)
	}
	key := codec.Packed(validator.Bytes(), codec.PackedUint64(localKey, 4))
	return new(big.Int).SetBytes(key), nil
}

func (a *safeAdapter) EncodeCalls(calls []types.Call) ([]byte, error) {
	return encode7579Calls(calls)
}
