package providers

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/polywallet/polywallet/internal/codec"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

// ERC-7579 execution mode layout: callType(1) || execType(1) || reserved(4)
// || modeSelector(4) || modePayload(22). The default exec type reverts the
// whole operation on failure.
const (
	callTypeSingle byte = 0x00
	callTypeBatch  byte = 0x01
)

var (
	executeSelector = codec.Selector("execute(bytes32,bytes)")
	executeArgs     = codec.Args(codec.TypeBytes32, codec.TypeBytes)

	executionsType = codec.MustType("tuple[]",
		abi.ArgumentMarshaling{Name: "target", Type: "address"},
		abi.ArgumentMarshaling{Name: "value", Type: "uint256"},
		abi.ArgumentMarshaling{Name: "callData", Type: "bytes"},
	)
	executionsArgs = codec.Args(executionsType)

	installModuleSelector   = codec.Selector("installModule(uint256,address,bytes)")
	uninstallModuleSelector = codec.Selector("uninstallModule(uint256,address,bytes)")
	moduleCallArgs          = codec.Args(codec.TypeUint256, codec.TypeAddress, codec.TypeBytes)
)

type executionABI struct {
	Target   common.Address
	Value    *big.Int
	CallData []byte
}

// encode7579Calls encodes calls for accounts speaking the 7579 execute
// interface: a lone call uses the packed single encoding, several use the
// batched tuple array.
func encode7579Calls(calls []types.Call) ([]byte, error) {
	if len(calls) == 0 {
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"no calls to encode")
	}

	var mode [32]byte
	var execution []byte
	if len(calls) == 1 {
		mode[0] = callTypeSingle
		execution = codec.Packed(
			calls[0].To.Bytes(),
			codec.PackedUint(calls[0].CallValue(), 32),
			calls[0].Data,
		)
	} else {
		mode[0] = callTypeBatch
		tuples := make([]executionABI, len(calls))
		for i, call := range calls {
			tuples[i] = executionABI{Target: call.To, Value: call.CallValue(), CallData: call.Data}
		}
		encoded, err := codec.Encode(executionsArgs, tuples)
		if err != nil {
			return nil, err
		}
		execution = encoded
	}

	tail, err := codec.Encode(executeArgs, mode, execution)
	if err != nil {
		return nil, err
	}
	return codec.Packed(executeSelector[:], tail), nil
}

// installModuleData builds installModule calldata with the given init data,
// which providers may have wrapped in their own layout first.
func installModuleData(module types.Module, initData []byte) ([]byte, error) {
	if err := module.Kind.Validate(); err != nil {
		return nil, err
	}
	args, err := codec.Encode(moduleCallArgs,
		new(big.Int).SetUint64(uint64(module.Kind)), module.Address, initData)
	if err != nil {
		return nil, err
	}
	return codec.Packed(installModuleSelector[:], args), nil
}

func installModuleCall(account common.Address, module types.Module, initData []byte) (types.Call, error) {
	data, err := installModuleData(module, initData)
	if err != nil {
		return types.Call{}, err
	}
	return types.Call{To: account, Data: data}, nil
}

func uninstallModuleCall(account common.Address, module types.Module, deInitData []byte) (types.Call, error) {
	if err := module.Kind.Validate(); err != nil {
		return types.Call{}, err
	}
	args, err := codec.Encode(moduleCallArgs,
		new(big.Int).SetUint64(uint64(module.Kind)), module.Address, deInitData)
	if err != nil {
		return types.Call{}, err
	}
	return types.Call{To: account, Data: codec.Packed(uninstallModuleSelector[:], args)}, nil
}

// bootstrapConfigABI mirrors the (module, data) pair the nexus and startale
// bootstrap contracts consume.
type bootstrapConfigABI struct {
	Module common.Address
	Data   []byte
}

func bootstrapConfigs(mods []types.Module) []bootstrapConfigABI {
	out := make([]bootstrapConfigABI, len(mods))
	for i, m := range mods {
		out[i] = bootstrapConfigABI{Module: m.Address, Data: m.InitData}
	}
	return out
}

// checkConfig validates the config eagerly and pins it to the adapter's
// provider, so calldata is never produced for a mismatched config.
func checkConfig(cfg types.AccountConfig, kind types.ProviderKind) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Provider != kind {
		return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"config provider "+cfg.Provider.String()+" does not match the "+kind.String()+" adapter")
	}
	return nil
}
