package providers

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polywallet/polywallet/internal/codec"
	"github.com/polywallet/polywallet/internal/contracts"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

var simple7702AccountABI = codec.MustParseABI(`[{
	"type": "function",
	"name": "execute",
	"inputs": [
		{"name": "target", "type": "address"},
		{"name": "value", "type": "uint256"},
		{"name": "data", "type": "bytes"}
	],
	"outputs": []
}, {
	"type": "function",
	"name": "executeBatch",
	"inputs": [
		{"name": "calls", "type": "tuple[]", "components": [
			{"name": "target", "type": "address"},
			{"name": "value", "type": "uint256"},
			{"name": "data", "type": "bytes"}]}
	],
	"outputs": []
}]`)

type simple7702CallABI struct {
	Target common.Address
	Value  *big.Int
	Data   []byte
}

// simple7702SigPrefix routes validation to the delegated key: the selector
// byte 0x07 followed by the "S7p2" tag binding the signature to this
// account flavor as a replay guard.
var simple7702SigPrefix = []byte{0x07, 0x53, 0x37, 0x70, 0x32}

// simple7702Adapter drives minimal EIP-7702 delegate accounts. There is no
// factory and no module surface; the delegate key is the account.
type simple7702Adapter struct {
	book contracts.Deployments
}

func (a *simple7702Adapter) Kind() types.ProviderKind { return types.ProviderSimple7702 }

func (a *simple7702Adapter) SupportsDelegation() bool { return true }

func (a *simple7702Adapter) SupportsModules() bool { return false }

// DeployArgs carries only the delegate target and no factory: deployment is
// the delegation itself.
func (a *simple7702Adapter) DeployArgs(cfg types.AccountConfig) (types.DeployArgs, error) {
	if err := checkConfig(cfg, types.ProviderSimple7702); err != nil {
		return types.DeployArgs{}, err
	}
	return types.DeployArgs{
		Implementation: a.book.Simple7702.Implementation,
	}, nil
}

// Address is the delegate key's own address; no derivation exists without
// one.
func (a *simple7702Adapter) Address(cfg types.AccountConfig) (common.Address, error) {
	if err := checkConfig(cfg, types.ProviderSimple7702); err != nil {
		return common.Address{}, err
	}
	delegate := cfg.DelegateAddress()
	if delegate == (common.Address{}) {
		return common.Address{}, apperrors.ErrEoaRequired.WithProvider(types.ProviderSimple7702.String())
	}
	return delegate, nil
}

func (a *simple7702Adapter) InstallCalls(types.AccountConfig, types.Module) ([]types.Call, error) {
	return nil, apperrors.UnsupportedForProvider(types.ProviderSimple7702.String(), "module installation")
}

func (a *simple7702Adapter) UninstallCalls(types.AccountConfig, types.Module) ([]types.Call, error) {
	return nil, apperrors.UnsupportedForProvider(types.ProviderSimple7702.String(), "module removal")
}

func (a *simple7702Adapter) PackSignature(sig []byte, validator types.ValidatorConfig) ([]byte, error) {
	if !validator.IsRoot {
		return nil, apperrors.UnsupportedForProvider(types.ProviderSimple7702.String(), "auxiliary validators")
	}
	return codec.Packed(simple7702SigPrefix, sig), nil
}

func (a *simple7702Adapter) SignDigest(_ types.AccountConfig, hash [32]byte, _ types.ValidatorConfig) ([32]byte, error) {
	return hash, nil
}

// NonceKey is the caller lane verbatim; there are no validator routes to
// encode.
func (a *simple7702Adapter) NonceKey(cfg types.AccountConfig, _ common.Address, localKey uint64) (*big.Int, error) {
	if err := checkConfig(cfg, types.ProviderSimple7702); err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(localKey), nil
}

// EncodeCalls always uses the batch entry point, which keeps single and
// multi-call execution on one code path.
func (a *simple7702Adapter) EncodeCalls(calls []types.Call) ([]byte, error) {
	if len(calls) == 0 {
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"no calls to encode")
	}
	tuples := make([]simple7702CallABI, len(calls))
	for i, call := range calls {
		tuples[i] = simple7702CallABI{Target: call.To, Value: call.CallValue(), Data: call.Data}
	}
	return simple7702AccountABI.Pack("executeBatch", tuples)
}
