package account

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/polywallet/polywallet/internal/codec"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

// ownerListSentinel heads the ownable validator's owner linked list.
var ownerListSentinel = common.HexToAddress("0x0000000000000000000000000000000000000001")

var (
	setThresholdSelector = codec.Selector("setThreshold(uint256)")
	addOwnerSelector     = codec.Selector("addOwner(address)")
	removeOwnerSelector  = codec.Selector("removeOwner(address,address)")
	getOwnersSelector    = codec.Selector("getOwners(address)")
	thresholdSelector    = codec.Selector("threshold(address)")

	ownerArgs     = codec.Args(codec.TypeAddress)
	ownerPairArgs = codec.Args(codec.TypeAddress, codec.TypeAddress)
	thresholdArgs = codec.Args(codec.TypeUint256)
	ownerListArgs = codec.Args(codec.TypeAddressSlice)
)

// RecoveryCalls builds the ordered owner-set mutations a guardian recovery
// executes against the ownable validator: the threshold change first, then
// additions, then removals carrying their linked-list predecessors. Owners
// keep the caller-supplied order; the validator appends new owners at the
// list tail, and a removal's predecessor is the sentinel exactly when the
// removed owner heads the list.
func (f *Facade) RecoveryCalls(ctx context.Context, cfg types.AccountConfig, threshold int, owners []common.Address) ([]types.Call, error) {
	adapter, err := f.adapter(cfg)
	if err != nil {
		return nil, err
	}
	if !adapter.SupportsModules() {
		return nil, apperrors.UnsupportedForProvider(string(cfg.Provider), "guardian recovery")
	}
	if threshold < 1 || threshold > len(owners) {
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"recovery threshold must be between 1 and the owner count")
	}
	if hasDuplicates(owners) {
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"recovery owner set contains duplicates")
	}

	address, err := adapter.Address(cfg)
	if err != nil {
		return nil, err
	}
	currentOwners, currentThreshold, err := f.ownerState(ctx, address)
	if err != nil {
		return nil, err
	}

	var calls []types.Call
	if currentThreshold != threshold {
		call, terr := validatorCall(f.book.OwnableValidator, setThresholdSelector, thresholdArgs, big.NewInt(int64(threshold)))
		if terr != nil {
			return nil, terr
		}
		calls = append(calls, call)
	}

	working := append([]common.Address{}, currentOwners...)
	for _, owner := range owners {
		if indexOf(working, owner) >= 0 {
			continue
		}
		call, aerr := validatorCall(f.book.OwnableValidator, addOwnerSelector, ownerArgs, owner)
		if aerr != nil {
			return nil, aerr
		}
		calls = append(calls, call)
		working = append(working, owner)
	}

	for _, owner := range currentOwners {
		if indexOf(owners, owner) >= 0 {
			continue
		}
		idx := indexOf(working, owner)
		prev := ownerListSentinel
		if idx > 0 {
			prev = working[idx-1]
		}
		call, rerr := validatorCall(f.book.OwnableValidator, removeOwnerSelector, ownerPairArgs, prev, owner)
		if rerr != nil {
			return nil, rerr
		}
		calls = append(calls, call)
		working = append(working[:idx], working[idx+1:]...)
	}

	return calls, nil
}

// ownerState reads the account's current owner list and threshold from the
// ownable validator.
func (f *Facade) ownerState(ctx context.Context, account common.Address) ([]common.Address, int, error) {
	if f.node == nil {
		return nil, 0, errNodeRequired()
	}

	validator := f.book.OwnableValidator
	query, err := codec.Encode(ownerArgs, account)
	if err != nil {
		return nil, 0, err
	}

	out, err := f.node.CallContract(ctx, ethereum.CallMsg{To: &validator, Data: codec.Packed(getOwnersSelector[:], query)})
	if err != nil {
		return nil, 0, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to read current owners", err)
	}
	decoded, err := ownerListArgs.Unpack(out)
	if err != nil {
		return nil, 0, apperrors.Execution(apperrors.CodeSubmissionFailed, "malformed owner list response", err)
	}
	ownerList, ok := decoded[0].([]common.Address)
	if !ok {
		return nil, 0, apperrors.Execution(apperrors.CodeSubmissionFailed, "malformed owner list response", nil)
	}

	out, err = f.node.CallContract(ctx, ethereum.CallMsg{To: &validator, Data: codec.Packed(thresholdSelector[:], query)})
	if err != nil {
		return nil, 0, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to read current threshold", err)
	}
	decoded, err = thresholdArgs.Unpack(out)
	if err != nil {
		return nil, 0, apperrors.Execution(apperrors.CodeSubmissionFailed, "malformed threshold response", err)
	}
	thresholdBig, ok := decoded[0].(*big.Int)
	if !ok {
		return nil, 0, apperrors.Execution(apperrors.CodeSubmissionFailed, "malformed threshold response", nil)
	}

	return ownerList, int(thresholdBig.Int64()), nil
}

func validatorCall(validator common.Address, selector [4]byte, args abi.Arguments, values ...interface{}) (types.Call, error) {
	data, err := codec.Encode(args, values...)
	if err != nil {
		return types.Call{}, err
	}
	return types.Call{To: validator, Data: codec.Packed(selector[:], data)}, nil
}

func indexOf(list []common.Address, target common.Address) int {
	for i, addr := range list {
		if addr == target {
			return i
		}
	}
	return -1
}

func hasDuplicates(list []common.Address) bool {
	seen := make(map[common.Address]struct{}, len(list))
	for _, addr := range list {
		if _, dup := seen[addr]; dup {
			return true
		}
		seen[addr] = struct{}{}
	}
	return false
}
