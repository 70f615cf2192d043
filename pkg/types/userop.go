package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// UserOperation is the unpacked EntryPoint v0.7 user operation. Gas fields
// left nil are treated as zero; a zero Factory or Paymaster address means
// the corresponding section is absent.
type UserOperation struct {
	Sender      common.Address
	Nonce       *big.Int
	Factory     common.Address
	FactoryData []byte
	CallData    []byte

	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int

	Paymaster                     common.Address
	PaymasterVerificationGasLimit *big.Int
	PaymasterPostOpGasLimit       *big.Int
	PaymasterData                 []byte

	Signature []byte

	// Authorization carries the signed EIP-7702 tuple for delegated
	// deployments submitted through a bundler.
	Authorization *ethtypes.SetCodeAuthorization
}

// PackedUserOperation is the on-chain v0.7 representation with paired gas
// fields packed into single words.
type PackedUserOperation struct {
	Sender             common.Address
	Nonce              *big.Int
	InitCode           []byte
	CallData           []byte
	AccountGasLimits   [32]byte
	PreVerificationGas *big.Int
	GasFees            [32]byte
	PaymasterAndData   []byte
	Signature          []byte
}

// Pack converts the operation to its on-chain form: initCode is
// factory || factoryData, accountGasLimits packs verification and call gas,
// gasFees packs priority and max fee, and paymasterAndData packs the
// paymaster section.
func (op *UserOperation) Pack() *PackedUserOperation {
	packed := &PackedUserOperation{
		Sender:             op.Sender,
		Nonce:              bigOrZero(op.Nonce),
		CallData:           op.CallData,
		AccountGasLimits:   packHighLow(op.VerificationGasLimit, op.CallGasLimit),
		PreVerificationGas: bigOrZero(op.PreVerificationGas),
		GasFees:            packHighLow(op.MaxPriorityFeePerGas, op.MaxFeePerGas),
		Signature:          op.Signature,
	}
	if op.Factory != (common.Address{}) {
		packed.InitCode = append(op.Factory.Bytes(), op.FactoryData...)
	}
	if op.Paymaster != (common.Address{}) {
		pmd := make([]byte, 0, 52+len(op.PaymasterData))
		pmd = append(pmd, op.Paymaster.Bytes()...)
		pmd = append(pmd, pad16(op.PaymasterVerificationGasLimit)...)
		pmd = append(pmd, pad16(op.PaymasterPostOpGasLimit)...)
		pmd = append(pmd, op.PaymasterData...)
		packed.PaymasterAndData = pmd
	}
	return packed
}

// packHighLow places high in the upper 16 bytes and low in the lower 16.
func packHighLow(high, low *big.Int) [32]byte {
	var out [32]byte
	copy(out[:16], pad16(high))
	copy(out[16:], pad16(low))
	return out
}

// pad16 renders a value as a 16-byte big-endian slice. Values beyond 128
// bits are truncated to their low 128 bits, matching on-chain packing.
func pad16(v *big.Int) []byte {
	if v == nil {
		return make([]byte, 16)
	}
	full := uint256.MustFromBig(v).Bytes32()
	return full[16:]
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
