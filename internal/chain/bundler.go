package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/polywallet/polywallet/pkg/types"
)

// GasEstimate is the bundler's response to eth_estimateUserOperationGas.
type GasEstimate struct {
	PreVerificationGas            *hexutil.Big `json:"preVerificationGas"`
	VerificationGasLimit          *hexutil.Big `json:"verificationGasLimit"`
	CallGasLimit                  *hexutil.Big `json:"callGasLimit"`
	PaymasterVerificationGasLimit *hexutil.Big `json:"paymasterVerificationGasLimit,omitempty"`
}

// Apply copies the estimated limits into the operation, leaving fields the
// bundler did not report untouched.
func (g *GasEstimate) Apply(op *types.UserOperation) {
	if g.PreVerificationGas != nil {
		op.PreVerificationGas = g.PreVerificationGas.ToInt()
	}
	if g.VerificationGasLimit != nil {
		op.VerificationGasLimit = g.VerificationGasLimit.ToInt()
	}
	if g.CallGasLimit != nil {
		op.CallGasLimit = g.CallGasLimit.ToInt()
	}
	if g.PaymasterVerificationGasLimit != nil {
		op.PaymasterVerificationGasLimit = g.PaymasterVerificationGasLimit.ToInt()
	}
}

// UserOperationReceipt is the bundler's view of an included operation.
type UserOperationReceipt struct {
	UserOpHash    common.Hash  `json:"userOpHash"`
	Success       bool         `json:"success"`
	ActualGasUsed *hexutil.Big `json:"actualGasUsed"`
	Receipt       struct {
		TransactionHash common.Hash  `json:"transactionHash"`
		BlockNumber     *hexutil.Big `json:"blockNumber"`
	} `json:"receipt"`
}

// BundlerClient speaks the ERC-4337 bundler RPC namespace.
type BundlerClient struct {
	rpc *rpc.Client
}

var _ Bundler = (*BundlerClient)(nil)

// DialBundler connects to a bundler RPC endpoint.
func DialBundler(url string) (*BundlerClient, error) {
	if url == "" {
		return nil, fmt.Errorf("bundler URL is required")
	}
	client, err := rpc.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bundler: %w", err)
	}
	return &BundlerClient{rpc: client}, nil
}

// SendUserOperation submits the operation and returns its hash.
func (b *BundlerClient) SendUserOperation(ctx context.Context, op *types.UserOperation, entryPoint common.Address) (common.Hash, error) {
	var opHash common.Hash
	err := b.rpc.CallContext(ctx, &opHash, "eth_sendUserOperation", wireUserOperation(op), entryPoint)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send user operation: %w", err)
	}
	return opHash, nil
}

// EstimateUserOperationGas asks the bundler for gas limits. The operation is
// submitted with a dummy signature; bundlers ignore its validity during
// estimation.
func (b *BundlerClient) EstimateUserOperationGas(ctx context.Context, op *types.UserOperation, entryPoint common.Address) (*GasEstimate, error) {
	var estimate GasEstimate
	err := b.rpc.CallContext(ctx, &estimate, "eth_estimateUserOperationGas", wireUserOperation(op), entryPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate user operation gas: %w", err)
	}
	return &estimate, nil
}

// UserOperationReceipt looks the operation up by hash. A nil receipt with a
// nil error means the operation is not yet included.
func (b *BundlerClient) UserOperationReceipt(ctx context.Context, opHash common.Hash) (*UserOperationReceipt, error) {
	var receipt *UserOperationReceipt
	err := b.rpc.CallContext(ctx, &receipt, "eth_getUserOperationReceipt", opHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get user operation receipt: %w", err)
	}
	return receipt, nil
}

// Close closes the bundler connection.
func (b *BundlerClient) Close() {
	b.rpc.Close()
}

// rpcUserOperation is the JSON wire form of an unpacked v0.7 user operation.
// Absent sections are omitted rather than zeroed.
type rpcUserOperation struct {
	Sender               common.Address  `json:"sender"`
	Nonce                *hexutil.Big    `json:"nonce"`
	Factory              *common.Address `json:"factory,omitempty"`
	FactoryData          hexutil.Bytes   `json:"factoryData,omitempty"`
	CallData             hexutil.Bytes   `json:"callData"`
	CallGasLimit         *hexutil.Big    `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big    `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big    `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`

	Paymaster                     *common.Address `json:"paymaster,omitempty"`
	PaymasterVerificationGasLimit *hexutil.Big    `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       *hexutil.Big    `json:"paymasterPostOpGasLimit,omitempty"`
	PaymasterData                 hexutil.Bytes   `json:"paymasterData,omitempty"`

	Signature hexutil.Bytes `json:"signature"`

	EIP7702Auth *rpcAuthorization `json:"eip7702Auth,omitempty"`
}

// rpcAuthorization is the signed EIP-7702 tuple in bundler wire form.
type rpcAuthorization struct {
	ChainID *hexutil.Big   `json:"chainId"`
	Address common.Address `json:"address"`
	Nonce   hexutil.Uint64 `json:"nonce"`
	YParity hexutil.Uint64 `json:"yParity"`
	R       *hexutil.Big   `json:"r"`
	S       *hexutil.Big   `json:"s"`
}

func wireUserOperation(op *types.UserOperation) *rpcUserOperation {
	wire := &rpcUserOperation{
		Sender:               op.Sender,
		Nonce:                (*hexutil.Big)(zeroIfNil(op.Nonce)),
		CallData:             emptyIfNil(op.CallData),
		CallGasLimit:         (*hexutil.Big)(zeroIfNil(op.CallGasLimit)),
		VerificationGasLimit: (*hexutil.Big)(zeroIfNil(op.VerificationGasLimit)),
		PreVerificationGas:   (*hexutil.Big)(zeroIfNil(op.PreVerificationGas)),
		MaxFeePerGas:         (*hexutil.Big)(zeroIfNil(op.MaxFeePerGas)),
		MaxPriorityFeePerGas: (*hexutil.Big)(zeroIfNil(op.MaxPriorityFeePerGas)),
		Signature:            emptyIfNil(op.Signature),
	}
	if op.Factory != (common.Address{}) {
		factory := op.Factory
		wire.Factory = &factory
		wire.FactoryData = op.FactoryData
	}
	if op.Paymaster != (common.Address{}) {
		paymaster := op.Paymaster
		wire.Paymaster = &paymaster
		wire.PaymasterVerificationGasLimit = (*hexutil.Big)(zeroIfNil(op.PaymasterVerificationGasLimit))
		wire.PaymasterPostOpGasLimit = (*hexutil.Big)(zeroIfNil(op.PaymasterPostOpGasLimit))
		wire.PaymasterData = op.PaymasterData
	}
	if auth := op.Authorization; auth != nil {
		wire.EIP7702Auth = &rpcAuthorization{
			ChainID: (*hexutil.Big)(auth.ChainID.ToBig()),
			Address: auth.Address,
			Nonce:   hexutil.Uint64(auth.Nonce),
			YParity: hexutil.Uint64(auth.V),
			R:       (*hexutil.Big)(auth.R.ToBig()),
			S:       (*hexutil.Big)(auth.S.ToBig()),
		}
	}
	return wire
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func emptyIfNil(b []byte) hexutil.Bytes {
	if b == nil {
		return hexutil.Bytes{}
	}
	return b
}
