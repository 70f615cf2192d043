// Package chain holds the collaborators the account layer talks to: a state
// reader, a transaction submitter and an ERC-4337 bundler, plus the default
// RPC-backed implementations.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/polywallet/polywallet/pkg/types"
)

// Reader reads the chain state deployment and signing decisions depend on.
type Reader interface {
	// CodeAt returns the code at the account, empty when undeployed.
	CodeAt(ctx context.Context, account common.Address) ([]byte, error)
	// CallContract executes a read-only contract call.
	CallContract(ctx context.Context, call ethereum.CallMsg) ([]byte, error)
	// PendingNonce returns the account's next transaction nonce.
	PendingNonce(ctx context.Context, account common.Address) (uint64, error)
	// EntryPointNonce reads the account's next nonce for a 192-bit key from
	// the entry point.
	EntryPointNonce(ctx context.Context, entryPoint, sender common.Address, key *big.Int) (*big.Int, error)
}

// Submitter broadcasts signed transactions and looks up their receipts.
type Submitter interface {
	ChainID() *big.Int
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// Bundler submits user operations to an ERC-4337 bundler endpoint.
type Bundler interface {
	SendUserOperation(ctx context.Context, op *types.UserOperation, entryPoint common.Address) (common.Hash, error)
	EstimateUserOperationGas(ctx context.Context, op *types.UserOperation, entryPoint common.Address) (*GasEstimate, error)
	UserOperationReceipt(ctx context.Context, opHash common.Hash) (*UserOperationReceipt, error)
}
