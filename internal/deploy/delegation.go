package deploy

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/polywallet/polywallet/internal/chain"
	"github.com/polywallet/polywallet/internal/logger"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

// setCodeGasMargin covers what gas estimation cannot see: the estimate
// runs before the delegation exists, so it prices a plain call and misses
// both the per-authorization surcharge and the delegated init code.
const setCodeGasMargin = 150_000

// deployDelegation signs an EIP-7702 authorization for the delegate EOA
// and lands it either in a type-4 transaction from the deployer key or in
// a user operation when only a bundler is available.
func (c *Coordinator) deployDelegation(ctx context.Context, req Request, address common.Address) (*Result, error) {
	if !req.Adapter.SupportsDelegation() {
		return nil, apperrors.UnsupportedForProvider(string(req.Config.Provider), "eip-7702 delegation")
	}
	args, err := req.Adapter.DeployArgs(req.Config)
	if err != nil {
		return nil, err
	}
	if !args.HasImplementation() {
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration, "no delegation implementation configured for provider")
	}

	delegate := req.Config.Delegate
	authNonce, err := c.node.PendingNonce(ctx, delegate.Address())
	if err != nil {
		return nil, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to fetch delegate nonce", err)
	}
	// When the delegate funds its own deployment the transaction consumes
	// the EOA nonce before the authorization is checked.
	if req.Config.Deployer != nil && req.Config.Deployer.Address() == delegate.Address() {
		authNonce++
	}

	chainID := c.node.ChainID()
	c.setState(StateSubmittingAuth)
	auth, err := chain.SignAuthorization(ctx, delegate, ethtypes.SetCodeAuthorization{
		ChainID: *uint256.MustFromBig(chainID),
		Address: args.Implementation,
		Nonce:   authNonce,
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "delegation authorization signed", "delegate", delegate.Address(), "implementation", args.Implementation)

	switch {
	case req.Config.Deployer != nil:
		return c.submitDelegationTx(ctx, req, address, args, auth)
	case c.bundler != nil:
		return c.submitDelegationOp(ctx, req, address, args, auth)
	default:
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration, "a deployer key or a bundler is required for deployment")
	}
}

func (c *Coordinator) submitDelegationTx(ctx context.Context, req Request, address common.Address, args types.DeployArgs, auth ethtypes.SetCodeAuthorization) (*Result, error) {
	c.setState(StateSubmittingTx)

	from := req.Config.Deployer.Address()
	nonce, err := c.node.PendingNonce(ctx, from)
	if err != nil {
		return nil, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to fetch deployer nonce", err)
	}
	gas, err := c.estimateInitCall(ctx, from, address, args.InitCall)
	if err != nil {
		return nil, err
	}
	tip, feeCap, err := c.suggestFees(ctx)
	if err != nil {
		return nil, err
	}

	chainID := c.node.ChainID()
	tx := ethtypes.NewTx(&ethtypes.SetCodeTx{
		ChainID:   uint256.MustFromBig(chainID),
		Nonce:     nonce,
		GasTipCap: uint256.MustFromBig(tip),
		GasFeeCap: uint256.MustFromBig(feeCap),
		Gas:       gas,
		To:        address,
		Data:      args.InitCall,
		AuthList:  []ethtypes.SetCodeAuthorization{auth},
	})
	signed, err := chain.SignTx(ctx, req.Config.Deployer, chainID, tx)
	if err != nil {
		return nil, err
	}
	if err := c.node.SendTransaction(ctx, signed); err != nil {
		return nil, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to broadcast delegation transaction", err)
	}
	logger.Info(ctx, "delegation transaction submitted", "tx_hash", signed.Hash(), "account", address)

	c.setState(StateAwaiting)
	if err := c.awaitReceipt(ctx, signed.Hash()); err != nil {
		return nil, err
	}

	c.setState(StateDeployed)
	return &Result{State: StateDeployed, Path: PathDelegation, Address: address, TxHash: signed.Hash()}, nil
}

func (c *Coordinator) submitDelegationOp(ctx context.Context, req Request, address common.Address, args types.DeployArgs, auth ethtypes.SetCodeAuthorization) (*Result, error) {
	c.setState(StateSubmittingOp)

	op := &types.UserOperation{
		Sender:        address,
		CallData:      args.InitCall,
		Authorization: &auth,
	}
	result, err := c.submitOp(ctx, req, op)
	if err != nil {
		return nil, err
	}
	result.Path = PathDelegation
	result.Address = address
	return result, nil
}

// estimateInitCall prices the init call and pads it with the set-code
// margin. The estimate sees the pre-delegation account, so it cannot be
// trusted as-is.
func (c *Coordinator) estimateInitCall(ctx context.Context, from, account common.Address, initCall []byte) (uint64, error) {
	gas, err := c.node.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &account, Data: initCall})
	if err != nil {
		return 0, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to estimate init call", err)
	}
	return gas + setCodeGasMargin, nil
}
