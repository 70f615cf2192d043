package deploy

import (
	"bytes"
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/polywallet/polywallet/internal/chain"
	"github.com/polywallet/polywallet/internal/logger"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

// deployStandard submits the provider's factory call, either as a plain
// transaction from the deployer key or as the init section of a user
// operation when only a bundler is available.
func (c *Coordinator) deployStandard(ctx context.Context, req Request, address common.Address) (*Result, error) {
	args, err := req.Adapter.DeployArgs(req.Config)
	if err != nil {
		return nil, err
	}
	if !args.HasFactory() {
		return nil, apperrors.ErrFactoryArgsUnavailable.WithProvider(string(req.Config.Provider))
	}

	switch {
	case req.Config.Deployer != nil:
		return c.submitFactoryTx(ctx, req, address, args)
	case c.bundler != nil:
		return c.submitFactoryOp(ctx, req, address, args)
	default:
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration, "a deployer key or a bundler is required for deployment")
	}
}

func (c *Coordinator) submitFactoryTx(ctx context.Context, req Request, address common.Address, args types.DeployArgs) (*Result, error) {
	c.setState(StateSubmittingTx)

	from := req.Config.Deployer.Address()
	nonce, err := c.node.PendingNonce(ctx, from)
	if err != nil {
		return nil, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to fetch deployer nonce", err)
	}

	gas, err := c.node.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &args.Factory, Data: args.FactoryData})
	if err != nil {
		return nil, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to estimate factory call", err)
	}
	tip, feeCap, err := c.suggestFees(ctx)
	if err != nil {
		return nil, err
	}

	chainID := c.node.ChainID()
	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &args.Factory,
		Data:      args.FactoryData,
	})
	signed, err := chain.SignTx(ctx, req.Config.Deployer, chainID, tx)
	if err != nil {
		return nil, err
	}
	if err := c.node.SendTransaction(ctx, signed); err != nil {
		return nil, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to broadcast factory transaction", err)
	}
	logger.Info(ctx, "factory transaction submitted", "tx_hash", signed.Hash(), "factory", args.Factory)

	c.setState(StateAwaiting)
	if err := c.awaitReceipt(ctx, signed.Hash()); err != nil {
		return nil, err
	}

	c.setState(StateDeployed)
	return &Result{State: StateDeployed, Path: PathStandard, Address: address, TxHash: signed.Hash()}, nil
}

func (c *Coordinator) submitFactoryOp(ctx context.Context, req Request, address common.Address, args types.DeployArgs) (*Result, error) {
	c.setState(StateSubmittingOp)

	op := &types.UserOperation{
		Sender:      address,
		Factory:     args.Factory,
		FactoryData: args.FactoryData,
	}
	// A call to the account itself with no data validates and returns,
	// leaving deployment as the operation's only effect.
	callData, err := req.Adapter.EncodeCalls([]types.Call{{To: address}})
	if err != nil {
		return nil, err
	}
	op.CallData = callData

	result, err := c.submitOp(ctx, req, op)
	if err != nil {
		return nil, err
	}
	result.Path = PathStandard
	result.Address = address
	return result, nil
}

// submitOp fills nonce, fees, gas limits and the signature, then submits
// the operation and waits for inclusion. Shared by the standard and the
// delegation bundler paths.
func (c *Coordinator) submitOp(ctx context.Context, req Request, op *types.UserOperation) (*Result, error) {
	if req.SignOp == nil {
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration, "an operation signer is required for bundler submission")
	}

	nonceKey, err := c.nonceKeyFor(req)
	if err != nil {
		return nil, err
	}
	nonce, err := c.node.EntryPointNonce(ctx, c.entryPoint, op.Sender, nonceKey)
	if err != nil {
		return nil, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to fetch entry point nonce", err)
	}
	op.Nonce = nonce

	tip, feeCap, err := c.suggestFees(ctx)
	if err != nil {
		return nil, err
	}
	op.MaxPriorityFeePerGas = tip
	op.MaxFeePerGas = feeCap

	// Estimation runs validation, so the envelope must carry a
	// plausible signature for the root validator.
	dummy, err := req.Adapter.PackSignature(dummySignature(), req.RootValidator)
	if err != nil {
		return nil, err
	}
	op.Signature = dummy

	estimate, err := c.bundler.EstimateUserOperationGas(ctx, op, c.entryPoint)
	if err != nil {
		return nil, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to estimate user operation", err)
	}
	estimate.Apply(op)

	digest, err := chain.UserOpHash(op, c.entryPoint, c.node.ChainID())
	if err != nil {
		return nil, err
	}
	signature, err := req.SignOp(ctx, digest)
	if err != nil {
		return nil, err
	}
	op.Signature = signature

	opHash, err := c.bundler.SendUserOperation(ctx, op, c.entryPoint)
	if err != nil {
		return nil, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to submit user operation", err)
	}
	logger.Info(ctx, "user operation submitted", "op_hash", opHash, "sender", op.Sender)

	c.setState(StateAwaiting)
	receipt, err := c.awaitUserOp(ctx, opHash)
	if err != nil {
		return nil, err
	}

	c.setState(StateDeployed)
	return &Result{
		State:  StateDeployed,
		OpHash: opHash,
		TxHash: receipt.Receipt.TransactionHash,
	}, nil
}

func (c *Coordinator) suggestFees(ctx context.Context) (tip, feeCap *big.Int, err error) {
	tip, err = c.node.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to fetch gas tip", err)
	}
	feeCap, err = c.node.SuggestGasPrice(ctx)
	if err != nil {
		return nil, nil, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to fetch gas price", err)
	}
	return tip, feeCap, nil
}

// dummySignature is a maximal 65-byte placeholder so gas estimation walks
// the full recovery path.
func dummySignature() []byte {
	return append(bytes.Repeat([]byte{0xff}, 64), 0x1c)
}
