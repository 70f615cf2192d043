package deploy

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"

	"github.com/polywallet/polywallet/internal/chain"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
)

// poll runs probe on the coordinator's poll interval until it reports
// done, the wait timeout lapses, or the context ends. probe errors abort
// the wait; a pending result keeps it going.
func (c *Coordinator) poll(ctx context.Context, probe func(context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, c.waitTimeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(c.pollInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return apperrors.Execution(apperrors.CodeDeploymentTimeout, "timed out waiting for deployment", err)
		}
		done, err := probe(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// awaitReceipt waits for the transaction to land and fails on revert.
func (c *Coordinator) awaitReceipt(ctx context.Context, txHash common.Hash) error {
	return c.poll(ctx, func(ctx context.Context) (bool, error) {
		receipt, err := c.node.TransactionReceipt(ctx, txHash)
		if errors.Is(err, ethereum.NotFound) {
			return false, nil
		}
		if err != nil {
			return false, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to fetch transaction receipt", err)
		}
		if receipt.Status != ethtypes.ReceiptStatusSuccessful {
			return false, apperrors.Execution(apperrors.CodeExecutionReverted, "deployment transaction reverted", nil)
		}
		return true, nil
	})
}

// awaitUserOp waits for the bundler to report inclusion and fails when
// the operation reverted on chain.
func (c *Coordinator) awaitUserOp(ctx context.Context, opHash common.Hash) (*chain.UserOperationReceipt, error) {
	var receipt *chain.UserOperationReceipt
	err := c.poll(ctx, func(ctx context.Context) (bool, error) {
		r, err := c.bundler.UserOperationReceipt(ctx, opHash)
		if err != nil {
			return false, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to fetch user operation receipt", err)
		}
		if r == nil {
			return false, nil
		}
		if !r.Success {
			return false, apperrors.Execution(apperrors.CodeExecutionReverted, "deployment operation reverted", nil)
		}
		receipt = r
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// awaitCode waits until the account has code, which is the only signal an
// intent-triggered deployment leaves behind.
func (c *Coordinator) awaitCode(ctx context.Context, account common.Address) error {
	return c.poll(ctx, func(ctx context.Context) (bool, error) {
		code, err := c.node.CodeAt(ctx, account)
		if err != nil {
			return false, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to read account code", err)
		}
		return len(code) > 0, nil
	})
}
