package deploy

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/polywallet/polywallet/internal/codec"
	"github.com/polywallet/polywallet/internal/intent"
	"github.com/polywallet/polywallet/internal/logger"
	"github.com/polywallet/polywallet/internal/metrics"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

// intentCall is the orchestrator's wire form of one call.
type intentCall struct {
	To    common.Address `json:"to"`
	Value string         `json:"value"`
	Data  hexutil.Bytes  `json:"data"`
}

// deployIntentPayload asks the orchestrator to provision the account as a
// side effect of executing the signed intent.
type deployIntentPayload struct {
	Type      string         `json:"type"`
	ChainID   uint64         `json:"chainId"`
	Account   common.Address `json:"account"`
	Executor  common.Address `json:"executor"`
	Nonce     string         `json:"nonce"`
	Calls     []intentCall   `json:"calls"`
	Signature hexutil.Bytes  `json:"signature"`
}

// DeployViaIntent signs a no-op single-chain intent and hands it to the
// orchestrator, which deploys the account before settling it. Requires no
// deployer key, no bundler, and no gas on the account.
func (c *Coordinator) DeployViaIntent(ctx context.Context, req Request) (result *Result, err error) {
	started := time.Now()
	defer func() {
		outcome := metrics.Outcome(err)
		c.metrics.Deployments.WithLabelValues(string(req.Config.Provider), string(PathIntent), outcome).Inc()
		c.metrics.IntentSubmissions.WithLabelValues("deploy", outcome).Inc()
		if err == nil {
			c.metrics.DeployDuration.WithLabelValues(string(req.Config.Provider), string(PathIntent)).Observe(time.Since(started).Seconds())
		} else {
			c.setState(StateFailed)
		}
	}()

	if c.intents == nil {
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration, "an intent client is required for intent deployment")
	}
	if req.SignOp == nil {
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration, "an operation signer is required for intent deployment")
	}

	address, existing, err := c.check(ctx, req, PathIntent)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	c.setState(StateSubmittingIntent)

	// A self-call with no data gives the orchestrator an intent worth
	// settling while leaving deployment as its only observable effect.
	calls := []types.Call{{To: address}}
	td, err := intent.SingleChainTypedData(intent.SingleChainIntent{
		Account:  address,
		Executor: c.intentExecutor,
		ChainID:  req.Chain.ID,
		Nonce:    big.NewInt(0),
		Ops:      intent.OpBundle{Calls: calls},
	})
	if err != nil {
		return nil, err
	}
	digest, err := codec.HashTypedData(td)
	if err != nil {
		return nil, err
	}
	signature, err := req.SignOp(ctx, digest)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(deployIntentPayload{
		Type:      "deploy",
		ChainID:   req.Chain.ID,
		Account:   address,
		Executor:  c.intentExecutor,
		Nonce:     "0",
		Calls:     wireCalls(calls),
		Signature: signature,
	})
	if err != nil {
		return nil, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to encode deploy intent", err)
	}

	receipt, err := c.intents.SubmitDeployIntent(ctx, payload)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "deploy intent submitted", "bundle_id", receipt.BundleID, "account", address)

	c.setState(StateAwaiting)
	if err := c.awaitCode(ctx, address); err != nil {
		return nil, err
	}

	c.setState(StateDeployed)
	return &Result{State: StateDeployed, Path: PathIntent, Address: address, BundleID: receipt.BundleID}, nil
}

func wireCalls(calls []types.Call) []intentCall {
	wire := make([]intentCall, len(calls))
	for i, call := range calls {
		wire[i] = intentCall{To: call.To, Value: call.CallValue().String(), Data: call.Data}
	}
	return wire
}
