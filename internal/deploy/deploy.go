// Package deploy drives account deployment as a small state machine over
// three mutually exclusive paths: a direct factory call (or its bundler
// wrapped equivalent), an EIP-7702 delegation, and an intent-triggered
// deployment where the orchestrator provisions the account as a side
// effect of its first execution.
package deploy

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/polywallet/polywallet/internal/chain"
	"github.com/polywallet/polywallet/internal/contracts"
	"github.com/polywallet/polywallet/internal/intent"
	"github.com/polywallet/polywallet/internal/metrics"
	"github.com/polywallet/polywallet/internal/providers"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

// State names a step of the deployment state machine.
type State string

const (
	StateChecking         State = "checking"
	StateSubmittingTx     State = "submitting_tx"
	StateSubmittingOp     State = "submitting_op"
	StateSubmittingAuth   State = "submitting_auth"
	StateSubmittingIntent State = "submitting_intent"
	StateAwaiting         State = "awaiting"
	StateDeployed         State = "deployed"
	StateFailed           State = "failed"
)

// Path names a deployment path.
type Path string

const (
	PathStandard   Path = "standard"
	PathDelegation Path = "delegation"
	PathIntent     Path = "intent"
)

// Node is the chain access the coordinator needs: state reads plus
// transaction submission. chain.Client implements it.
type Node interface {
	chain.Reader
	chain.Submitter
}

// SignFunc signs a 32-byte digest for the account being deployed and
// returns the provider-packed signature. The account facade builds it from
// the adapter and the configured owner set.
type SignFunc func(ctx context.Context, digest [32]byte) ([]byte, error)

// Request describes one deployment.
type Request struct {
	Adapter providers.Adapter
	Config  types.AccountConfig
	Chain   types.Chain

	// RootValidator routes user-operation validation. Bundler-submitted
	// paths need it for the nonce key and the signature envelope.
	RootValidator types.ValidatorConfig

	// SignOp signs user-operation and intent digests. Paths submitted
	// with a deployer key do not need it.
	SignOp SignFunc
}

// Result reports where a deployment ended up.
type Result struct {
	State   State
	Path    Path
	Address common.Address

	// AlreadyDeployed is set when the code check made the call a no-op.
	AlreadyDeployed bool

	// TxHash is set for transaction-submitted paths, OpHash for
	// bundler-submitted paths, BundleID for intent-submitted ones.
	TxHash   common.Hash
	OpHash   common.Hash
	BundleID string
}

// Coordinator runs deployments. It holds no per-deployment state; every
// call re-derives what it needs from the request.
type Coordinator struct {
	node     Node
	bundler  chain.Bundler
	intents  intent.Client
	metrics  *metrics.Metrics
	observer func(State)

	entryPoint     common.Address
	intentExecutor common.Address
	pollInterval   time.Duration
	waitTimeout    time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBundler attaches a bundler for paths without a deployer key.
func WithBundler(bundler chain.Bundler) Option {
	return func(c *Coordinator) { c.bundler = bundler }
}

// WithIntentClient attaches the orchestrator client for intent-triggered
// deployments.
func WithIntentClient(client intent.Client) Option {
	return func(c *Coordinator) { c.intents = client }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithEntryPoint overrides the entry point used for bundler submissions.
func WithEntryPoint(entryPoint common.Address) Option {
	return func(c *Coordinator) { c.entryPoint = entryPoint }
}

// WithIntentExecutor overrides the executor named in deployment intents.
func WithIntentExecutor(executor common.Address) Option {
	return func(c *Coordinator) { c.intentExecutor = executor }
}

// WithPollInterval sets the receipt poll spacing.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Coordinator) { c.pollInterval = interval }
}

// WithWaitTimeout bounds the receipt wait. The surrounding context still
// applies; whichever ends first wins.
func WithWaitTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) { c.waitTimeout = timeout }
}

// WithStateObserver registers a callback invoked on every state
// transition, in order.
func WithStateObserver(observer func(State)) Option {
	return func(c *Coordinator) { c.observer = observer }
}

// NewCoordinator creates a deployment coordinator over the given node.
func NewCoordinator(node Node, opts ...Option) *Coordinator {
	book := contracts.Default()
	c := &Coordinator{
		node:           node,
		entryPoint:     book.EntryPoint,
		intentExecutor: book.IntentExecutor,
		pollInterval:   2 * time.Second,
		waitTimeout:    90 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.New(nil)
	}
	return c
}

func (c *Coordinator) setState(state State) {
	if c.observer != nil {
		c.observer(state)
	}
}

// Deploy runs the standard or delegation path for the request, chosen by
// the presence of a delegate key. Re-invoking against an already deployed
// address performs zero transactions.
func (c *Coordinator) Deploy(ctx context.Context, req Request) (result *Result, err error) {
	path := PathStandard
	if req.Config.Delegate != nil {
		path = PathDelegation
	}

	started := time.Now()
	defer func() {
		c.metrics.Deployments.WithLabelValues(string(req.Config.Provider), string(path), metrics.Outcome(err)).Inc()
		if err == nil {
			c.metrics.DeployDuration.WithLabelValues(string(req.Config.Provider), string(path)).Observe(time.Since(started).Seconds())
		} else {
			c.setState(StateFailed)
		}
	}()

	address, existing, err := c.check(ctx, req, path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	switch path {
	case PathDelegation:
		result, err = c.deployDelegation(ctx, req, address)
	default:
		result, err = c.deployStandard(ctx, req, address)
	}
	return result, err
}

// check runs the idempotency gate shared by every path: existing plain code
// is a no-op, an existing delegation is a no-op only when the delegation
// path targets the same implementation, and any other delegation marker
// fails closed.
func (c *Coordinator) check(ctx context.Context, req Request, path Path) (common.Address, *Result, error) {
	c.setState(StateChecking)

	address, err := req.Adapter.Address(req.Config)
	if err != nil {
		return common.Address{}, nil, err
	}

	code, err := c.node.CodeAt(ctx, address)
	if err != nil {
		return common.Address{}, nil, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to read account code", err)
	}
	if len(code) == 0 {
		return address, nil, nil
	}

	if delegated, ok := ethtypes.ParseDelegation(code); ok {
		if path == PathDelegation {
			args, argsErr := req.Adapter.DeployArgs(req.Config)
			if argsErr == nil && args.HasImplementation() && delegated == args.Implementation {
				c.setState(StateDeployed)
				return address, &Result{State: StateDeployed, Path: path, Address: address, AlreadyDeployed: true}, nil
			}
		}
		return common.Address{}, nil, apperrors.ErrExistingDelegation.WithProvider(string(req.Config.Provider))
	}

	c.setState(StateDeployed)
	return address, &Result{State: StateDeployed, Path: path, Address: address, AlreadyDeployed: true}, nil
}

// nonceKeyFor returns the entry-point nonce key routing validation to the
// request's root validator.
func (c *Coordinator) nonceKeyFor(req Request) (*big.Int, error) {
	if req.RootValidator.Address == (common.Address{}) {
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration, "root validator is required for bundler submission")
	}
	return req.Adapter.NonceKey(req.Config, req.RootValidator.Address, 0)
}
