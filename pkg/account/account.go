// Package account is the uniform entry point over the supported
// smart-account providers: one surface for addressing, deployment,
// signing, module management, sessions and recovery, identical in
// behavior regardless of the provider a config selects.
package account

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polywallet/polywallet/internal/chain"
	"github.com/polywallet/polywallet/internal/contracts"
	"github.com/polywallet/polywallet/internal/deploy"
	"github.com/polywallet/polywallet/internal/intent"
	"github.com/polywallet/polywallet/internal/logger"
	"github.com/polywallet/polywallet/internal/metrics"
	"github.com/polywallet/polywallet/internal/modules"
	"github.com/polywallet/polywallet/internal/providers"
	"github.com/polywallet/polywallet/internal/signers"
	"github.com/polywallet/polywallet/internal/smartsession"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

// Facade binds the provider adapters, the module catalog, the signer
// resolver and the deployment coordinator to one chain. It holds no
// per-account state; every call re-derives what it needs from the config.
type Facade struct {
	chain   types.Chain
	book    contracts.Deployments
	node    deploy.Node
	bundler chain.Bundler
	intents intent.Client
	metrics *metrics.Metrics

	catalog    *modules.Catalog
	sessions   *smartsession.Codec
	resolver   *signers.Resolver
	deployOpts []deploy.Option
}

// Option configures a Facade.
type Option func(*Facade)

// WithNode attaches chain access. Deployment, nonce reads and installed
// module checks need it; pure derivations do not.
func WithNode(node deploy.Node) Option {
	return func(f *Facade) { f.node = node }
}

// WithBundler attaches an ERC-4337 bundler for deployments without a
// deployer key.
func WithBundler(bundler chain.Bundler) Option {
	return func(f *Facade) { f.bundler = bundler }
}

// WithIntentClient attaches the orchestrator client for intent-triggered
// deployment.
func WithIntentClient(client intent.Client) Option {
	return func(f *Facade) { f.intents = client }
}

// WithContracts overrides the default deployment book, for chains where
// the canonical module addresses differ.
func WithContracts(book contracts.Deployments) Option {
	return func(f *Facade) { f.book = book }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Facade) { f.metrics = m }
}

// WithDeployOptions passes extra options through to the deployment
// coordinator, poll tuning among them.
func WithDeployOptions(opts ...deploy.Option) Option {
	return func(f *Facade) { f.deployOpts = append(f.deployOpts, opts...) }
}

// New builds a facade bound to the given chain.
func New(chainRef types.Chain, opts ...Option) *Facade {
	f := &Facade{
		chain: chainRef,
		book:  contracts.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.catalog = modules.NewCatalog(f.book)
	f.sessions = smartsession.NewCodec(f.catalog)
	f.resolver = signers.NewResolver(f.book, chainRef)
	if f.metrics == nil {
		f.metrics = metrics.New(nil)
	}
	return f
}

func (f *Facade) adapter(cfg types.AccountConfig) (providers.Adapter, error) {
	return providers.ForKind(cfg.Provider, f.book, f.chain)
}

// Address derives the deterministic account address for the config. Pure;
// repeated calls agree without touching the chain.
func (f *Facade) Address(cfg types.AccountConfig) (common.Address, error) {
	adapter, err := f.adapter(cfg)
	if err != nil {
		return common.Address{}, err
	}
	return adapter.Address(cfg)
}

// DeployArgs derives the deployment description for the config without
// submitting anything.
func (f *Facade) DeployArgs(cfg types.AccountConfig) (types.DeployArgs, error) {
	adapter, err := f.adapter(cfg)
	if err != nil {
		return types.DeployArgs{}, err
	}
	return adapter.DeployArgs(cfg)
}

// IsDeployed reports whether the config's address carries code.
func (f *Facade) IsDeployed(ctx context.Context, cfg types.AccountConfig) (bool, error) {
	if f.node == nil {
		return false, errNodeRequired()
	}
	address, err := f.Address(cfg)
	if err != nil {
		return false, err
	}
	code, err := f.node.CodeAt(ctx, address)
	if err != nil {
		return false, apperrors.Execution(apperrors.CodeSubmissionFailed, "failed to read account code", err)
	}
	return len(code) > 0, nil
}

// Deploy deploys the config's account, choosing the delegation path when a
// delegate key is present and the standard factory path otherwise.
// Sessions supplied here are bootstrapped with the account, so the first
// transaction can already be session-signed.
func (f *Facade) Deploy(ctx context.Context, cfg types.AccountConfig, sessions ...types.Session) (*deploy.Result, error) {
	req, coordinator, err := f.deployRequest(ctx, cfg, sessions)
	if err != nil {
		return nil, err
	}
	return coordinator.Deploy(ctx, req)
}

// DeployViaIntent deploys through the intent orchestrator: the account
// owners sign a no-op intent and the orchestrator provisions the account
// while settling it. No deployer key, bundler or account gas is needed.
func (f *Facade) DeployViaIntent(ctx context.Context, cfg types.AccountConfig) (*deploy.Result, error) {
	req, coordinator, err := f.deployRequest(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	return coordinator.DeployViaIntent(ctx, req)
}

// Sign resolves a signer topology against a digest: threshold sets sign
// independently and concatenate in listed order, composite sets recurse.
// The output is the raw validator payload, not yet provider-wrapped.
func (f *Facade) Sign(ctx context.Context, set types.SignerSet, hash [32]byte) ([]byte, error) {
	return f.resolver.Sign(ctx, set, hash)
}

func (f *Facade) deployRequest(ctx context.Context, cfg types.AccountConfig, sessions []types.Session) (deploy.Request, *deploy.Coordinator, error) {
	adapter, err := f.adapter(cfg)
	if err != nil {
		return deploy.Request{}, nil, err
	}
	cfg, err = f.withSessions(adapter, cfg, sessions)
	if err != nil {
		return deploy.Request{}, nil, err
	}

	coordinator, err := f.coordinator()
	if err != nil {
		return deploy.Request{}, nil, err
	}

	req := deploy.Request{
		Adapter: adapter,
		Config:  cfg,
		Chain:   f.chain,
	}
	if validator, verr := f.rootValidator(cfg); verr == nil {
		req.RootValidator = validator
		req.SignOp = f.signFunc(adapter, cfg, validator)
	} else if cfg.Deployer == nil {
		// Without a deployer key every remaining path signs through the
		// root validator, so the derivation failure is the real error.
		return deploy.Request{}, nil, verr
	}

	logger.Info(ctx, "deployment prepared", "provider", cfg.Provider, "chain", f.chain.ID)
	return req, coordinator, nil
}

// withSessions folds deploy-time sessions into the config as a spare
// session validator.
func (f *Facade) withSessions(adapter providers.Adapter, cfg types.AccountConfig, sessions []types.Session) (types.AccountConfig, error) {
	if len(sessions) == 0 {
		return cfg, nil
	}
	if !adapter.SupportsModules() {
		return types.AccountConfig{}, apperrors.UnsupportedForProvider(string(cfg.Provider), "smart sessions")
	}
	module, err := f.sessions.SessionValidatorModule(sessions...)
	if err != nil {
		return types.AccountConfig{}, err
	}
	cfg.ExtraValidators = append(append([]types.Module{}, cfg.ExtraValidators...), module)
	return cfg, nil
}

// rootValidator derives the validator the account boots with.
func (f *Facade) rootValidator(cfg types.AccountConfig) (types.ValidatorConfig, error) {
	setup, err := f.catalog.DefaultSetup(cfg, cfg.ExtraValidators...)
	if err != nil {
		return types.ValidatorConfig{}, err
	}
	return types.RootValidator(setup.RootValidator().Address), nil
}

// signFunc builds the digest-to-packed-signature pipeline for the config:
// provider digest transform, owner topology resolution, provider envelope.
func (f *Facade) signFunc(adapter providers.Adapter, cfg types.AccountConfig, validator types.ValidatorConfig) deploy.SignFunc {
	return func(ctx context.Context, digest [32]byte) ([]byte, error) {
		prepared, err := adapter.SignDigest(cfg, digest, validator)
		if err != nil {
			return nil, err
		}
		set, err := signers.Convert(cfg.Owners)
		if err != nil {
			return nil, err
		}
		raw, err := f.resolver.Sign(ctx, set, prepared)
		if err != nil {
			return nil, err
		}
		f.metrics.Signatures.WithLabelValues(string(cfg.Provider), string(set.Kind)).Inc()
		return adapter.PackSignature(raw, validator)
	}
}

func (f *Facade) coordinator() (*deploy.Coordinator, error) {
	if f.node == nil {
		return nil, errNodeRequired()
	}
	opts := []deploy.Option{
		deploy.WithEntryPoint(f.book.EntryPoint),
		deploy.WithIntentExecutor(f.book.IntentExecutor),
		deploy.WithMetrics(f.metrics),
	}
	if f.bundler != nil {
		opts = append(opts, deploy.WithBundler(f.bundler))
	}
	if f.intents != nil {
		opts = append(opts, deploy.WithIntentClient(f.intents))
	}
	opts = append(opts, f.deployOpts...)
	return deploy.NewCoordinator(f.node, opts...), nil
}

func errNodeRequired() error {
	return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration, "a chain node is required for this operation")
}
