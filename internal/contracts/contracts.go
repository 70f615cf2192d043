package contracts

import (
	"github.com/ethereum/go-ethereum/common"
)

// Deployments is the address book of well-known contract deployments the
// account derivations rely on. It is plain data: callers integrating
// against other deployments replace entries wholesale via With. Defaults
// track the canonical CREATE2 deployments shared across chains.
type Deployments struct {
	// EntryPoint is the ERC-4337 v0.7 entry point.
	EntryPoint common.Address

	// Registry is the ERC-7484 module registry consulted at account setup,
	// with the attesters accounts trust and the attestation threshold.
	Registry          common.Address
	Attesters         []common.Address
	AttesterThreshold int

	// Validator modules shared by all providers.
	OwnableValidator         common.Address
	WebAuthnValidator        common.Address
	MultiFactorValidator     common.Address
	ExpiringOwnableValidator common.Address
	SmartSessionValidator    common.Address
	SocialRecoveryValidator  common.Address

	// IntentExecutor settles cross-chain intents on the account.
	IntentExecutor common.Address

	// SessionPolicies are the policy contracts session permissions are
	// built from.
	SessionPolicies SessionPolicyDeployment

	Safe       SafeDeployment
	Kernel     KernelDeployment
	Nexus      NexusDeployment
	Startale   StartaleDeployment
	Simple7702 Simple7702Deployment

	// P256PrecompileChains lists chains with the RIP-7212 P-256 verifier
	// precompile. WebAuthn signatures on these chains request the
	// precompiled verification path.
	P256PrecompileChains map[uint64]bool
}

// SessionPolicyDeployment lists the policy contracts attachable to
// session permissions.
type SessionPolicyDeployment struct {
	Sudo            common.Address
	SpendingLimits  common.Address
	TimeFrame       common.Address
	UsageLimit      common.Address
	ValueLimit      common.Address
	UniversalAction common.Address
}

// SafeDeployment covers the Safe proxy stack with the 7579 adapter.
type SafeDeployment struct {
	ProxyFactory common.Address
	Singleton    common.Address
	Adapter      common.Address
	Launchpad    common.Address
	// ProxyInitCodeHash is keccak256 of the proxy creation code with the
	// ABI-encoded singleton appended, for the factory/singleton pair
	// above. Override together with the pair.
	ProxyInitCodeHash common.Hash
}

// KernelDeployment covers the Kernel v3 factory stack.
type KernelDeployment struct {
	Factory        common.Address
	MetaFactory    common.Address
	Implementation common.Address
}

// NexusDeployment covers the Nexus factory stack.
type NexusDeployment struct {
	Factory        common.Address
	Implementation common.Address
	Bootstrap      common.Address
}

// StartaleDeployment covers the Startale account factory stack.
type StartaleDeployment struct {
	Factory        common.Address
	Implementation common.Address
	Bootstrap      common.Address
}

// Simple7702Deployment is the delegate target of minimal EIP-7702
// accounts.
type Simple7702Deployment struct {
	Implementation common.Address
}

// Default returns the address book for the canonical public deployments.
func Default() Deployments {
	return Deployments{
		EntryPoint: common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032"),

		Registry:          common.HexToAddress("0x000000000069E2a187AEFFb852bF3cCdC95151B2"),
		Attesters:         []common.Address{common.HexToAddress("0x000000333034E9f539ce08819E12c1b8Cb29084d")},
		AttesterThreshold: 1,

		OwnableValidator:         common.HexToAddress("0x000000000013fdb5234e4e3162a810f54d9f7e98"),
		WebAuthnValidator:        common.HexToAddress("0x0000000000578c4cb0e472a5462da43c495c3f33"),
		MultiFactorValidator:     common.HexToAddress("0xf6bdf42c9be18ceca5c06c42a43daf7fbbe7896b"),
		ExpiringOwnableValidator: common.HexToAddress("0xdc38f07b060374b6480c4bf06231e7d10955bca4"),
		SmartSessionValidator:    common.HexToAddress("0x00000000002B0eCfbD0496EE71e01257dA0E37DE"),
		SocialRecoveryValidator:  common.HexToAddress("0xA04D053b3C8021e8D5bF641816c42dAA75D8b597"),

		IntentExecutor: common.HexToAddress("0x00000000005aF197cf2c9B5a9A94eE0dbcF2b4A7"),

		SessionPolicies: SessionPolicyDeployment{
			Sudo:            common.HexToAddress("0x0000003111cD8e92337C100F22B7A9dbf8DEE301"),
			SpendingLimits:  common.HexToAddress("0x00000088D48cF102A8Cdb0137A9b173f957c6343"),
			TimeFrame:       common.HexToAddress("0x0000000000A9C5a0a4e2d2C0DF2d1dC5c3A9a970"),
			UsageLimit:      common.HexToAddress("0x00000000AF7dE53e1b2c8aBE8B7769426Bb01b9A"),
			ValueLimit:      common.HexToAddress("0x000000000006f89E842c6eD9318Ee42ada572b3a"),
			UniversalAction: common.HexToAddress("0x0000006DDA6c463511C4e9B05CFc34C1247fCF1F"),
		},

		Safe: SafeDeployment{
			ProxyFactory:      common.HexToAddress("0x4e1DCf7AD4e460CfD30791CCC4F9c8a4f820ec67"),
			Singleton:         common.HexToAddress("0x41675C099F32341bf84BFc5382aF534df5C7461a"),
			Adapter:           common.HexToAddress("0x7579EE8307284F293B1927136486880611F20002"),
			Launchpad:         common.HexToAddress("0x7579011aB74c46090561ea277Ba79D510c6C00ff"),
			ProxyInitCodeHash: common.HexToHash("0x76733d705f71b79841c0ee960a0ca880f779cde7ef446c989e6d23efc0a4adfb"),
		},
		Kernel: KernelDeployment{
			Factory:        common.HexToAddress("0xaac5D4240AF87249B3f71BC8E4A2cae074A3E419"),
			MetaFactory:    common.HexToAddress("0xd703aaE79538628d27099B8c4f621bE4CCd142d5"),
			Implementation: common.HexToAddress("0xBAC849bB641841b44E965fB01A4Bf5F074f84b4D"),
		},
		Nexus: NexusDeployment{
			Factory:        common.HexToAddress("0x000000c3A93d2c5E02Cb053AC675665b1c4217F9"),
			Implementation: common.HexToAddress("0x000000039dfcAd030719B07296710F045F0558f7"),
			Bootstrap:      common.HexToAddress("0x879fa30248eeb693dcCE3eA94a743622170a3658"),
		},
		Startale: StartaleDeployment{
			Factory:        common.HexToAddress("0x0000000000D7E6Fb4ad9d6fA64b4B3f10800a0B4"),
			Implementation: common.HexToAddress("0x000000000088B27A4276A75fBc7D82f4Fa82ab43"),
			Bootstrap:      common.HexToAddress("0x00000000008eF5c0043E0f13B0c75EcFB2579Ff7"),
		},
		Simple7702: Simple7702Deployment{
			Implementation: common.HexToAddress("0xe6Cae83BdE06E4c305530e199D7217f42808555B"),
		},

		P256PrecompileChains: map[uint64]bool{
			10:       true, // OP Mainnet
			137:      true, // Polygon PoS
			1868:     true, // Soneium
			8453:     true, // Base
			42161:    true, // Arbitrum One
			80002:    true, // Polygon Amoy
			84532:    true, // Base Sepolia
			421614:   true, // Arbitrum Sepolia
			11155420: true, // OP Sepolia
		},
	}
}

// With returns a copy of the address book with mutate applied. The copy
// owns its attester slice and precompile set, so overrides never leak into
// the receiver.
func (d Deployments) With(mutate func(*Deployments)) Deployments {
	attesters := make([]common.Address, len(d.Attesters))
	copy(attesters, d.Attesters)
	d.Attesters = attesters

	chains := make(map[uint64]bool, len(d.P256PrecompileChains))
	for id, ok := range d.P256PrecompileChains {
		chains[id] = ok
	}
	d.P256PrecompileChains = chains

	mutate(&d)
	return d
}

// SupportsP256Precompile reports whether the chain carries the RIP-7212
// verifier.
func (d Deployments) SupportsP256Precompile(chainID uint64) bool {
	return d.P256PrecompileChains[chainID]
}
