package contracts

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsFullyPopulated(t *testing.T) {
	d := Default()

	zero := common.Address{}
	for name, addr := range map[string]common.Address{
		"entry point":            d.EntryPoint,
		"registry":               d.Registry,
		"ownable validator":      d.OwnableValidator,
		"webauthn validator":     d.WebAuthnValidator,
		"multi factor validator": d.MultiFactorValidator,
		"expiring validator":     d.ExpiringOwnableValidator,
		"smart sessions":         d.SmartSessionValidator,
		"social recovery":        d.SocialRecoveryValidator,
		"safe proxy factory":     d.Safe.ProxyFactory,
		"safe singleton":         d.Safe.Singleton,
		"safe 7579 adapter":      d.Safe.Adapter,
		"safe launchpad":         d.Safe.Launchpad,
		"sudo policy":            d.SessionPolicies.Sudo,
		"spending policy":        d.SessionPolicies.SpendingLimits,
		"time frame policy":      d.SessionPolicies.TimeFrame,
		"usage policy":           d.SessionPolicies.UsageLimit,
		"value policy":           d.SessionPolicies.ValueLimit,
		"action policy":          d.SessionPolicies.UniversalAction,
		"kernel factory":         d.Kernel.Factory,
		"kernel implementation":  d.Kernel.Implementation,
		"nexus factory":          d.Nexus.Factory,
		"nexus implementation":   d.Nexus.Implementation,
		"nexus bootstrap":        d.Nexus.Bootstrap,
		"startale factory":       d.Startale.Factory,
		"simple7702 delegate":    d.Simple7702.Implementation,
	} {
		assert.NotEqual(t, zero, addr, name)
	}

	require.NotEmpty(t, d.Attesters)
	assert.Equal(t, 1, d.AttesterThreshold)
	assert.NotEqual(t, common.Hash{}, d.Safe.ProxyInitCodeHash)
}

func TestWithDoesNotMutateReceiver(t *testing.T) {
	base := Default()
	baseAttester := base.Attesters[0]

	custom := base.With(func(d *Deployments) {
		d.EntryPoint = common.HexToAddress("0x01")
		d.Attesters[0] = common.HexToAddress("0x02")
		d.P256PrecompileChains[1] = true
	})

	assert.Equal(t, common.HexToAddress("0x01"), custom.EntryPoint)
	assert.NotEqual(t, base.EntryPoint, custom.EntryPoint)
	assert.Equal(t, baseAttester, base.Attesters[0])
	assert.False(t, base.P256PrecompileChains[1])
	assert.True(t, custom.P256PrecompileChains[1])
}

func TestSupportsP256Precompile(t *testing.T) {
	d := Default()

	assert.True(t, d.SupportsP256Precompile(8453))
	assert.True(t, d.SupportsP256Precompile(42161))
	assert.False(t, d.SupportsP256Precompile(1))
}
