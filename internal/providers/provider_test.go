package providers

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywallet/polywallet/internal/contracts"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

var (
	testOwner      = common.HexToAddress("0xf6c02c78ded62973b43bfa523b247da099486936")
	testOwnerTwo   = common.HexToAddress("0x6092086a3dc0020cd604a68fcf5d430007d51bb7")
	testChain      = types.Chain{ID: 1, Name: "mainnet"}
	sessionModAddr = common.HexToAddress("0x00000000002B0eCfbD0496EE71e01257dA0E37DE")
)

func newAdapter(t *testing.T, kind types.ProviderKind) Adapter {
	t.Helper()
	adapter, err := ForKind(kind, contracts.Default(), testChain)
	require.NoError(t, err)
	return adapter
}

func ecdsaConfig(kind types.ProviderKind) types.AccountConfig {
	return types.AccountConfig{
		Provider: kind,
		Owners:   types.EcdsaOwners(1, types.AddressOnly(testOwner)),
	}
}

func TestForKindCoversAllProviders(t *testing.T) {
	for _, kind := range []types.ProviderKind{
		types.ProviderSafe,
		types.ProviderKernel,
		types.ProviderNexus,
		types.ProviderStartale,
		types.ProviderSimple7702,
	} {
		t.Run(kind.String(), func(t *testing.T) {
			adapter, err := ForKind(kind, contracts.Default(), testChain)
			require.NoError(t, err)
			assert.Equal(t, kind, adapter.Kind())
		})
	}
}

func TestForKindRejectsUnknownProvider(t *testing.T) {
	_, err := ForKind(types.ProviderKind("argent"), contracts.Default(), testChain)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
}

func TestAdaptersRejectMismatchedConfig(t *testing.T) {
	adapter := newAdapter(t, types.ProviderKernel)
	_, err := adapter.Address(ecdsaConfig(types.ProviderNexus))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnsupportedConfiguration))
}

func TestAddressesDifferAcrossProviders(t *testing.T) {
	seen := map[common.Address]types.ProviderKind{}
	for _, kind := range []types.ProviderKind{
		types.ProviderSafe,
		types.ProviderKernel,
		types.ProviderNexus,
		types.ProviderStartale,
	} {
		adapter := newAdapter(t, kind)
		addr, err := adapter.Address(ecdsaConfig(kind))
		require.NoError(t, err)
		if prior, ok := seen[addr]; ok {
			t.Fatalf("%s and %s derive the same address %s", prior, kind, addr)
		}
		seen[addr] = kind
	}
}
