package providers

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywallet/polywallet/internal/codec"
	"github.com/polywallet/polywallet/internal/contracts"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

func TestStartaleAddressMatchesDeployArgs(t *testing.T) {
	adapter := newAdapter(t, types.ProviderStartale)
	cfg := ecdsaConfig(types.ProviderStartale)

	args, err := adapter.DeployArgs(cfg)
	require.NoError(t, err)
	addr, err := adapter.Address(cfg)
	require.NoError(t, err)

	_, values, err := codec.DecodeCall(startaleFactoryABI, args.FactoryData)
	require.NoError(t, err)
	initData := values[0].([]byte)

	salt := codec.Keccak(initData, args.Salt[:])
	recomputed := crypto.CreateAddress2(args.Factory, salt, args.InitCodeHash.Bytes())
	assert.Equal(t, addr, recomputed)
	assert.Equal(t, contracts.Default().Startale.Factory, args.Factory)
}

func TestStartaleBootstrapOmitsAttesters(t *testing.T) {
	book := contracts.Default()
	adapter := newAdapter(t, types.ProviderStartale)

	args, err := adapter.DeployArgs(ecdsaConfig(types.ProviderStartale))
	require.NoError(t, err)

	_, values, err := codec.DecodeCall(startaleFactoryABI, args.FactoryData)
	require.NoError(t, err)
	initValues, err := factoryInitArgs.Unpack(values[0].([]byte))
	require.NoError(t, err)
	assert.Equal(t, book.Startale.Bootstrap, initValues[0].(common.Address))

	bootstrapCall := initValues[1].([]byte)
	method, bootValues, err := codec.DecodeCall(startaleBootstrapABI, bootstrapCall)
	require.NoError(t, err)
	assert.Equal(t, "initAccount", method.Name)
	require.Len(t, bootValues, 5)
	assert.Equal(t, book.Registry, bootValues[4].(common.Address))
	assert.True(t, containsPadded(bootstrapCall, book.OwnableValidator))
}

// Startale accounts route every signature through an explicit validator
// prefix, root included.
func TestStartalePackSignatureAlwaysExplicit(t *testing.T) {
	book := contracts.Default()
	adapter := newAdapter(t, types.ProviderStartale)
	sig := []byte{0xaa, 0xbb}

	packed, err := adapter.PackSignature(sig, types.RootValidator(book.OwnableValidator))
	require.NoError(t, err)
	assert.Equal(t, codec.Packed(book.OwnableValidator.Bytes(), sig), packed)

	packed, err = adapter.PackSignature(sig, types.ValidatorConfig{Address: sessionModAddr})
	require.NoError(t, err)
	assert.Equal(t, codec.Packed(sessionModAddr.Bytes(), sig), packed)
}

func TestStartaleNonceKeyLayout(t *testing.T) {
	adapter := newAdapter(t, types.ProviderStartale)
	cfg := ecdsaConfig(types.ProviderStartale)

	key, err := adapter.NonceKey(cfg, sessionModAddr, 5)
	require.NoError(t, err)
	expected := codec.Packed(
		codec.PackedUint64(5, 3), []byte{0x00}, sessionModAddr.Bytes())
	assert.Equal(t, expected, key.FillBytes(make([]byte, 24)))

	_, err = adapter.NonceKey(cfg, sessionModAddr, 1<<24)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
}

func TestStartaleDivergesFromNexus(t *testing.T) {
	startale := newAdapter(t, types.ProviderStartale)
	nexus := newAdapter(t, types.ProviderNexus)

	startaleAddr, err := startale.Address(ecdsaConfig(types.ProviderStartale))
	require.NoError(t, err)
	nexusAddr, err := nexus.Address(ecdsaConfig(types.ProviderNexus))
	require.NoError(t, err)
	assert.NotEqual(t, nexusAddr, startaleAddr)

	sig := []byte{0x01}
	root := types.RootValidator(contracts.Default().OwnableValidator)
	startaleSig, err := startale.PackSignature(sig, root)
	require.NoError(t, err)
	nexusSig, err := nexus.PackSignature(sig, root)
	require.NoError(t, err)
	assert.NotEqual(t, nexusSig, startaleSig)
}
