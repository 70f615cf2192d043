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

func TestNexusAddressMatchesDeployArgs(t *testing.T) {
	adapter := newAdapter(t, types.ProviderNexus)
	cfg := ecdsaConfig(types.ProviderNexus)

	args, err := adapter.DeployArgs(cfg)
	require.NoError(t, err)
	addr, err := adapter.Address(cfg)
	require.NoError(t, err)

	_, values, err := codec.DecodeCall(nexusFactoryABI, args.FactoryData)
	require.NoError(t, err)
	initData := values[0].([]byte)

	salt := codec.Keccak(initData, args.Salt[:])
	recomputed := crypto.CreateAddress2(args.Factory, salt, args.InitCodeHash.Bytes())
	assert.Equal(t, addr, recomputed)
	assert.Equal(t, contracts.Default().Nexus.Factory, args.Factory)
}

func TestNexusFactoryDataBootstrap(t *testing.T) {
	book := contracts.Default()
	adapter := newAdapter(t, types.ProviderNexus)

	args, err := adapter.DeployArgs(ecdsaConfig(types.ProviderNexus))
	require.NoError(t, err)

	_, values, err := codec.DecodeCall(nexusFactoryABI, args.FactoryData)
	require.NoError(t, err)
	initValues, err := factoryInitArgs.Unpack(values[0].([]byte))
	require.NoError(t, err)
	assert.Equal(t, book.Nexus.Bootstrap, initValues[0].(common.Address))

	bootstrapCall := initValues[1].([]byte)
	method, bootValues, err := codec.DecodeCall(nexusBootstrapABI, bootstrapCall)
	require.NoError(t, err)
	assert.Equal(t, "initNexus", method.Name)
	assert.True(t, containsPadded(bootstrapCall, book.OwnableValidator))
	assert.True(t, containsPadded(bootstrapCall, book.IntentExecutor))
	assert.Equal(t, book.Registry, bootValues[4].(common.Address))
	assert.Equal(t, book.Attesters, bootValues[5].([]common.Address))
	assert.Equal(t, uint8(book.AttesterThreshold), bootValues[6].(uint8))
}

func TestNexusInitCallReplaysBootstrap(t *testing.T) {
	adapter := newAdapter(t, types.ProviderNexus)

	args, err := adapter.DeployArgs(ecdsaConfig(types.ProviderNexus))
	require.NoError(t, err)

	_, factoryValues, err := codec.DecodeCall(nexusFactoryABI, args.FactoryData)
	require.NoError(t, err)
	method, initValues, err := codec.DecodeCall(nexusAccountABI, args.InitCall)
	require.NoError(t, err)
	assert.Equal(t, "initializeAccount", method.Name)
	assert.Equal(t, factoryValues[0].([]byte), initValues[0].([]byte))
}

func TestNexusPackSignatureZeroesRoot(t *testing.T) {
	adapter := newAdapter(t, types.ProviderNexus)
	sig := []byte{0xaa, 0xbb}

	packed, err := adapter.PackSignature(sig, types.RootValidator(contracts.Default().OwnableValidator))
	require.NoError(t, err)
	assert.Equal(t, codec.Packed(make([]byte, 20), sig), packed)

	packed, err = adapter.PackSignature(sig, types.ValidatorConfig{Address: sessionModAddr})
	require.NoError(t, err)
	assert.Equal(t, codec.Packed(sessionModAddr.Bytes(), sig), packed)
}

func TestNexusNonceKeyLayout(t *testing.T) {
	adapter := newAdapter(t, types.ProviderNexus)
	cfg := ecdsaConfig(types.ProviderNexus)

	key, err := adapter.NonceKey(cfg, sessionModAddr, 0x0102)
	require.NoError(t, err)
	expected := codec.Packed(
		codec.PackedUint64(0x0102, 3), []byte{0x00}, sessionModAddr.Bytes())
	assert.Equal(t, expected, key.FillBytes(make([]byte, 24)))

	_, err = adapter.NonceKey(cfg, sessionModAddr, 1<<24)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
}

func TestNexusInstallCallsSingle(t *testing.T) {
	adapter := newAdapter(t, types.ProviderNexus)

	calls, err := adapter.InstallCalls(ecdsaConfig(types.ProviderNexus), types.Module{
		Address:  sessionModAddr,
		Kind:     types.ModuleKindValidator,
		InitData: []byte{0x01},
	})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, installModuleSelector[:], calls[0].Data[:4])
}

func TestNexusExternalFactoryData(t *testing.T) {
	book := contracts.Default()
	adapter := newAdapter(t, types.ProviderNexus)

	customInit := []byte{0x11, 0x22, 0x33}
	var salt [32]byte
	salt[0] = 0x77
	external, err := nexusFactoryABI.Pack("createAccount", customInit, salt)
	require.NoError(t, err)

	cfg := ecdsaConfig(types.ProviderNexus)
	cfg.InitData = external
	addr, err := adapter.Address(cfg)
	require.NoError(t, err)

	expected := crypto.CreateAddress2(book.Nexus.Factory,
		codec.Keccak(customInit, salt[:]),
		codec.ERC1967InitCodeHash(book.Nexus.Implementation).Bytes())
	assert.Equal(t, expected, addr)
}

func TestNexusExternalFactoryDataRejectsGarbage(t *testing.T) {
	adapter := newAdapter(t, types.ProviderNexus)

	cfg := ecdsaConfig(types.ProviderNexus)
	cfg.InitData = []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	_, err := adapter.Address(cfg)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnsupportedConfiguration))
}
