package smartsession

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywallet/polywallet/internal/contracts"
	"github.com/polywallet/polywallet/internal/modules"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

var sessionOwner = common.HexToAddress("0xf6c02c78ded62973b43bfa523b247da099486936")

func testCodec() *Codec {
	return NewCodec(modules.NewCatalog(contracts.Default()))
}

func testSession(salt byte) types.Session {
	return types.Session{
		Owners: types.EcdsaOwners(1, types.AddressOnly(sessionOwner)),
		Salt:   [32]byte{salt},
	}
}

func TestPermissionID(t *testing.T) {
	codec := testCodec()

	t.Run("stable across recomputation", func(t *testing.T) {
		first, err := codec.PermissionID(testSession(1))
		require.NoError(t, err)
		second, err := codec.PermissionID(testSession(1))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("salt alone changes the id", func(t *testing.T) {
		first, err := codec.PermissionID(testSession(1))
		require.NoError(t, err)
		second, err := codec.PermissionID(testSession(2))
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("owners change the id", func(t *testing.T) {
		first, err := codec.PermissionID(testSession(1))
		require.NoError(t, err)

		other := testSession(1)
		other.Owners = types.EcdsaOwners(1,
			types.AddressOnly(common.HexToAddress("0x6092086a3dc0020cd604a68fcf5d430007d51bb7")))
		second, err := codec.PermissionID(other)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})
}

func TestEncodeSignatureUse(t *testing.T) {
	codec := testCodec()
	permissionID := [32]byte{0xaa, 0xbb}
	sig := []byte{0xde, 0xad, 0xbe, 0xef}

	encoded, err := codec.EncodeSignature(ModeUse, permissionID, sig, nil)
	require.NoError(t, err)

	require.Len(t, encoded, 1+32+4)
	assert.Equal(t, byte(0x00), encoded[0])
	assert.Equal(t, permissionID[:], encoded[1:33])
	assert.Equal(t, sig, encoded[33:])
}

func TestEncodeSignatureEnable(t *testing.T) {
	codec := testCodec()
	permissionID := [32]byte{0x01}
	sig := []byte{0xde, 0xad}

	t.Run("requires payload", func(t *testing.T) {
		_, err := codec.EncodeSignature(ModeEnable, permissionID, sig, nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
	})

	t.Run("embeds the session definition", func(t *testing.T) {
		enable := &EnableData{
			Session:          testSession(3),
			ChainDigestIndex: 1,
			HashesAndChainIDs: []ChainDigest{
				{ChainID: 1, Digest: [32]byte{0x11}},
				{ChainID: 8453, Digest: [32]byte{0x22}},
			},
			PermissionEnableSig: []byte{0x99, 0x88},
		}

		encoded, err := codec.EncodeSignature(ModeEnable, permissionID, sig, enable)
		require.NoError(t, err)

		assert.Equal(t, byte(0x01), encoded[0])
		// the session validator's init data travels inside the payload
		validator, err := codec.catalog.OwnerValidator(enable.Session.Owners)
		require.NoError(t, err)
		assert.True(t, bytes.Contains(encoded, validator.InitData))
		assert.True(t, bytes.Contains(encoded, enable.PermissionEnableSig))
	})
}

func TestEncodeSignatureUnsafeEnable(t *testing.T) {
	codec := testCodec()

	_, err := codec.EncodeSignature(ModeUnsafeEnable, [32]byte{}, nil, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotImplemented))
}

func TestEncodeSignatureUnknownMode(t *testing.T) {
	codec := testCodec()

	_, err := codec.EncodeSignature(Mode(0x7f), [32]byte{}, nil, nil)
	assert.Error(t, err)
}

func TestSessionValidatorModule(t *testing.T) {
	codec := testCodec()

	module, err := codec.SessionValidatorModule(testSession(1), testSession(2))
	require.NoError(t, err)

	assert.Equal(t, codec.book.SmartSessionValidator, module.Address)
	assert.Equal(t, types.ModuleKindValidator, module.Kind)
	assert.NotEmpty(t, module.InitData)

	t.Run("no sessions rejected", func(t *testing.T) {
		_, err := codec.SessionValidatorModule()
		assert.Error(t, err)
	})
}

func TestEnableSessionsCall(t *testing.T) {
	codec := testCodec()

	call, err := codec.EnableSessionsCall(testSession(1))
	require.NoError(t, err)

	assert.Equal(t, codec.book.SmartSessionValidator, call.To)
	assert.Nil(t, call.Value)
	assert.Equal(t, enableSessionsMethod.ID, call.Data[:4])
}

func TestRemoveSessionCall(t *testing.T) {
	codec := testCodec()
	permissionID := [32]byte{0xab}

	call, err := codec.RemoveSessionCall(permissionID)
	require.NoError(t, err)

	assert.Equal(t, codec.book.SmartSessionValidator, call.To)
	require.Len(t, call.Data, 4+32)
	assert.Equal(t, removeSessionMethod.ID, call.Data[:4])
	assert.Equal(t, permissionID[:], call.Data[4:])
}

func TestEncodeSessionLifetimeBecomesTimeFrame(t *testing.T) {
	codec := testCodec()

	session := testSession(1)
	session.ValidUntil = time.Unix(1700000000, 0)
	session.ValidAfter = time.Unix(1600000000, 0)

	encoded, err := codec.encodeSession(session)
	require.NoError(t, err)

	require.Len(t, encoded.UserOpPolicies, 1)
	policy := encoded.UserOpPolicies[0]
	assert.Equal(t, codec.book.SessionPolicies.TimeFrame, policy.Policy)
	require.Len(t, policy.InitData, 32)
	assert.Equal(t, big.NewInt(1700000000), new(big.Int).SetBytes(policy.InitData[:16]))
	assert.Equal(t, big.NewInt(1600000000), new(big.Int).SetBytes(policy.InitData[16:]))
}

func TestEncodeSessionDefaultsToSudo(t *testing.T) {
	codec := testCodec()

	encoded, err := codec.encodeSession(testSession(1))
	require.NoError(t, err)

	require.Len(t, encoded.UserOpPolicies, 1)
	assert.Equal(t, codec.book.SessionPolicies.Sudo, encoded.UserOpPolicies[0].Policy)
	assert.Empty(t, encoded.UserOpPolicies[0].InitData)
}
