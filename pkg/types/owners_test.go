package types

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/polywallet/polywallet/pkg/errors"
)

func TestAddressOnlySigner(t *testing.T) {
	addr := common.HexToAddress("0xf6C02C78deD62973B43bfa523b247Da099486936")
	signer := AddressOnly(addr)

	assert.Equal(t, addr, signer.Address())

	_, err := signer.SignHash(context.Background(), [32]byte{0x01})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSigningUnsupported))
}

func TestParseWebAuthnPublicKey(t *testing.T) {
	x := common.Hex2Bytes("580a9af0569ad3905b26a703201b358aa0904236642ebe79b22a19d00d373763")
	y := common.Hex2Bytes("7d46f725a5427ae45a9569259bf67e1e16b187d7b3ad1ed70138c4f0409677d1")

	t.Run("sec1 uncompressed", func(t *testing.T) {
		pub := append([]byte{0x04}, append(append([]byte{}, x...), y...)...)
		cred, err := ParseWebAuthnPublicKey(pub)
		require.NoError(t, err)
		assert.Equal(t, new(big.Int).SetBytes(x), cred.PubKeyX)
		assert.Equal(t, new(big.Int).SetBytes(y), cred.PubKeyY)
	})

	t.Run("bare coordinates", func(t *testing.T) {
		pub := append(append([]byte{}, x...), y...)
		cred, err := ParseWebAuthnPublicKey(pub)
		require.NoError(t, err)
		assert.Equal(t, new(big.Int).SetBytes(x), cred.PubKeyX)
		assert.Equal(t, new(big.Int).SetBytes(y), cred.PubKeyY)
	})

	t.Run("wrong prefix", func(t *testing.T) {
		pub := append([]byte{0x02}, append(append([]byte{}, x...), y...)...)
		_, err := ParseWebAuthnPublicKey(pub)
		assert.Error(t, err)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := ParseWebAuthnPublicKey(x)
		assert.Error(t, err)
	})
}

func TestOwnerSetValidate(t *testing.T) {
	owner := AddressOnly(common.HexToAddress("0xf6C02C78deD62973B43bfa523b247Da099486936"))
	second := AddressOnly(common.HexToAddress("0x6092086a3dc0020cd604a68fcf5d430007d51bb7"))
	passkey := WebAuthnCredential{PubKeyX: big.NewInt(1), PubKeyY: big.NewInt(2)}

	tests := []struct {
		name    string
		owners  OwnerSet
		wantErr bool
	}{
		{
			name:   "single ecdsa owner",
			owners: EcdsaOwners(1, owner),
		},
		{
			name:   "two of two ecdsa",
			owners: EcdsaOwners(2, owner, second),
		},
		{
			name:    "threshold above signer count",
			owners:  EcdsaOwners(3, owner, second),
			wantErr: true,
		},
		{
			name:    "zero threshold",
			owners:  EcdsaOwners(0, owner),
			wantErr: true,
		},
		{
			name:    "no signers",
			owners:  EcdsaOwners(1),
			wantErr: true,
		},
		{
			name:   "passkey owner",
			owners: PasskeyOwner(passkey),
		},
		{
			name:    "passkey missing coordinates",
			owners:  PasskeyOwner(WebAuthnCredential{}),
			wantErr: true,
		},
		{
			name: "multi factor with gap slot",
			owners: func() OwnerSet {
				ecdsa := EcdsaOwners(1, owner)
				pk := PasskeyOwner(passkey)
				return MultiFactorOwners(2, &ecdsa, nil, &pk)
			}(),
		},
		{
			name: "multi factor threshold above populated slots",
			owners: func() OwnerSet {
				ecdsa := EcdsaOwners(1, owner)
				return MultiFactorOwners(2, &ecdsa, nil)
			}(),
			wantErr: true,
		},
		{
			name: "nested multi factor rejected",
			owners: func() OwnerSet {
				ecdsa := EcdsaOwners(1, owner)
				inner := MultiFactorOwners(1, &ecdsa)
				return MultiFactorOwners(1, &inner)
			}(),
			wantErr: true,
		},
		{
			name:    "unknown kind",
			owners:  OwnerSet{Kind: "hsm"},
			wantErr: true,
		},
		{
			name:    "kind without payload",
			owners:  OwnerSet{Kind: OwnerKindEcdsa},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.owners.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEcdsaOwnerSetAddresses(t *testing.T) {
	a := common.HexToAddress("0xf6C02C78deD62973B43bfa523b247Da099486936")
	b := common.HexToAddress("0x6092086a3dc0020cd604a68fcf5d430007d51bb7")
	set := EcdsaOwners(1, AddressOnly(a), AddressOnly(b))

	assert.Equal(t, []common.Address{a, b}, set.Ecdsa.Addresses())
}
