package keysign

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Standard development mnemonic with well-known derived accounts.
const devMnemonic = "test test test test test test test test test test test junk"

func TestMnemonicDerivesKnownAccounts(t *testing.T) {
	tests := []struct {
		name    string
		index   uint32
		address common.Address
	}{
		{"account zero", 0, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")},
		{"account one", 1, common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")},
		{"account two", 2, common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, err := NewMnemonic(devMnemonic, "", tt.index)
			require.NoError(t, err)
			assert.Equal(t, tt.address, signer.Address())
		})
	}
}

func TestMnemonicDerivesKnownPrivateKey(t *testing.T) {
	signer, err := NewMnemonic(devMnemonic, "", 0)
	require.NoError(t, err)

	expected, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	assert.Equal(t, expected.D, signer.key.D)
}

func TestMnemonicPassphraseChangesAccount(t *testing.T) {
	plain, err := NewMnemonic(devMnemonic, "", 0)
	require.NoError(t, err)
	protected, err := NewMnemonic(devMnemonic, "hunter2", 0)
	require.NoError(t, err)
	assert.NotEqual(t, plain.Address(), protected.Address())
}

func TestMnemonicValidation(t *testing.T) {
	_, err := NewMnemonic("", "", 0)
	require.Error(t, err)

	_, err = NewMnemonic("definitely not a valid seed phrase at all", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mnemonic")

	_, err = NewMnemonic(devMnemonic, "", 1<<31)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}
