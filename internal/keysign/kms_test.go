package keysign

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKMS signs with a local key but speaks the KMS wire shapes: DER SPKI
// public keys and DER ECDSA signatures without s normalization.
type fakeKMS struct {
	key     *ecdsa.PrivateKey
	pubDER  []byte
	highS   bool
	signErr error
}

func newFakeKMS(t *testing.T) *fakeKMS {
	t.Helper()

	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	params, err := asn1.Marshal(asn1.ObjectIdentifier{1, 3, 132, 0, 10}) // secp256k1
	require.NoError(t, err)
	point := crypto.FromECDSAPub(&key.PublicKey)
	pubDER, err := asn1.Marshal(subjectPublicKeyInfo{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}, // id-ecPublicKey
			Parameters: asn1.RawValue{FullBytes: params},
		},
		PublicKey: asn1.BitString{Bytes: point, BitLength: len(point) * 8},
	})
	require.NoError(t, err)

	return &fakeKMS{key: key, pubDER: pubDER}
}

func (f *fakeKMS) GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	return &kms.GetPublicKeyOutput{PublicKey: f.pubDER}, nil
}

func (f *fakeKMS) Sign(ctx context.Context, params *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	if f.signErr != nil {
		return nil, f.signErr
	}

	signature, err := crypto.Sign(params.Message, f.key)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:64])
	if f.highS {
		s.Sub(crypto.S256().Params().N, s)
	}

	der, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{Signature: der}, nil
}

func TestKMSSignerDerivesAddress(t *testing.T) {
	fake := newFakeKMS(t)
	signer, err := newKMSSigner(context.Background(), fake, "alias/test")
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(fake.key.PublicKey), signer.Address())
}

func TestKMSSignHashRecovers(t *testing.T) {
	fake := newFakeKMS(t)
	signer, err := newKMSSigner(context.Background(), fake, "alias/test")
	require.NoError(t, err)

	hash := crypto.Keccak256Hash([]byte("kms payload"))
	signature, err := signer.SignHash(context.Background(), [32]byte(hash))
	require.NoError(t, err)
	require.Len(t, signature, 65)
	assert.Contains(t, []byte{27, 28}, signature[64])

	recoverable := append([]byte{}, signature...)
	recoverable[64] -= 27
	recovered, err := crypto.SigToPub(hash.Bytes(), recoverable)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), crypto.PubkeyToAddress(*recovered))
}

func TestKMSSignHashNormalizesHighS(t *testing.T) {
	fake := newFakeKMS(t)
	fake.highS = true
	signer, err := newKMSSigner(context.Background(), fake, "alias/test")
	require.NoError(t, err)

	hash := crypto.Keccak256Hash([]byte("high s"))
	signature, err := signer.SignHash(context.Background(), [32]byte(hash))
	require.NoError(t, err)

	halfOrder := new(big.Int).Rsh(crypto.S256().Params().N, 1)
	s := new(big.Int).SetBytes(signature[32:64])
	assert.True(t, s.Cmp(halfOrder) <= 0, "s must be normalized to the lower half")

	recoverable := append([]byte{}, signature...)
	recoverable[64] -= 27
	recovered, err := crypto.SigToPub(hash.Bytes(), recoverable)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), crypto.PubkeyToAddress(*recovered))
}

func TestKMSSignHashPropagatesError(t *testing.T) {
	fake := newFakeKMS(t)
	fake.signErr = fmt.Errorf("throttled")
	signer, err := newKMSSigner(context.Background(), fake, "alias/test")
	require.NoError(t, err)

	_, err = signer.SignHash(context.Background(), [32]byte{0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KMS sign failed")
}

func TestKMSRejectsMalformedPublicKey(t *testing.T) {
	fake := newFakeKMS(t)
	fake.pubDER = []byte{0x30, 0x01, 0x00}
	_, err := newKMSSigner(context.Background(), fake, "alias/test")
	require.Error(t, err)
}
