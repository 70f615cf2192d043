package keysign

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// kmsAPI is the slice of the AWS KMS client the signer uses.
type kmsAPI interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// KMS signs through an AWS KMS ECC_SECG_P256K1 key. The private key never
// leaves KMS; signatures come back as DER and are converted to the 65-byte
// Ethereum form locally.
type KMS struct {
	client  kmsAPI
	keyID   string
	address common.Address
}

// NewKMS creates a KMS signer for the given key. The key must be an
// ECC_SECG_P256K1 sign/verify key.
func NewKMS(ctx context.Context, keyID, region string) (*KMS, error) {
	if keyID == "" {
		return nil, fmt.Errorf("KMS key ID is required")
	}
	if region == "" {
		return nil, fmt.Errorf("AWS region is required")
	}

	// Uses default credential chain: env vars, shared config, IAM role, etc.
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newKMSSigner(ctx, kms.NewFromConfig(cfg), keyID)
}

func newKMSSigner(ctx context.Context, client kmsAPI, keyID string) (*KMS, error) {
	output, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(keyID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch KMS public key: %w", err)
	}

	publicKey, err := parseKMSPublicKey(output.PublicKey)
	if err != nil {
		return nil, err
	}

	return &KMS{
		client:  client,
		keyID:   keyID,
		address: crypto.PubkeyToAddress(*publicKey),
	}, nil
}

// Address returns the EOA address controlled by the KMS key.
func (s *KMS) Address() common.Address {
	return s.address
}

// SignHash signs the digest in KMS and converts the DER signature to the
// 65-byte r||s||v form, normalizing s to the lower half of the curve order
// and recovering v against the key's address.
func (s *KMS) SignHash(ctx context.Context, hash [32]byte) ([]byte, error) {
	output, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          hash[:],
		MessageType:      kmstypes.MessageTypeDigest,
		SigningAlgorithm: kmstypes.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, fmt.Errorf("KMS sign failed: %w", err)
	}

	var parsed struct{ R, S *big.Int }
	if _, err := asn1.Unmarshal(output.Signature, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse KMS signature: %w", err)
	}
	if parsed.R == nil || parsed.S == nil {
		return nil, fmt.Errorf("KMS returned an invalid DER signature")
	}

	// KMS does not normalize s. Ethereum rejects upper-half s values.
	curveOrder := crypto.S256().Params().N
	sValue := parsed.S
	if sValue.Cmp(new(big.Int).Rsh(curveOrder, 1)) > 0 {
		sValue = new(big.Int).Sub(curveOrder, sValue)
	}

	signature := make([]byte, 65)
	parsed.R.FillBytes(signature[:32])
	sValue.FillBytes(signature[32:64])

	for _, v := range []byte{0, 1} {
		signature[64] = v
		recovered, err := crypto.SigToPub(hash[:], signature)
		if err != nil {
			continue
		}
		if crypto.PubkeyToAddress(*recovered) == s.address {
			signature[64] = v + 27
			return signature, nil
		}
	}
	return nil, fmt.Errorf("failed to recover a matching public key from the KMS signature")
}

// subjectPublicKeyInfo mirrors the DER layout of GetPublicKey output. The
// stdlib x509 parser rejects secp256k1, so the point is unwrapped manually.
type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

func parseKMSPublicKey(der []byte) (*ecdsa.PublicKey, error) {
	var spki subjectPublicKeyInfo
	if _, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, fmt.Errorf("failed to parse KMS public key: %w", err)
	}

	publicKey, err := crypto.UnmarshalPubkey(spki.PublicKey.Bytes)
	if err != nil {
		return nil, fmt.Errorf("KMS key is not an uncompressed secp256k1 point: %w", err)
	}
	return publicKey, nil
}
