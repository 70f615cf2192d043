package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/polywallet/polywallet/internal/codec"
	"github.com/polywallet/polywallet/pkg/types"
)

var (
	packedUserOpArgs = codec.Args(
		codec.TypeAddress, // sender
		codec.TypeUint256, // nonce
		codec.TypeBytes32, // keccak(initCode)
		codec.TypeBytes32, // keccak(callData)
		codec.TypeBytes32, // accountGasLimits
		codec.TypeUint256, // preVerificationGas
		codec.TypeBytes32, // gasFees
		codec.TypeBytes32, // keccak(paymasterAndData)
	)
	userOpHashArgs = codec.Args(codec.TypeBytes32, codec.TypeAddress, codec.TypeUint256)
)

// UserOpHash computes the EntryPoint v0.7 hash the account signs: the packed
// operation hashed, then bound to the entry point address and chain id.
func UserOpHash(op *types.UserOperation, entryPoint common.Address, chainID *big.Int) (common.Hash, error) {
	packed := op.Pack()
	inner, err := codec.Encode(packedUserOpArgs,
		packed.Sender,
		packed.Nonce,
		[32]byte(codec.Keccak(packed.InitCode)),
		[32]byte(codec.Keccak(packed.CallData)),
		packed.AccountGasLimits,
		packed.PreVerificationGas,
		packed.GasFees,
		[32]byte(codec.Keccak(packed.PaymasterAndData)),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encoding user operation: %w", err)
	}
	outer, err := codec.Encode(userOpHashArgs,
		[32]byte(codec.Keccak(inner)), entryPoint, chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encoding user operation envelope: %w", err)
	}
	return codec.Keccak(outer), nil
}

// AuthorizationDigest returns the EIP-7702 signing hash of an authorization
// tuple: keccak256(0x05 || rlp([chain_id, address, nonce])).
func AuthorizationDigest(auth ethtypes.SetCodeAuthorization) ([32]byte, error) {
	encoded, err := rlp.EncodeToBytes([]interface{}{auth.ChainID, auth.Address, auth.Nonce})
	if err != nil {
		return [32]byte{}, fmt.Errorf("encoding authorization: %w", err)
	}
	return [32]byte(codec.Keccak([]byte{0x05}, encoded)), nil
}

// SignAuthorization signs the tuple with any hash signer and returns it with
// the signature fields filled in.
func SignAuthorization(ctx context.Context, key types.Signer, auth ethtypes.SetCodeAuthorization) (ethtypes.SetCodeAuthorization, error) {
	digest, err := AuthorizationDigest(auth)
	if err != nil {
		return ethtypes.SetCodeAuthorization{}, err
	}
	sig, err := key.SignHash(ctx, digest)
	if err != nil {
		return ethtypes.SetCodeAuthorization{}, fmt.Errorf("signing authorization: %w", err)
	}
	v, r, s, err := splitSignature(sig)
	if err != nil {
		return ethtypes.SetCodeAuthorization{}, err
	}
	auth.V = v
	auth.R = *r
	auth.S = *s
	return auth, nil
}

// SignTx signs a transaction with a hash signer under the latest signer
// rules for the chain.
func SignTx(ctx context.Context, key types.Signer, chainID *big.Int, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
	signer := ethtypes.LatestSignerForChainID(chainID)
	sig, err := key.SignHash(ctx, [32]byte(signer.Hash(tx)))
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("transaction signature must be 65 bytes, got %d", len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	return tx.WithSignature(signer, sig)
}

// splitSignature splits a 65-byte r||s||v signature, normalizing v to the
// y-parity form.
func splitSignature(sig []byte) (byte, *uint256.Int, *uint256.Int, error) {
	if len(sig) != 65 {
		return 0, nil, nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	r := new(uint256.Int).SetBytes(sig[:32])
	s := new(uint256.Int).SetBytes(sig[32:64])
	return v, r, s, nil
}
