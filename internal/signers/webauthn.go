package signers

import (
	"context"
	"crypto/elliptic"
	"fmt"
	"math/big"
	"strings"

	"github.com/polywallet/polywallet/internal/codec"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

// webAuthnSigArgs lays out the assertion fields the WebAuthn validator
// verifies, with the final flag selecting the RIP-7212 precompile route.
var webAuthnSigArgs = codec.Args(
	codec.TypeBytes,   // authenticatorData
	codec.TypeString,  // clientDataJSON
	codec.TypeUint256, // challengeIndex
	codec.TypeUint256, // typeIndex
	codec.TypeUint256, // r
	codec.TypeUint256, // s
	codec.TypeBool,    // usePrecompiled
)

// p256HalfN is half the P-256 group order. The on-chain verifier rejects
// signatures with s above this bound.
var p256HalfN = new(big.Int).Rsh(elliptic.P256().Params().N, 1)

func (r *Resolver) signPasskey(ctx context.Context, set *types.PasskeySignerSet, hash [32]byte) ([]byte, error) {
	if set.Signer == nil {
		return nil, apperrors.ErrSigningUnsupported
	}
	assertion, err := set.Signer.SignChallenge(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("webauthn assertion: %w", err)
	}
	return EncodeWebAuthnAssertion(assertion, r.book.SupportsP256Precompile(r.chain.ID))
}

// EncodeWebAuthnAssertion encodes an assertion into the WebAuthn validator's
// signature layout. The s scalar is folded into the low half of the group
// order, and the challenge and type key positions are located in the client
// data so the verifier can check them in place.
func EncodeWebAuthnAssertion(assertion *types.WebAuthnAssertion, usePrecompiled bool) ([]byte, error) {
	if assertion == nil || assertion.R == nil || assertion.S == nil {
		return nil, apperrors.Capability(apperrors.CodeSigningUnsupported,
			"webauthn assertion is missing signature scalars")
	}
	challengeIndex := strings.Index(assertion.ClientDataJSON, `"challenge":`)
	typeIndex := strings.Index(assertion.ClientDataJSON, `"type":`)
	if challengeIndex < 0 || typeIndex < 0 {
		return nil, apperrors.Capability(apperrors.CodeSigningUnsupported,
			"webauthn client data lacks challenge or type fields")
	}
	s := new(big.Int).Set(assertion.S)
	if s.Cmp(p256HalfN) > 0 {
		s.Sub(elliptic.P256().Params().N, s)
	}
	return codec.Encode(webAuthnSigArgs,
		assertion.AuthenticatorData,
		assertion.ClientDataJSON,
		big.NewInt(int64(challengeIndex)),
		big.NewInt(int64(typeIndex)),
		assertion.R,
		s,
		usePrecompiled,
	)
}
