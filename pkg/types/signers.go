package types

import (
	apperrors "github.com/polywallet/polywallet/pkg/errors"
)

// SignerSetKind discriminates the signing topologies derived from owner
// sets, plus the two signing-only topologies (sessions and guardians) that
// never appear as owners.
type SignerSetKind string

const (
	// SignerKindEcdsa signs with a k-of-n set of secp256k1 keys.
	SignerKindEcdsa SignerSetKind = "ecdsa"
	// SignerKindPasskey signs through a WebAuthn assertion.
	SignerKindPasskey SignerSetKind = "passkey"
	// SignerKindMultiFactor fans out over nested signer sets per validator
	// slot.
	SignerKindMultiFactor SignerSetKind = "multi_factor"
	// SignerKindSession signs with a session's own owner set; the session
	// validator wraps the result.
	SignerKindSession SignerSetKind = "session"
	// SignerKindGuardians signs with recovery guardians.
	SignerKindGuardians SignerSetKind = "guardians"
)

// SignerSet is the tagged union describing how a digest gets signed.
// Exactly one arm matching Kind is populated.
type SignerSet struct {
	Kind        SignerSetKind
	Ecdsa       *EcdsaSignerSet
	Passkey     *PasskeySignerSet
	MultiFactor *MultiFactorSignerSet
	Session     *SessionSignerSet
	Guardians   *GuardianSignerSet
}

// EcdsaSignerSet signs with each key and concatenates the signatures in the
// listed order.
type EcdsaSignerSet struct {
	Signers   []Signer
	Threshold int
}

// PasskeySignerSet signs through a WebAuthn assertion ceremony.
type PasskeySignerSet struct {
	Credential WebAuthnCredential
	// Signer runs the assertion. Nil means the credential cannot sign in
	// this process.
	Signer WebAuthnSigner
}

// MultiFactorSignerSet signs with nested signer sets, one per validator
// slot. Nil entries mark unused slots and contribute nothing.
type MultiFactorSignerSet struct {
	Factors   []*SignerSet
	Threshold int
}

// SessionSignerSet signs with the session's own owners. The session
// definition is carried so callers can encode the session validator
// wrapping around the raw signature.
type SessionSignerSet struct {
	Session *Session
}

// GuardianSignerSet signs with social-recovery guardians; the threshold is
// enforced by the recovery validator on chain.
type GuardianSignerSet struct {
	Signers   []Signer
	Threshold int
}

// EcdsaSigners builds an ECDSA signer set arm.
func EcdsaSigners(threshold int, signers ...Signer) SignerSet {
	return SignerSet{
		Kind:  SignerKindEcdsa,
		Ecdsa: &EcdsaSignerSet{Signers: signers, Threshold: threshold},
	}
}

// PasskeySigner builds a passkey signer set arm.
func PasskeySigner(credential WebAuthnCredential, signer WebAuthnSigner) SignerSet {
	return SignerSet{
		Kind:    SignerKindPasskey,
		Passkey: &PasskeySignerSet{Credential: credential, Signer: signer},
	}
}

// MultiFactorSigners builds a multi-factor signer set arm.
func MultiFactorSigners(threshold int, factors ...*SignerSet) SignerSet {
	return SignerSet{
		Kind:        SignerKindMultiFactor,
		MultiFactor: &MultiFactorSignerSet{Factors: factors, Threshold: threshold},
	}
}

// SessionSigners builds a session signer set arm.
func SessionSigners(session *Session) SignerSet {
	return SignerSet{
		Kind:    SignerKindSession,
		Session: &SessionSignerSet{Session: session},
	}
}

// GuardianSigners builds a guardian signer set arm.
func GuardianSigners(threshold int, signers ...Signer) SignerSet {
	return SignerSet{
		Kind:      SignerKindGuardians,
		Guardians: &GuardianSignerSet{Signers: signers, Threshold: threshold},
	}
}

// Validate checks the structural invariants of the signer set.
func (s SignerSet) Validate() error {
	switch s.Kind {
	case SignerKindEcdsa:
		if s.Ecdsa == nil || len(s.Ecdsa.Signers) == 0 {
			return signerArmInvalid(s.Kind)
		}
		return nil
	case SignerKindPasskey:
		if s.Passkey == nil {
			return signerArmInvalid(s.Kind)
		}
		return s.Passkey.Credential.Validate()
	case SignerKindMultiFactor:
		if s.MultiFactor == nil {
			return signerArmInvalid(s.Kind)
		}
		populated := 0
		for _, factor := range s.MultiFactor.Factors {
			if factor == nil {
				continue
			}
			populated++
			if factor.Kind == SignerKindMultiFactor || factor.Kind == SignerKindSession ||
				factor.Kind == SignerKindGuardians {
				return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
					"multi-factor signer sets nest only ecdsa or passkey factors")
			}
		}
		if populated == 0 {
			return signerArmInvalid(s.Kind)
		}
		return nil
	case SignerKindSession:
		if s.Session == nil || s.Session.Session == nil {
			return signerArmInvalid(s.Kind)
		}
		return s.Session.Session.Owners.Validate()
	case SignerKindGuardians:
		if s.Guardians == nil || len(s.Guardians.Signers) == 0 {
			return signerArmInvalid(s.Kind)
		}
		return nil
	default:
		return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"unknown signer set kind "+string(s.Kind))
	}
}

func signerArmInvalid(kind SignerSetKind) error {
	return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
		"signer set kind "+string(kind)+" has no usable payload")
}
