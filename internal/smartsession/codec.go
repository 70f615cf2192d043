package smartsession

import (
	"fmt"

	"github.com/polywallet/polywallet/internal/codec"
	"github.com/polywallet/polywallet/internal/contracts"
	"github.com/polywallet/polywallet/internal/modules"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

// Mode selects how a session signature is consumed by the validator.
type Mode byte

const (
	// ModeUse references an already-registered permission.
	ModeUse Mode = 0x00
	// ModeEnable registers the session and consumes it in one operation.
	ModeEnable Mode = 0x01
	// ModeUnsafeEnable is recognized but deliberately not produced.
	ModeUnsafeEnable Mode = 0x02
)

// Codec encodes session permissions for the session validator: permission
// ids, enable payloads and signature wrapping.
type Codec struct {
	catalog *modules.Catalog
	book    contracts.Deployments
}

// NewCodec returns a codec over the catalog's address book.
func NewCodec(catalog *modules.Catalog) *Codec {
	return &Codec{catalog: catalog, book: catalog.Book()}
}

// ChainDigest pairs a chain id with the session digest valid there, for
// multichain enable payloads.
type ChainDigest struct {
	ChainID uint64
	Digest  [32]byte
}

// EnableData is the registration payload embedded in an enable-mode
// signature. PermissionEnableSig is the account owner's approval of the
// session digest, produced ahead of time.
type EnableData struct {
	Session             types.Session
	ChainDigestIndex    uint8
	HashesAndChainIDs   []ChainDigest
	PermissionEnableSig []byte
}

// PermissionID derives the session's stable identity: the hash of the
// session validator address, its init data and the salt. Identical inputs
// give an identical id; changing only the salt changes it.
func (c *Codec) PermissionID(session types.Session) ([32]byte, error) {
	validator, err := c.catalog.OwnerValidator(session.Owners)
	if err != nil {
		return [32]byte{}, fmt.Errorf("session validator: %w", err)
	}
	encoded, err := codec.Encode(permissionIDArgs,
		validator.Address, validator.InitData, session.Salt)
	if err != nil {
		return [32]byte{}, fmt.Errorf("encode permission id preimage: %w", err)
	}
	return codec.Keccak(encoded), nil
}

// EncodeSignature wraps a raw signature for the session validator.
// ModeUse packs the mode byte, the permission id and the signature.
// ModeEnable embeds the full session definition so first use registers and
// consumes it atomically. ModeUnsafeEnable has no wire format here and
// fails as not implemented.
func (c *Codec) EncodeSignature(mode Mode, permissionID [32]byte, sig []byte, enable *EnableData) ([]byte, error) {
	switch mode {
	case ModeUse:
		return codec.Packed([]byte{byte(ModeUse)}, permissionID[:], sig), nil

	case ModeEnable:
		if enable == nil {
			return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
				"enable mode requires the session registration payload")
		}
		session, err := c.encodeSession(enable.Session)
		if err != nil {
			return nil, err
		}
		digests := make([]chainDigestABI, len(enable.HashesAndChainIDs))
		for i, digest := range enable.HashesAndChainIDs {
			digests[i] = chainDigestABI{ChainId: digest.ChainID, SessionDigest: digest.Digest}
		}
		wrapped, err := codec.Encode(enableWrapperArgs, enableSessionABI{
			ChainDigestIndex:    enable.ChainDigestIndex,
			HashesAndChainIds:   digests,
			SessionToEnable:     session,
			PermissionEnableSig: enable.PermissionEnableSig,
		}, sig)
		if err != nil {
			return nil, fmt.Errorf("encode enable payload: %w", err)
		}
		return codec.Packed([]byte{byte(ModeEnable)}, wrapped), nil

	case ModeUnsafeEnable:
		return nil, apperrors.NotImplemented("unsafe-enable session signatures")

	default:
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			fmt.Sprintf("unknown session signature mode 0x%02x", byte(mode)))
	}
}

// SessionValidatorModule builds the session validator install module with
// the given sessions registered at install time.
func (c *Codec) SessionValidatorModule(sessions ...types.Session) (types.Module, error) {
	encoded, err := c.encodeSessions(sessions)
	if err != nil {
		return types.Module{}, err
	}
	initData, err := codec.Encode(sessionArrayArgs, encoded)
	if err != nil {
		return types.Module{}, fmt.Errorf("encode sessions: %w", err)
	}
	return types.Module{
		Address:  c.book.SmartSessionValidator,
		Kind:     types.ModuleKindValidator,
		InitData: initData,
	}, nil
}

// EnableSessionsCall builds the account execution that registers sessions
// on an already-installed session validator.
func (c *Codec) EnableSessionsCall(sessions ...types.Session) (types.Call, error) {
	encoded, err := c.encodeSessions(sessions)
	if err != nil {
		return types.Call{}, err
	}
	packed, err := enableSessionsMethod.Inputs.Pack(encoded)
	if err != nil {
		return types.Call{}, fmt.Errorf("encode enableSessions call: %w", err)
	}
	return types.Call{
		To:   c.book.SmartSessionValidator,
		Data: codec.Packed(enableSessionsMethod.ID, packed),
	}, nil
}

// RemoveSessionCall builds the account execution that revokes a permission.
func (c *Codec) RemoveSessionCall(permissionID [32]byte) (types.Call, error) {
	packed, err := removeSessionMethod.Inputs.Pack(permissionID)
	if err != nil {
		return types.Call{}, fmt.Errorf("encode removeSession call: %w", err)
	}
	return types.Call{
		To:   c.book.SmartSessionValidator,
		Data: codec.Packed(removeSessionMethod.ID, packed),
	}, nil
}

func (c *Codec) encodeSessions(sessions []types.Session) ([]sessionABI, error) {
	if len(sessions) == 0 {
		return nil, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"no sessions supplied")
	}
	encoded := make([]sessionABI, len(sessions))
	for i, session := range sessions {
		one, err := c.encodeSession(session)
		if err != nil {
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
		encoded[i] = one
	}
	return encoded, nil
}

// encodeSession lowers a session definition onto the validator's struct.
// Lifetime bounds on the session become a time-frame policy on its user
// operations.
func (c *Codec) encodeSession(session types.Session) (sessionABI, error) {
	if err := session.Validate(); err != nil {
		return sessionABI{}, err
	}
	validator, err := c.catalog.OwnerValidator(session.Owners)
	if err != nil {
		return sessionABI{}, fmt.Errorf("session validator: %w", err)
	}

	policies := session.Policies
	if !session.ValidUntil.IsZero() || !session.ValidAfter.IsZero() {
		policies = append(policies[:len(policies):len(policies)],
			types.TimeFramePolicy(session.ValidUntil, session.ValidAfter))
	}
	userOpPolicies, err := c.buildPolicies(policies)
	if err != nil {
		return sessionABI{}, err
	}

	actions := make([]actionDataABI, len(session.Actions))
	for i, action := range session.Actions {
		actionPolicies, err := c.buildPolicies(action.Policies)
		if err != nil {
			return sessionABI{}, fmt.Errorf("action %d: %w", i, err)
		}
		actions[i] = actionDataABI{
			ActionTargetSelector: action.Selector,
			ActionTarget:         action.Target,
			ActionPolicies:       actionPolicies,
		}
	}

	return sessionABI{
		SessionValidator:         validator.Address,
		SessionValidatorInitData: validator.InitData,
		Salt:                     session.Salt,
		UserOpPolicies:           userOpPolicies,
		Erc7739Policies: erc7739DataABI{
			AllowedERC7739Content: []erc7739ContextABI{},
			Erc1271Policies:       []policyDataABI{},
		},
		Actions: actions,
	}, nil
}
