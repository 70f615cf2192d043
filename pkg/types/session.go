package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/polywallet/polywallet/pkg/errors"
)

// Session grants a scoped owner set the right to operate the account under
// a set of policies. Sessions are identified on chain by a permission id
// derived from the session validator, its init data and the salt.
type Session struct {
	// Owners signs user operations under this session.
	Owners OwnerSet
	// Policies apply to every user operation signed by the session.
	Policies []Policy
	// Actions restricts the session to specific target/selector pairs,
	// each with its own policies. Empty means the session relies on
	// user-operation policies alone.
	Actions []ActionSpec
	// Salt disambiguates otherwise identical sessions.
	Salt [32]byte
	// ValidUntil and ValidAfter bound the session lifetime. Zero values
	// leave the corresponding bound open.
	ValidUntil time.Time
	ValidAfter time.Time
}

// Validate checks the session definition.
func (s Session) Validate() error {
	if err := s.Owners.Validate(); err != nil {
		return err
	}
	for _, p := range s.Policies {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	for _, a := range s.Actions {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ActionSpec scopes a session to one target contract function.
type ActionSpec struct {
	Target   common.Address
	Selector [4]byte
	Policies []Policy
}

// Validate checks the action's policies.
func (a ActionSpec) Validate() error {
	for _, p := range a.Policies {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// PolicyKind discriminates the session policy flavors.
type PolicyKind string

const (
	// PolicySudo grants unrestricted access.
	PolicySudo PolicyKind = "sudo"
	// PolicySpendingLimits caps cumulative ERC-20 spend per token.
	PolicySpendingLimits PolicyKind = "spending_limits"
	// PolicyTimeFrame bounds when the session may act.
	PolicyTimeFrame PolicyKind = "time_frame"
	// PolicyUsageLimit caps how many times the session may act.
	PolicyUsageLimit PolicyKind = "usage_limit"
	// PolicyValueLimit caps the native value per use.
	PolicyValueLimit PolicyKind = "value_limit"
	// PolicyUniversalAction constrains calldata parameters with a rule
	// table.
	PolicyUniversalAction PolicyKind = "universal_action"
)

// Policy is the tagged union of session policies. Exactly one arm matching
// Kind is populated; sudo has no payload.
type Policy struct {
	Kind      PolicyKind
	Spending  []TokenLimit
	TimeFrame *TimeFrame
	Usage     uint64
	Value     *big.Int
	Action    *ActionRules
}

// TokenLimit caps cumulative spend of one ERC-20 token.
type TokenLimit struct {
	Token  common.Address
	Amount *big.Int
}

// TimeFrame bounds a policy in time. Zero values leave the corresponding
// bound open.
type TimeFrame struct {
	ValidUntil time.Time
	ValidAfter time.Time
}

// ActionRules is the payload of a universal action policy: a per-use value
// cap and up to sixteen calldata parameter rules.
type ActionRules struct {
	ValueLimitPerUse *big.Int
	Rules            []ParamRule
}

// MaxParamRules is the fixed rule table size of the universal action
// policy.
const MaxParamRules = 16

// ParamCondition compares a calldata word against a reference value.
type ParamCondition uint8

const (
	ConditionEqual ParamCondition = iota
	ConditionGreaterThan
	ConditionLessThan
	ConditionGreaterThanOrEqual
	ConditionLessThanOrEqual
	ConditionNotEqual
	ConditionInRange
)

// ParamRule constrains one 32-byte calldata word.
type ParamRule struct {
	Condition ParamCondition
	// Offset is the byte offset of the word, measured after the selector.
	Offset uint64
	// Ref is the comparison reference. For ConditionInRange the upper
	// bound lives in the high 16 bytes and the lower bound in the low 16.
	Ref [32]byte
	// Limited marks the rule as consuming a cumulative usage allowance.
	Limited bool
	// UsageLimit is the cumulative allowance when Limited is set.
	UsageLimit *big.Int
}

// SudoPolicy builds an unrestricted policy.
func SudoPolicy() Policy {
	return Policy{Kind: PolicySudo}
}

// SpendingLimitsPolicy builds a per-token spend cap policy.
func SpendingLimitsPolicy(limits ...TokenLimit) Policy {
	return Policy{Kind: PolicySpendingLimits, Spending: limits}
}

// TimeFramePolicy builds a session time-window policy.
func TimeFramePolicy(validUntil, validAfter time.Time) Policy {
	return Policy{Kind: PolicyTimeFrame, TimeFrame: &TimeFrame{
		ValidUntil: validUntil,
		ValidAfter: validAfter,
	}}
}

// UsageLimitPolicy builds a use-count cap policy.
func UsageLimitPolicy(limit uint64) Policy {
	return Policy{Kind: PolicyUsageLimit, Usage: limit}
}

// ValueLimitPolicy builds a native-value cap policy.
func ValueLimitPolicy(limit *big.Int) Policy {
	return Policy{Kind: PolicyValueLimit, Value: limit}
}

// UniversalActionPolicy builds a calldata rule-table policy.
func UniversalActionPolicy(valueLimitPerUse *big.Int, rules ...ParamRule) Policy {
	return Policy{Kind: PolicyUniversalAction, Action: &ActionRules{
		ValueLimitPerUse: valueLimitPerUse,
		Rules:            rules,
	}}
}

// Validate checks that the policy arm matches its kind and stays within
// encoding bounds.
func (p Policy) Validate() error {
	switch p.Kind {
	case PolicySudo:
		return nil
	case PolicySpendingLimits:
		if len(p.Spending) == 0 {
			return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
				"spending limits policy has no token limits")
		}
		for _, l := range p.Spending {
			if l.Amount == nil || l.Amount.Sign() < 0 {
				return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
					"spending limit amount must be a non-negative integer")
			}
		}
		return nil
	case PolicyTimeFrame:
		if p.TimeFrame == nil {
			return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
				"time frame policy has no bounds")
		}
		return nil
	case PolicyUsageLimit:
		return nil
	case PolicyValueLimit:
		if p.Value == nil || p.Value.Sign() < 0 {
			return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
				"value limit must be a non-negative integer")
		}
		return nil
	case PolicyUniversalAction:
		if p.Action == nil {
			return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
				"universal action policy has no rules payload")
		}
		if len(p.Action.Rules) > MaxParamRules {
			return apperrors.ConfigurationDetail(apperrors.CodeUnsupportedConfiguration,
				"universal action policy exceeds the rule table size",
				"at most 16 parameter rules are supported")
		}
		return nil
	default:
		return apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"unknown policy kind "+string(p.Kind))
	}
}
