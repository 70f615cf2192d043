package smartsession

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/polywallet/polywallet/internal/codec"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

var spendingLimitArgs = codec.Args(codec.TypeAddressSlice, codec.TypeUint256Slice)

// encodePolicy maps a policy definition to its contract address and init
// data.
func (c *Codec) encodePolicy(p types.Policy) (policyDataABI, error) {
	if err := p.Validate(); err != nil {
		return policyDataABI{}, err
	}
	policies := c.book.SessionPolicies

	switch p.Kind {
	case types.PolicySudo:
		return policyDataABI{Policy: policies.Sudo}, nil

	case types.PolicySpendingLimits:
		tokens := make([]common.Address, len(p.Spending))
		amounts := make([]*big.Int, len(p.Spending))
		for i, limit := range p.Spending {
			tokens[i] = limit.Token
			amounts[i] = limit.Amount
		}
		initData, err := codec.Encode(spendingLimitArgs, tokens, amounts)
		if err != nil {
			return policyDataABI{}, fmt.Errorf("encode spending limits: %w", err)
		}
		return policyDataABI{Policy: policies.SpendingLimits, InitData: initData}, nil

	case types.PolicyTimeFrame:
		return policyDataABI{
			Policy:   policies.TimeFrame,
			InitData: encodeTimeFrame(*p.TimeFrame),
		}, nil

	case types.PolicyUsageLimit:
		return policyDataABI{
			Policy:   policies.UsageLimit,
			InitData: codec.PackedUint64(p.Usage, 16),
		}, nil

	case types.PolicyValueLimit:
		return policyDataABI{
			Policy:   policies.ValueLimit,
			InitData: codec.PackedUint(p.Value, 32),
		}, nil

	case types.PolicyUniversalAction:
		initData, err := encodeActionConfig(p.Action)
		if err != nil {
			return policyDataABI{}, err
		}
		return policyDataABI{Policy: policies.UniversalAction, InitData: initData}, nil

	default:
		return policyDataABI{}, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"unknown policy kind "+string(p.Kind))
	}
}

// encodeTimeFrame packs the bounds as two uint128 epoch-second values,
// valid-until first. An open bound packs as zero.
func encodeTimeFrame(tf types.TimeFrame) []byte {
	var until, after uint64
	if !tf.ValidUntil.IsZero() {
		until = uint64(tf.ValidUntil.Unix())
	}
	if !tf.ValidAfter.IsZero() {
		after = uint64(tf.ValidAfter.Unix())
	}
	return codec.Packed(codec.PackedUint64(until, 16), codec.PackedUint64(after, 16))
}

// encodeActionConfig fills the fixed sixteen-slot rule table. Unused slots
// stay zeroed; the length field tells the policy how many are live.
func encodeActionConfig(rules *types.ActionRules) ([]byte, error) {
	cfg := actionConfigABI{
		ValueLimitPerUse: bigOrZero(rules.ValueLimitPerUse),
		ParamRules: paramRulesABI{
			Length: big.NewInt(int64(len(rules.Rules))),
		},
	}
	for i := range cfg.ParamRules.Rules {
		cfg.ParamRules.Rules[i].Usage = limitUsageABI{Limit: new(big.Int), Used: new(big.Int)}
	}
	for i, rule := range rules.Rules {
		encoded := paramRuleABI{
			Condition: uint8(rule.Condition),
			Offset:    rule.Offset,
			IsLimited: rule.Limited,
			Ref:       rule.Ref,
			Usage:     limitUsageABI{Limit: bigOrZero(rule.UsageLimit), Used: new(big.Int)},
		}
		cfg.ParamRules.Rules[i] = encoded
	}

	initData, err := codec.Encode(actionConfigArgs, cfg)
	if err != nil {
		return nil, fmt.Errorf("encode action config: %w", err)
	}
	return initData, nil
}

// buildPolicies encodes the given policies, defaulting to sudo when none
// are supplied.
func (c *Codec) buildPolicies(policies []types.Policy) ([]policyDataABI, error) {
	if len(policies) == 0 {
		policies = []types.Policy{types.SudoPolicy()}
	}
	encoded := make([]policyDataABI, len(policies))
	for i, policy := range policies {
		data, err := c.encodePolicy(policy)
		if err != nil {
			return nil, err
		}
		encoded[i] = data
	}
	return encoded, nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
