package smartsession

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/polywallet/polywallet/internal/codec"
)

// ABI mirror of the session validator's on-chain structs. Field names must
// match the contract components for go-ethereum's tuple packing.

type policyDataABI struct {
	Policy   common.Address
	InitData []byte
}

type actionDataABI struct {
	ActionTargetSelector [4]byte
	ActionTarget         common.Address
	ActionPolicies       []policyDataABI
}

type erc7739ContextABI struct {
	AppDomainSeparator [32]byte
	ContentNames       []string
}

type erc7739DataABI struct {
	AllowedERC7739Content []erc7739ContextABI
	Erc1271Policies       []policyDataABI
}

type sessionABI struct {
	SessionValidator         common.Address
	SessionValidatorInitData []byte
	Salt                     [32]byte
	UserOpPolicies           []policyDataABI
	Erc7739Policies          erc7739DataABI
	Actions                  []actionDataABI
	PermitERC4337Paymaster   bool
}

type chainDigestABI struct {
	ChainId       uint64
	SessionDigest [32]byte
}

type enableSessionABI struct {
	ChainDigestIndex    uint8
	HashesAndChainIds   []chainDigestABI
	SessionToEnable     sessionABI
	PermissionEnableSig []byte
}

type limitUsageABI struct {
	Limit *big.Int
	Used  *big.Int
}

type paramRuleABI struct {
	Condition uint8
	Offset    uint64
	IsLimited bool
	Ref       [32]byte
	Usage     limitUsageABI
}

type paramRulesABI struct {
	Length *big.Int
	Rules  [16]paramRuleABI
}

type actionConfigABI struct {
	ValueLimitPerUse *big.Int
	ParamRules       paramRulesABI
}

var (
	policyDataComponents = []abi.ArgumentMarshaling{
		{Name: "policy", Type: "address"},
		{Name: "initData", Type: "bytes"},
	}

	sessionComponents = []abi.ArgumentMarshaling{
		{Name: "sessionValidator", Type: "address"},
		{Name: "sessionValidatorInitData", Type: "bytes"},
		{Name: "salt", Type: "bytes32"},
		{Name: "userOpPolicies", Type: "tuple[]", Components: policyDataComponents},
		{Name: "erc7739Policies", Type: "tuple", Components: []abi.ArgumentMarshaling{
			{Name: "allowedERC7739Content", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
				{Name: "appDomainSeparator", Type: "bytes32"},
				{Name: "contentNames", Type: "string[]"},
			}},
			{Name: "erc1271Policies", Type: "tuple[]", Components: policyDataComponents},
		}},
		{Name: "actions", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "actionTargetSelector", Type: "bytes4"},
			{Name: "actionTarget", Type: "address"},
			{Name: "actionPolicies", Type: "tuple[]", Components: policyDataComponents},
		}},
		{Name: "permitERC4337Paymaster", Type: "bool"},
	}

	sessionArrayType = codec.MustType("tuple[]", sessionComponents...)

	enableSessionType = codec.MustType("tuple",
		abi.ArgumentMarshaling{Name: "chainDigestIndex", Type: "uint8"},
		abi.ArgumentMarshaling{Name: "hashesAndChainIds", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "chainId", Type: "uint64"},
			{Name: "sessionDigest", Type: "bytes32"},
		}},
		abi.ArgumentMarshaling{Name: "sessionToEnable", Type: "tuple", Components: sessionComponents},
		abi.ArgumentMarshaling{Name: "permissionEnableSig", Type: "bytes"},
	)

	actionConfigType = codec.MustType("tuple",
		abi.ArgumentMarshaling{Name: "valueLimitPerUse", Type: "uint256"},
		abi.ArgumentMarshaling{Name: "paramRules", Type: "tuple", Components: []abi.ArgumentMarshaling{
			{Name: "length", Type: "uint256"},
			{Name: "rules", Type: "tuple[16]", Components: []abi.ArgumentMarshaling{
				{Name: "condition", Type: "uint8"},
				{Name: "offset", Type: "uint64"},
				{Name: "isLimited", Type: "bool"},
				{Name: "ref", Type: "bytes32"},
				{Name: "usage", Type: "tuple", Components: []abi.ArgumentMarshaling{
					{Name: "limit", Type: "uint256"},
					{Name: "used", Type: "uint256"},
				}},
			}},
		}},
	)

	permissionIDArgs  = codec.Args(codec.TypeAddress, codec.TypeBytes, codec.TypeBytes32)
	enableWrapperArgs = codec.Args(enableSessionType, codec.TypeBytes)
	sessionArrayArgs  = codec.Args(sessionArrayType)
	actionConfigArgs  = codec.Args(actionConfigType)

	enableSessionsMethod = abi.NewMethod("enableSessions", "enableSessions", abi.Function,
		"nonpayable", false, false, abi.Arguments{{Name: "sessions", Type: sessionArrayType}}, nil)
	removeSessionMethod = abi.NewMethod("removeSession", "removeSession", abi.Function,
		"nonpayable", false, false, abi.Arguments{{Name: "permissionId", Type: codec.TypeBytes32}}, nil)
)
