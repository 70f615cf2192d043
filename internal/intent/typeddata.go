package intent

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/polywallet/polywallet/internal/codec"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

// CompactVerifier is the canonical deployment of The Compact.
var CompactVerifier = common.HexToAddress("0x73d2dc0c21fca4ec1601895d50df7f5624f07d3f")

// Permit2Address is the canonical Permit2 deployment.
var Permit2Address = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")

// OpBundle is the signed operation envelope: a verification tag and the
// calls it covers.
type OpBundle struct {
	Tag   [32]byte
	Calls []types.Call
}

// GasRefund compensates the executor in the given token at a fixed exchange
// rate plus a flat overhead.
type GasRefund struct {
	Token        common.Address
	ExchangeRate *big.Int
	Overhead     *big.Int
}

// SingleChainIntent is an intent settled entirely on one chain by the
// intent executor module.
type SingleChainIntent struct {
	Account  common.Address
	Executor common.Address
	ChainID  uint64
	Nonce    *big.Int
	Ops      OpBundle
	// GasRefund selects the refunding signature variant. Nil signs the
	// legacy layout with a zeroed two-field refund; the two variants hash
	// differently even for equal values because the refund type changes.
	GasRefund *GasRefund
}

// TokenAmount pairs a packed commitment id with an amount. The id packs a
// 12-byte lock tag over the token address in its low 20 bytes.
type TokenAmount struct {
	ID     *big.Int
	Amount *big.Int
}

// Mandate describes what settlement must deliver on the target chain.
type Mandate struct {
	Recipient    common.Address
	TokenOut     []TokenAmount
	TargetChain  *big.Int
	FillDeadline *big.Int
	MinGas       *big.Int
	OriginOps    OpBundle
	DestOps      OpBundle
	// Qualifier is hashed into the mandate; settlement reveals the preimage.
	Qualifier []byte
}

// CompactElement is one chain's slice of a multichain compact.
type CompactElement struct {
	Arbiter     common.Address
	ChainID     *big.Int
	Commitments []TokenAmount
	Mandate     Mandate
}

// CompactIntent is a multichain intent claimed through The Compact.
type CompactIntent struct {
	Sponsor  common.Address
	Nonce    *big.Int
	Expires  *big.Int
	Elements []CompactElement
}

// Permit2Intent funds settlement with a Permit2 batch-witness transfer
// instead of compact deposits.
type Permit2Intent struct {
	Element CompactElement
	Nonce   *big.Int
	Expires *big.Int
}

// SplitLockID splits a packed commitment id into its lock tag and token
// address.
func SplitLockID(id *big.Int) ([12]byte, common.Address, error) {
	var tag [12]byte
	var token common.Address
	if id == nil {
		return tag, token, nil
	}
	if id.Sign() < 0 || id.BitLen() > 256 {
		return tag, token, apperrors.Configuration(apperrors.CodeUnsupportedConfiguration,
			"commitment id does not fit a uint256")
	}
	var full [32]byte
	id.FillBytes(full[:])
	copy(tag[:], full[:12])
	copy(token[:], full[12:])
	return tag, token, nil
}

var opsTypeFields = []apitypes.Type{
	{Name: "to", Type: "address"},
	{Name: "value", Type: "uint256"},
	{Name: "data", Type: "bytes"},
}

var opTypeFields = []apitypes.Type{
	{Name: "vt", Type: "bytes32"},
	{Name: "ops", Type: "Ops[]"},
}

var mandateTypeFields = []apitypes.Type{
	{Name: "target", Type: "Target"},
	{Name: "minGas", Type: "uint128"},
	{Name: "originOps", Type: "Op"},
	{Name: "destOps", Type: "Op"},
	{Name: "q", Type: "bytes32"},
}

var targetTypeFields = []apitypes.Type{
	{Name: "recipient", Type: "address"},
	{Name: "tokenOut", Type: "Token[]"},
	{Name: "targetChain", Type: "uint256"},
	{Name: "fillExpiry", Type: "uint256"},
}

var tokenTypeFields = []apitypes.Type{
	{Name: "token", Type: "address"},
	{Name: "amount", Type: "uint256"},
}

func domainTypeFields(withVersion bool) []apitypes.Type {
	fields := []apitypes.Type{{Name: "name", Type: "string"}}
	if withVersion {
		fields = append(fields, apitypes.Type{Name: "version", Type: "string"})
	}
	return append(fields,
		apitypes.Type{Name: "chainId", Type: "uint256"},
		apitypes.Type{Name: "verifyingContract", Type: "address"},
	)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func callsMessage(calls []types.Call) []interface{} {
	out := make([]interface{}, len(calls))
	for i, call := range calls {
		out[i] = map[string]interface{}{
			"to":    call.To.Hex(),
			"value": call.CallValue().String(),
			"data":  hexutil.Encode(call.Data),
		}
	}
	return out
}

func opMessage(op OpBundle) map[string]interface{} {
	return map[string]interface{}{
		"vt":  hexutil.Encode(op.Tag[:]),
		"ops": callsMessage(op.Calls),
	}
}

func mandateMessage(m Mandate) (map[string]interface{}, error) {
	tokenOut := make([]interface{}, len(m.TokenOut))
	for i, t := range m.TokenOut {
		_, token, err := SplitLockID(t.ID)
		if err != nil {
			return nil, err
		}
		tokenOut[i] = map[string]interface{}{
			"token":  token.Hex(),
			"amount": bigString(t.Amount),
		}
	}
	return map[string]interface{}{
		"target": map[string]interface{}{
			"recipient":   m.Recipient.Hex(),
			"tokenOut":    tokenOut,
			"targetChain": bigString(m.TargetChain),
			"fillExpiry":  bigString(m.FillDeadline),
		},
		"minGas":    bigString(m.MinGas),
		"originOps": opMessage(m.OriginOps),
		"destOps":   opMessage(m.DestOps),
		"q":         codec.Keccak(m.Qualifier).Hex(),
	}, nil
}

// SingleChainTypedData builds the EIP-712 payload the intent executor
// verifies for a single-chain intent.
func SingleChainTypedData(in SingleChainIntent) (apitypes.TypedData, error) {
	if in.ChainID == 0 {
		return apitypes.TypedData{}, apperrors.Configuration(
			apperrors.CodeUnsupportedConfiguration, "destination chain id is required")
	}

	refundType := []apitypes.Type{
		{Name: "token", Type: "address"},
		{Name: "exchangeRate", Type: "uint256"},
	}
	refundMsg := map[string]interface{}{
		"token":        common.Address{}.Hex(),
		"exchangeRate": "0",
	}
	if in.GasRefund != nil {
		refundType = append(refundType, apitypes.Type{Name: "overhead", Type: "uint256"})
		refundMsg = map[string]interface{}{
			"token":        in.GasRefund.Token.Hex(),
			"exchangeRate": bigString(in.GasRefund.ExchangeRate),
			"overhead":     bigString(in.GasRefund.Overhead),
		}
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainTypeFields(true),
			"SingleChainOps": {
				{Name: "account", Type: "address"},
				{Name: "nonce", Type: "uint256"},
				{Name: "op", Type: "Op"},
				{Name: "gasRefund", Type: "GasRefund"},
			},
			"GasRefund": refundType,
			"Op":        opTypeFields,
			"Ops":       opsTypeFields,
		},
		PrimaryType: "SingleChainOps",
		Domain: apitypes.TypedDataDomain{
			Name:              "IntentExecutor",
			Version:           "v0.0.1",
			ChainId:           math.NewHexOrDecimal256(int64(in.ChainID)),
			VerifyingContract: in.Executor.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"account":   in.Account.Hex(),
			"nonce":     bigString(in.Nonce),
			"op":        opMessage(in.Ops),
			"gasRefund": refundMsg,
		},
	}, nil
}

// CompactTypedData builds the EIP-712 payload for a multichain compact. The
// domain chain id comes from the first element.
func CompactTypedData(in CompactIntent) (apitypes.TypedData, error) {
	if len(in.Elements) == 0 {
		return apitypes.TypedData{}, apperrors.Configuration(
			apperrors.CodeUnsupportedConfiguration, "compact intent has no elements")
	}
	if in.Elements[0].ChainID == nil {
		return apitypes.TypedData{}, apperrors.Configuration(
			apperrors.CodeUnsupportedConfiguration, "compact element has no chain id")
	}

	elements := make([]interface{}, len(in.Elements))
	for i, element := range in.Elements {
		commitments := make([]interface{}, len(element.Commitments))
		for j, lock := range element.Commitments {
			tag, token, err := SplitLockID(lock.ID)
			if err != nil {
				return apitypes.TypedData{}, err
			}
			commitments[j] = map[string]interface{}{
				"lockTag": hexutil.Encode(tag[:]),
				"token":   token.Hex(),
				"amount":  bigString(lock.Amount),
			}
		}
		mandate, err := mandateMessage(element.Mandate)
		if err != nil {
			return apitypes.TypedData{}, err
		}
		elements[i] = map[string]interface{}{
			"arbiter":     element.Arbiter.Hex(),
			"chainId":     bigString(element.ChainID),
			"commitments": commitments,
			"mandate":     mandate,
		}
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainTypeFields(true),
			"MultichainCompact": {
				{Name: "sponsor", Type: "address"},
				{Name: "nonce", Type: "uint256"},
				{Name: "expires", Type: "uint256"},
				{Name: "elements", Type: "Element[]"},
			},
			"Element": {
				{Name: "arbiter", Type: "address"},
				{Name: "chainId", Type: "uint256"},
				{Name: "commitments", Type: "Lock[]"},
				{Name: "mandate", Type: "Mandate"},
			},
			"Lock": {
				{Name: "lockTag", Type: "bytes12"},
				{Name: "token", Type: "address"},
				{Name: "amount", Type: "uint256"},
			},
			"Mandate": mandateTypeFields,
			"Target":  targetTypeFields,
			"Token":   tokenTypeFields,
			"Op":      opTypeFields,
			"Ops":     opsTypeFields,
		},
		PrimaryType: "MultichainCompact",
		Domain: apitypes.TypedDataDomain{
			Name:              "The Compact",
			Version:           "1",
			ChainId:           (*math.HexOrDecimal256)(in.Elements[0].ChainID),
			VerifyingContract: CompactVerifier.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"sponsor":  in.Sponsor.Hex(),
			"nonce":    bigString(in.Nonce),
			"expires":  bigString(in.Expires),
			"elements": elements,
		},
	}, nil
}

// Permit2TypedData builds the EIP-712 payload for a Permit2 batch-witness
// transfer funding a settlement. The Permit2 domain carries no version.
func Permit2TypedData(in Permit2Intent) (apitypes.TypedData, error) {
	element := in.Element
	if element.ChainID == nil {
		return apitypes.TypedData{}, apperrors.Configuration(
			apperrors.CodeUnsupportedConfiguration, "permit2 element has no chain id")
	}

	permitted := make([]interface{}, len(element.Commitments))
	for i, lock := range element.Commitments {
		_, token, err := SplitLockID(lock.ID)
		if err != nil {
			return apitypes.TypedData{}, err
		}
		permitted[i] = map[string]interface{}{
			"token":  token.Hex(),
			"amount": bigString(lock.Amount),
		}
	}
	mandate, err := mandateMessage(element.Mandate)
	if err != nil {
		return apitypes.TypedData{}, err
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainTypeFields(false),
			"PermitBatchWitnessTransferFrom": {
				{Name: "permitted", Type: "TokenPermissions[]"},
				{Name: "spender", Type: "address"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
				{Name: "mandate", Type: "Mandate"},
			},
			"TokenPermissions": tokenTypeFields,
			"Mandate":          mandateTypeFields,
			"Target":           targetTypeFields,
			"Token":            tokenTypeFields,
			"Op":               opTypeFields,
			"Ops":              opsTypeFields,
		},
		PrimaryType: "PermitBatchWitnessTransferFrom",
		Domain: apitypes.TypedDataDomain{
			Name:              "Permit2",
			ChainId:           (*math.HexOrDecimal256)(element.ChainID),
			VerifyingContract: Permit2Address.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"permitted": permitted,
			"spender":   element.Arbiter.Hex(),
			"nonce":     bigString(in.Nonce),
			"deadline":  bigString(in.Expires),
			"mandate":   mandate,
		},
	}, nil
}
