package codec

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Shared ABI types, constructed once. abi.NewType only fails on malformed
// expressions, so construction panics instead of returning an error.
var (
	TypeAddress      = MustType("address")
	TypeUint256      = MustType("uint256")
	TypeUint128      = MustType("uint128")
	TypeBytes32      = MustType("bytes32")
	TypeBytes        = MustType("bytes")
	TypeBool         = MustType("bool")
	TypeString       = MustType("string")
	TypeAddressSlice = MustType("address[]")
	TypeUint256Slice = MustType("uint256[]")
)

// MustType parses a Solidity type expression, with tuple components given
// in marshaling form.
func MustType(expr string, components ...abi.ArgumentMarshaling) abi.Type {
	t, err := abi.NewType(expr, "", components)
	if err != nil {
		panic(fmt.Sprintf("codec: invalid abi type %q: %v", expr, err))
	}
	return t
}

// Args assembles an argument list from types, in order.
func Args(types ...abi.Type) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		args[i] = abi.Argument{Type: t}
	}
	return args
}

// Encode ABI-encodes values against the argument list.
func Encode(args abi.Arguments, values ...interface{}) ([]byte, error) {
	data, err := args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("abi encode: %w", err)
	}
	return data, nil
}

// MustParseABI parses a JSON contract ABI, panicking on malformed input.
// Intended for package-level constants.
func MustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("codec: invalid abi json: %v", err))
	}
	return parsed
}

// DecodeCall matches calldata against the contract ABI by selector and
// unpacks the arguments. Used to cross-check externally supplied factory
// calls before trusting them.
func DecodeCall(contract abi.ABI, data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("calldata shorter than a selector")
	}
	method, err := contract.MethodById(data[:4])
	if err != nil {
		return nil, nil, fmt.Errorf("unknown selector %x: %w", data[:4], err)
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("unpack %s arguments: %w", method.Name, err)
	}
	return method, values, nil
}
