package codec

import (
	"bytes"
	"math/big"

	"github.com/holiman/uint256"
)

// Packed concatenates chunks, mirroring Solidity's abi.encodePacked over
// pre-sized values.
func Packed(chunks ...[]byte) []byte {
	return bytes.Join(chunks, nil)
}

// PackedUint renders v as a size-byte big-endian integer. Values wider
// than size bits keep only their low bytes, matching Solidity's packed
// truncation.
func PackedUint(v *big.Int, size int) []byte {
	if v == nil {
		return make([]byte, size)
	}
	word := uint256.MustFromBig(v).Bytes32()
	return word[32-size:]
}

// PackedUint64 renders v as a size-byte big-endian integer.
func PackedUint64(v uint64, size int) []byte {
	word := uint256.NewInt(v).Bytes32()
	return word[32-size:]
}
