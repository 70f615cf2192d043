package codec

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"golang.org/x/crypto/sha3"
)

// Keccak hashes the concatenation of chunks without materializing it.
func Keccak(chunks ...[]byte) common.Hash {
	d := sha3.NewLegacyKeccak256()
	for _, chunk := range chunks {
		d.Write(chunk)
	}
	var h common.Hash
	d.Sum(h[:0])
	return h
}

// Selector returns the 4-byte function selector of a canonical signature
// such as "execute(bytes32,bytes)".
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], Keccak([]byte(signature)).Bytes()[:4])
	return sel
}

// HashTypedData computes the EIP-712 digest of the typed data struct.
func HashTypedData(td apitypes.TypedData) (common.Hash, error) {
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash typed data: %w", err)
	}
	return common.BytesToHash(digest), nil
}

// Minimal ERC-1967 proxy creation code around the embedded implementation
// address, as deployed by the account factories.
var (
	erc1967Prefix = hexutil.MustDecode("0x603d3d8160223d3973")
	erc1967Suffix = hexutil.MustDecode("0x60095155f3363d3d373d3d363d7f360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc545af43d6000803e6038573d6000fd5b3d6000f3")
)

// ERC1967InitCode returns the creation code of a minimal ERC-1967 proxy
// pointing at implementation.
func ERC1967InitCode(implementation common.Address) []byte {
	return Packed(erc1967Prefix, implementation.Bytes(), erc1967Suffix)
}

// ERC1967InitCodeHash returns the init-code hash used for counterfactual
// address derivation of minimal ERC-1967 proxy accounts.
func ERC1967InitCodeHash(implementation common.Address) common.Hash {
	return Keccak(erc1967Prefix, implementation.Bytes(), erc1967Suffix)
}
