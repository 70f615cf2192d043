package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywallet/polywallet/pkg/types"
)

type rpcCall struct {
	Method string
	Params []json.RawMessage
}

// newFakeBundler serves canned JSON-RPC results per method and records every
// call it receives.
func newFakeBundler(t *testing.T, results map[string]string) (*BundlerClient, *[]rpcCall) {
	t.Helper()
	calls := &[]rpcCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*calls = append(*calls, rpcCall{Method: req.Method, Params: req.Params})

		result, ok := results[req.Method]
		if !ok {
			result = "null"
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
	}))
	t.Cleanup(srv.Close)

	bundler, err := DialBundler(srv.URL)
	require.NoError(t, err)
	t.Cleanup(bundler.Close)
	return bundler, calls
}

func TestSendUserOperationWireFormat(t *testing.T) {
	opHash := common.HexToHash("0x186ff84e9bbbea1b0b1e5e2ac4a6581f37e235c1e0b2b9dd44cf87ec466a1ec1")
	bundler, calls := newFakeBundler(t, map[string]string{
		"eth_sendUserOperation": fmt.Sprintf("%q", opHash),
	})

	op := baseOp()
	op.Factory = common.HexToAddress("0x4e4946298614fc299b50c947289f4ad0572cb9ce")
	op.FactoryData = []byte{0x01, 0x02}
	op.Authorization = &ethtypes.SetCodeAuthorization{
		ChainID: *uint256.NewInt(1),
		Address: common.HexToAddress("0xe6Cae83BdE06E4c305530e199D7217f42808555B"),
		Nonce:   9,
		V:       1,
		R:       *uint256.NewInt(11),
		S:       *uint256.NewInt(22),
	}
	entryPoint := common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")

	got, err := bundler.SendUserOperation(context.Background(), op, entryPoint)
	require.NoError(t, err)
	assert.Equal(t, opHash, got)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "eth_sendUserOperation", call.Method)
	require.Len(t, call.Params, 2)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(call.Params[0], &wire))
	for _, field := range []string{
		"sender", "nonce", "callData", "signature",
		"factory", "factoryData", "eip7702Auth",
		"callGasLimit", "verificationGasLimit", "preVerificationGas",
		"maxFeePerGas", "maxPriorityFeePerGas",
	} {
		assert.Contains(t, wire, field)
	}
	assert.NotContains(t, wire, "paymaster")
	assert.NotContains(t, wire, "initCode")

	var auth map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(wire["eip7702Auth"], &auth))
	assert.JSONEq(t, `"0x1"`, string(auth["yParity"]))
	assert.JSONEq(t, `"0xb"`, string(auth["r"]))
	assert.JSONEq(t, `"0x16"`, string(auth["s"]))
	assert.JSONEq(t, `"0x9"`, string(auth["nonce"]))

	var wireEntryPoint common.Address
	require.NoError(t, json.Unmarshal(call.Params[1], &wireEntryPoint))
	assert.Equal(t, entryPoint, wireEntryPoint)
}

func TestSendUserOperationOmitsAbsentSections(t *testing.T) {
	bundler, calls := newFakeBundler(t, map[string]string{
		"eth_sendUserOperation": `"0x0000000000000000000000000000000000000000000000000000000000000001"`,
	})

	_, err := bundler.SendUserOperation(context.Background(), baseOp(),
		common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032"))
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal((*calls)[0].Params[0], &wire))
	assert.NotContains(t, wire, "factory")
	assert.NotContains(t, wire, "factoryData")
	assert.NotContains(t, wire, "eip7702Auth")
	assert.NotContains(t, wire, "paymaster")
}

func TestEstimateUserOperationGas(t *testing.T) {
	bundler, _ := newFakeBundler(t, map[string]string{
		"eth_estimateUserOperationGas": `{
			"preVerificationGas": "0xc350",
			"verificationGasLimit": "0x30d40",
			"callGasLimit": "0x186a0"
		}`,
	})

	op := &types.UserOperation{Sender: common.HexToAddress("0x01")}
	estimate, err := bundler.EstimateUserOperationGas(context.Background(), op,
		common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032"))
	require.NoError(t, err)

	estimate.Apply(op)
	assert.Zero(t, op.PreVerificationGas.Cmp(big.NewInt(50_000)))
	assert.Zero(t, op.VerificationGasLimit.Cmp(big.NewInt(200_000)))
	assert.Zero(t, op.CallGasLimit.Cmp(big.NewInt(100_000)))
	assert.Nil(t, op.PaymasterVerificationGasLimit)
}

func TestUserOperationReceiptPending(t *testing.T) {
	bundler, _ := newFakeBundler(t, nil)

	receipt, err := bundler.UserOperationReceipt(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.Nil(t, receipt)
}

func TestUserOperationReceiptParses(t *testing.T) {
	txHash := common.HexToHash("0x6e3d512a2f37e2d9f019300dd3cbcb9e15d60dce30155a4f6b4d7a0661d1a123")
	bundler, _ := newFakeBundler(t, map[string]string{
		"eth_getUserOperationReceipt": fmt.Sprintf(`{
			"userOpHash": "0x186ff84e9bbbea1b0b1e5e2ac4a6581f37e235c1e0b2b9dd44cf87ec466a1ec1",
			"success": true,
			"actualGasUsed": "0x5208",
			"receipt": {"transactionHash": %q, "blockNumber": "0x10"}
		}`, txHash),
	})

	receipt, err := bundler.UserOperationReceipt(context.Background(), common.HexToHash("0x01"))
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.True(t, receipt.Success)
	assert.Equal(t, txHash, receipt.Receipt.TransactionHash)
	assert.Zero(t, receipt.ActualGasUsed.ToInt().Cmp(big.NewInt(21_000)))
}
