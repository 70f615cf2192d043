package providers

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywallet/polywallet/internal/codec"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

func decodeExecute(t *testing.T, data []byte) ([32]byte, []byte) {
	t.Helper()
	require.GreaterOrEqual(t, len(data), 4)
	assert.Equal(t, executeSelector[:], data[:4])
	values, err := executeArgs.Unpack(data[4:])
	require.NoError(t, err)
	return values[0].([32]byte), values[1].([]byte)
}

func TestEncodeCallsSingleUsesPackedLayout(t *testing.T) {
	call := types.Call{
		To:    testOwner,
		Value: big.NewInt(42),
		Data:  []byte{0xde, 0xad, 0xbe, 0xef},
	}
	data, err := encode7579Calls([]types.Call{call})
	require.NoError(t, err)

	mode, execution := decodeExecute(t, data)
	assert.Equal(t, callTypeSingle, mode[0])
	assert.Equal(t, make([]byte, 31), mode[1:])

	expected := codec.Packed(call.To.Bytes(), codec.PackedUint(big.NewInt(42), 32), call.Data)
	assert.Equal(t, expected, execution)
}

func TestEncodeCallsBatchUsesTupleArray(t *testing.T) {
	calls := []types.Call{
		{To: testOwner, Data: []byte{0x01}},
		{To: testOwnerTwo, Value: big.NewInt(7), Data: []byte{0x02, 0x03}},
	}
	data, err := encode7579Calls(calls)
	require.NoError(t, err)

	mode, execution := decodeExecute(t, data)
	assert.Equal(t, callTypeBatch, mode[0])

	values, err := executionsArgs.Unpack(execution)
	require.NoError(t, err)
	repacked, err := executionsArgs.Pack(values...)
	require.NoError(t, err)
	assert.Equal(t, execution, repacked)
	assert.Contains(t, common.Bytes2Hex(execution), common.Bytes2Hex(testOwnerTwo.Bytes()))
}

func TestEncodeCallsRejectsEmptyBatch(t *testing.T) {
	_, err := encode7579Calls(nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnsupportedConfiguration))
}

func TestInstallModuleDataLayout(t *testing.T) {
	module := types.Module{
		Address: sessionModAddr,
		Kind:    types.ModuleKindValidator,
	}
	data, err := installModuleData(module, []byte{0xaa, 0xbb})
	require.NoError(t, err)
	assert.Equal(t, installModuleSelector[:], data[:4])

	values, err := moduleCallArgs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Zero(t, values[0].(*big.Int).Cmp(big.NewInt(1)))
	assert.Equal(t, sessionModAddr, values[1].(common.Address))
	assert.Equal(t, []byte{0xaa, 0xbb}, values[2].([]byte))
}

func TestInstallModuleRejectsUnknownKind(t *testing.T) {
	_, err := installModuleData(types.Module{Address: sessionModAddr}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
}

func TestUninstallModuleCallLayout(t *testing.T) {
	account := common.HexToAddress("0x1111111111111111111111111111111111111111")
	module := types.Module{
		Address:    sessionModAddr,
		Kind:       types.ModuleKindExecutor,
		DeInitData: []byte{0xcc},
	}
	call, err := uninstallModuleCall(account, module, module.DeInitData)
	require.NoError(t, err)
	assert.Equal(t, account, call.To)
	assert.Equal(t, uninstallModuleSelector[:], call.Data[:4])

	values, err := moduleCallArgs.Unpack(call.Data[4:])
	require.NoError(t, err)
	assert.Zero(t, values[0].(*big.Int).Cmp(big.NewInt(2)))
	assert.Equal(t, []byte{0xcc}, values[2].([]byte))
}
