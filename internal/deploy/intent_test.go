package deploy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/polywallet/polywallet/internal/intent"
	apperrors "github.com/polywallet/polywallet/pkg/errors"
	"github.com/polywallet/polywallet/pkg/types"
)

func TestDeployViaIntent(t *testing.T) {
	node := newFakeNode()
	intents := &fakeIntents{receipt: intent.Receipt{BundleID: "bundle-7", Status: "pending"}}
	// The orchestrator deploys the account while settling the intent.
	intents.onDeploy = func() {
		node.code[testAccount] = []byte{0x60, 0x80}
	}

	var signed [][32]byte
	var states []State
	coord := NewCoordinator(node, append(fastPolling(), WithIntentClient(intents), recordStates(&states))...)

	result, err := coord.DeployViaIntent(context.Background(), Request{
		Adapter: factoryAdapter(),
		Config:  types.AccountConfig{Provider: "stub"},
		Chain:   types.Chain{ID: 31337},
		SignOp:  recordOpSigner(&signed),
	})
	require.NoError(t, err)

	assert.Equal(t, StateDeployed, result.State)
	assert.Equal(t, PathIntent, result.Path)
	assert.Equal(t, testAccount, result.Address)
	assert.Equal(t, "bundle-7", result.BundleID)
	assert.Empty(t, node.sent)

	require.Len(t, intents.deploys, 1)
	payload := string(intents.deploys[0])
	assert.Equal(t, "deploy", gjson.Get(payload, "type").String())
	assert.Equal(t, int64(31337), gjson.Get(payload, "chainId").Int())
	assert.Equal(t, testAccount.Hex(), gjson.Get(payload, "account").String())
	assert.Equal(t, "0", gjson.Get(payload, "nonce").String())
	calls := gjson.Get(payload, "calls").Array()
	require.Len(t, calls, 1)
	assert.Equal(t, testAccount.Hex(), calls[0].Get("to").String())
	assert.Equal(t, "0", calls[0].Get("value").String())

	require.Len(t, signed, 1)
	assert.NotEmpty(t, gjson.Get(payload, "signature").String())

	assert.Equal(t, []State{StateChecking, StateSubmittingIntent, StateAwaiting, StateDeployed}, states)
}

func TestDeployViaIntentSkipsDeployedAccount(t *testing.T) {
	node := newFakeNode()
	node.code[testAccount] = []byte{0x60, 0x80}
	intents := &fakeIntents{}

	coord := NewCoordinator(node, WithIntentClient(intents))
	result, err := coord.DeployViaIntent(context.Background(), Request{
		Adapter: factoryAdapter(),
		Config:  types.AccountConfig{Provider: "stub"},
		Chain:   types.Chain{ID: 31337},
		SignOp:  recordOpSigner(nil),
	})
	require.NoError(t, err)

	assert.True(t, result.AlreadyDeployed)
	assert.Empty(t, intents.deploys)
}

func TestDeployViaIntentRequiresClient(t *testing.T) {
	coord := NewCoordinator(newFakeNode())
	_, err := coord.DeployViaIntent(context.Background(), Request{
		Adapter: factoryAdapter(),
		Config:  types.AccountConfig{Provider: "stub"},
		Chain:   types.Chain{ID: 31337},
		SignOp:  recordOpSigner(nil),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnsupportedConfiguration))
}

func TestDeployViaIntentRequiresSigner(t *testing.T) {
	coord := NewCoordinator(newFakeNode(), WithIntentClient(&fakeIntents{}))
	_, err := coord.DeployViaIntent(context.Background(), Request{
		Adapter: factoryAdapter(),
		Config:  types.AccountConfig{Provider: "stub"},
		Chain:   types.Chain{ID: 31337},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnsupportedConfiguration))
}

func TestDeployViaIntentTimesOutWithoutCode(t *testing.T) {
	node := newFakeNode()
	intents := &fakeIntents{receipt: intent.Receipt{BundleID: "bundle-8"}}

	coord := NewCoordinator(node,
		WithIntentClient(intents),
		WithPollInterval(time.Millisecond),
		WithWaitTimeout(20*time.Millisecond))

	_, err := coord.DeployViaIntent(context.Background(), Request{
		Adapter: factoryAdapter(),
		Config:  types.AccountConfig{Provider: "stub"},
		Chain:   types.Chain{ID: 31337},
		SignOp:  recordOpSigner(nil),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDeploymentTimeout))
}
