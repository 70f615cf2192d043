package intent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/polywallet/polywallet/pkg/errors"
)

type capturedSubmission struct {
	Path      string
	RequestID string
	Body      map[string]json.RawMessage
}

func newFakeOrchestrator(t *testing.T, status int, response string) (*HTTPClient, *[]capturedSubmission) {
	t.Helper()

	var captured []capturedSubmission
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &body))

		captured = append(captured, capturedSubmission{
			Path:      r.URL.Path,
			RequestID: r.Header.Get("X-Request-Id"),
			Body:      body,
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	return NewHTTPClient(server.URL + "/"), &captured
}

func TestSubmitPostsTaggedIntent(t *testing.T) {
	client, captured := newFakeOrchestrator(t, http.StatusOK,
		`{"bundleId":"0xbeef","status":"pending"}`)

	payload := json.RawMessage(`{"kind":"transfer","amount":"100"}`)
	receipt, err := client.Submit(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "0xbeef", receipt.BundleID)
	assert.Equal(t, "pending", receipt.Status)

	require.Len(t, *captured, 1)
	call := (*captured)[0]
	assert.Equal(t, "/intents", call.Path)

	// The request id rides in both the envelope and the header so server
	// logs correlate without parsing bodies.
	var id string
	require.NoError(t, json.Unmarshal(call.Body["id"], &id))
	_, err = uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, call.RequestID)

	assert.JSONEq(t, string(payload), string(call.Body["intent"]))
}

func TestSubmitDeployIntentUsesDeployPath(t *testing.T) {
	client, captured := newFakeOrchestrator(t, http.StatusOK,
		`{"bundleId":"0x01","status":"queued"}`)

	receipt, err := client.SubmitDeployIntent(context.Background(), json.RawMessage(`{"deploy":true}`))
	require.NoError(t, err)
	assert.Equal(t, "0x01", receipt.BundleID)

	require.Len(t, *captured, 1)
	assert.Equal(t, "/intents/deploy", (*captured)[0].Path)
}

func TestSubmitSurfacesServerError(t *testing.T) {
	client, _ := newFakeOrchestrator(t, http.StatusUnprocessableEntity,
		`{"error":"insufficient deposit"}`)

	_, err := client.Submit(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSubmissionFailed))
	assert.Contains(t, err.Error(), "insufficient deposit")
}

func TestSubmitFallsBackToStatusLine(t *testing.T) {
	client, _ := newFakeOrchestrator(t, http.StatusBadGateway, `not json`)

	_, err := client.Submit(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSubmissionFailed))
	assert.Contains(t, err.Error(), "502")
}

func TestSubmitWrapsTransportFailure(t *testing.T) {
	client, _ := newFakeOrchestrator(t, http.StatusOK, `{}`)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Submit(cancelled, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSubmissionFailed))
}
