// Package intent talks to the cross-chain orchestrator. Payloads stay
// opaque at this layer: the account code hands over a signed intent and
// interprets nothing beyond submission status.
package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	apperrors "github.com/polywallet/polywallet/pkg/errors"
)

// Client submits signed intents to the orchestrator.
type Client interface {
	// SubmitDeployIntent submits an intent whose settlement deploys the
	// account as a side effect.
	SubmitDeployIntent(ctx context.Context, payload json.RawMessage) (Receipt, error)
	// Submit submits a regular execution intent.
	Submit(ctx context.Context, payload json.RawMessage) (Receipt, error)
}

// Receipt identifies an accepted intent bundle.
type Receipt struct {
	BundleID string
	Status   string
}

// HTTPClient is the default orchestrator client.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates an orchestrator client for the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit submits a regular execution intent.
func (c *HTTPClient) Submit(ctx context.Context, payload json.RawMessage) (Receipt, error) {
	return c.post(ctx, "/intents", payload)
}

// SubmitDeployIntent submits a deployment-triggering intent.
func (c *HTTPClient) SubmitDeployIntent(ctx context.Context, payload json.RawMessage) (Receipt, error) {
	return c.post(ctx, "/intents/deploy", payload)
}

type submitRequest struct {
	ID     string          `json:"id"`
	Intent json.RawMessage `json:"intent"`
}

func (c *HTTPClient) post(ctx context.Context, path string, payload json.RawMessage) (Receipt, error) {
	requestID := uuid.NewString()
	body, err := json.Marshal(submitRequest{ID: requestID, Intent: payload})
	if err != nil {
		return Receipt{}, fmt.Errorf("encoding intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("building intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return Receipt{}, apperrors.Execution(apperrors.CodeSubmissionFailed,
			"intent submission failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, fmt.Errorf("reading intent response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := gjson.GetBytes(raw, "error").String()
		if msg == "" {
			msg = resp.Status
		}
		return Receipt{}, apperrors.Execution(apperrors.CodeSubmissionFailed,
			"intent rejected: "+msg, nil)
	}

	doc := gjson.ParseBytes(raw)
	return Receipt{
		BundleID: doc.Get("bundleId").String(),
		Status:   doc.Get("status").String(),
	}, nil
}
