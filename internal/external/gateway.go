package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"airvault/internal/types"
)

// GatewayClient calls the VTU provider that fulfils airtime and data
// purchases. It implements types.PurchaseGateway.
type GatewayClient struct {
	base    *BaseClient
	baseURL string
	apiKey  string
}

// GatewayConfig configures a GatewayClient.
type GatewayConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Retry      *RetryPolicy
}

// NewGatewayClient creates a GatewayClient with its own circuit breaker.
func NewGatewayClient(cfg GatewayConfig) *GatewayClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient(30 * time.Second)
	}
	policy := DefaultRetryPolicy()
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}
	return &GatewayClient{
		base:    NewBaseClient(httpClient, "topup-gateway", policy, "airvault/1.0", types.ErrCodeUpstreamGateway),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

type gatewayPurchaseRequest struct {
	Type        types.TopUpType `json:"type"`
	Network     types.Network   `json:"network"`
	PhoneNumber string          `json:"phone_number"`
	Amount      int64           `json:"amount"`
}

type gatewayPurchaseResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// Purchase submits a top-up order. A 2xx response carries the provider
// reference and a status of completed, pending or failed; a 4xx response
// is surfaced as a gateway rejection with the provider's message.
func (g *GatewayClient) Purchase(ctx context.Context, typ types.TopUpType, network types.Network, phoneNumber string, amount int64) (*types.PurchaseResult, error) {
	body, err := json.Marshal(gatewayPurchaseRequest{
		Type:        typ,
		Network:     network,
		PhoneNumber: phoneNumber,
		Amount:      amount,
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode purchase request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/topups", bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build purchase request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamGateway, "failed to read gateway response", err)
	}

	var decoded gatewayPurchaseResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamGateway, "gateway returned malformed response", err)
	}

	if resp.StatusCode >= 400 {
		msg := decoded.Message
		if msg == "" {
			msg = fmt.Sprintf("gateway rejected the purchase with status %d", resp.StatusCode)
		}
		return nil, types.NewAppErrorWithDetails(types.ErrCodeUpstreamGateway, msg, nil,
			map[string]any{"status_code": resp.StatusCode})
	}

	return &types.PurchaseResult{
		Reference: decoded.Reference,
		Status:    mapGatewayStatus(decoded.Status),
	}, nil
}

func mapGatewayStatus(s string) types.TransactionStatus {
	switch s {
	case "completed", "success", "delivered":
		return types.TxCompleted
	case "pending", "processing":
		return types.TxPending
	default:
		return types.TxFailed
	}
}
