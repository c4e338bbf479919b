package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"airvault/internal/types"
)

// LedgerClient calls the wallet ledger service that owns user balances.
// It implements types.WalletLedger. The engine never computes balances
// itself; the ledger is the source of truth and a debit either settles
// fully or not at all.
type LedgerClient struct {
	base    *BaseClient
	baseURL string
	apiKey  string
}

// LedgerConfig configures a LedgerClient.
type LedgerConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Retry      *RetryPolicy
}

// NewLedgerClient creates a LedgerClient with its own circuit breaker.
func NewLedgerClient(cfg LedgerConfig) *LedgerClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient(15 * time.Second)
	}
	policy := DefaultRetryPolicy()
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}
	return &LedgerClient{
		base:    NewBaseClient(httpClient, "wallet-ledger", policy, "airvault/1.0", types.ErrCodeUpstreamLedger),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

type ledgerBalanceResponse struct {
	Balance int64 `json:"balance"`
}

type ledgerDebitRequest struct {
	Amount int64 `json:"amount"`
}

type ledgerErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GetBalance returns the user's current wallet balance in naira.
func (l *LedgerClient) GetBalance(ctx context.Context, userID string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/wallets/%s/balance", l.baseURL, url.PathEscape(userID)), nil)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build balance request", err)
	}
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.base.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, l.decodeError(resp)
	}

	var decoded ledgerBalanceResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamLedger, "ledger returned malformed response", err)
	}
	return decoded.Balance, nil
}

// Debit withdraws the amount from the user's wallet. A 402 from the
// ledger maps to ErrCodeInsufficientFunds.
func (l *LedgerClient) Debit(ctx context.Context, userID string, amount int64) error {
	body, err := json.Marshal(ledgerDebitRequest{Amount: amount})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode debit request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/v1/wallets/%s/debits", l.baseURL, url.PathEscape(userID)), bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build debit request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return l.decodeError(resp)
	}
	return nil
}

func (l *LedgerClient) decodeError(resp *http.Response) *types.AppError {
	var decoded ledgerErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded)

	if resp.StatusCode == http.StatusPaymentRequired {
		msg := decoded.Message
		if msg == "" {
			msg = "wallet balance does not cover the amount"
		}
		return types.NewAppError(types.ErrCodeInsufficientFunds, msg, nil)
	}

	msg := decoded.Message
	if msg == "" {
		msg = fmt.Sprintf("ledger request failed with status %d", resp.StatusCode)
	}
	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamLedger, msg, nil,
		map[string]any{"status_code": resp.StatusCode, "ledger_code": decoded.Code})
}
