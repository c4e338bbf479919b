package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airvault/internal/types"
)

func TestLedgerGetBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/wallets/user-1/balance", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ledgerBalanceResponse{Balance: 42_500})
	}))
	defer srv.Close()

	client := NewLedgerClient(LedgerConfig{BaseURL: srv.URL, APIKey: "k"})
	balance, err := client.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42_500), balance)
}

func TestLedgerDebit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/wallets/user-1/debits", r.URL.Path)

		var req ledgerDebitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(1_000), req.Amount)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewLedgerClient(LedgerConfig{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, client.Debit(context.Background(), "user-1", 1_000))
}

func TestLedgerDebitInsufficientFunds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(ledgerErrorResponse{
			Code: "insufficient_balance", Message: "balance is 500, requested 1000",
		})
	}))
	defer srv.Close()

	client := NewLedgerClient(LedgerConfig{BaseURL: srv.URL, APIKey: "k"})
	err := client.Debit(context.Background(), "user-1", 1_000)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInsufficientFunds, appErr.Code)
	assert.Equal(t, http.StatusPaymentRequired, appErr.HTTPStatus())
}

func TestLedgerErrorCarriesUpstreamCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(ledgerErrorResponse{Code: "wallet_frozen", Message: "wallet is frozen"})
	}))
	defer srv.Close()

	client := NewLedgerClient(LedgerConfig{BaseURL: srv.URL, APIKey: "k"})
	err := client.Debit(context.Background(), "user-1", 1_000)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamLedger, appErr.Code)
	assert.Equal(t, "wallet_frozen", appErr.Details["ledger_code"])
}
