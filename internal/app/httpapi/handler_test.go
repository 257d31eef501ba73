package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	app "github.com/opencustody/ledger_layer/internal/app"
	domain "github.com/opencustody/ledger_layer/internal/app/domain/bank"
	"github.com/opencustody/ledger_layer/internal/app/storage/memory"
	"github.com/opencustody/ledger_layer/internal/config"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Oracle: config.OracleConfig{StaticPriceUSD: "2000"},
		Bank: config.BankConfig{
			DepositCapUSD:      "1000000",
			WithdrawalLimitUSD: "50000",
			AdminPrincipals:    []string{"root"},
		},
	}
	application, err := app.New(cfg, app.Stores{}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	return NewHandler(application)
}

func nativeUnits(units int64) string {
	return new(big.Int).Mul(big.NewInt(units), domain.NativeUnit).String()
}

func doJSON(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDepositAndBalanceFlow(t *testing.T) {
	h := newTestHandler(t)

	body := fmt.Sprintf(`{"account":"alice","amount":"%s"}`, nativeUnits(400))
	rec := doJSON(t, h, http.MethodPost, "/bank/deposit/native", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("deposit status = %d, body %s", rec.Code, rec.Body)
	}
	var tx struct {
		Type     string `json:"type"`
		Amount   string `json:"amount"`
		USDValue string `json:"usd_value"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &tx); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if tx.Type != "deposit" || tx.USDValue != "800000" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}

	rec = doJSON(t, h, http.MethodGet, "/bank/balance?account=alice&asset_id=NATIVE", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("balance status = %d", rec.Code)
	}
	var balance struct {
		Balance string `json:"balance"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &balance)
	if balance.Balance != nativeUnits(400) {
		t.Fatalf("balance = %s", balance.Balance)
	}

	rec = doJSON(t, h, http.MethodGet, "/bank/stats", "", "")
	var stats struct {
		Deposits uint64 `json:"deposits"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats.Deposits != 1 {
		t.Fatalf("deposits = %d", stats.Deposits)
	}

	rec = doJSON(t, h, http.MethodGet, "/bank/transactions?account=alice", "", "")
	var txs []json.RawMessage
	_ = json.Unmarshal(rec.Body.Bytes(), &txs)
	if len(txs) != 1 {
		t.Fatalf("transactions = %d", len(txs))
	}
}

func TestDepositCapMapsTo422(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/bank/deposit/native", "",
		fmt.Sprintf(`{"account":"alice","amount":"%s"}`, nativeUnits(600)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestWithdrawalLimitMapsTo422(t *testing.T) {
	h := newTestHandler(t)

	doJSON(t, h, http.MethodPost, "/bank/deposit/native", "",
		fmt.Sprintf(`{"account":"alice","amount":"%s"}`, nativeUnits(100)))

	rec := doJSON(t, h, http.MethodPost, "/bank/withdraw/native", "",
		fmt.Sprintf(`{"account":"alice","amount":"%s"}`, nativeUnits(30)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestInsufficientBalanceMapsTo409(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/bank/withdraw/native", "",
		fmt.Sprintf(`{"account":"alice","amount":"%s"}`, nativeUnits(1)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestAdminEndpoints(t *testing.T) {
	h := newTestHandler(t)

	// No token.
	rec := doJSON(t, h, http.MethodPost, "/admin/assets", "", `{"asset_id":"TOKENX"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous add: status = %d", rec.Code)
	}

	// Wrong principal.
	rec = doJSON(t, h, http.MethodPost, "/admin/assets", "mallory", `{"asset_id":"TOKENX"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("non-admin add: status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/admin/assets", "root", `{"asset_id":"TOKENX"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin add: status = %d, body %s", rec.Code, rec.Body)
	}

	// Duplicate add conflicts.
	rec = doJSON(t, h, http.MethodPost, "/admin/assets", "root", `{"asset_id":"TOKENX"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate add: status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/assets/TOKENX", "", "")
	var info struct {
		Supported bool `json:"supported"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &info)
	if !info.Supported {
		t.Fatalf("asset should be supported: %s", rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/assets", "", "")
	var list struct {
		Assets []string `json:"assets"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list.Assets) != 2 {
		t.Fatalf("assets = %v", list.Assets)
	}

	rec = doJSON(t, h, http.MethodDelete, "/admin/assets/TOKENX", "root", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove: status = %d", rec.Code)
	}

	// Removing the native asset is refused downstream; surfaces as 400.
	rec = doJSON(t, h, http.MethodDelete, "/admin/assets/NATIVE", "root", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("remove native: status = %d", rec.Code)
	}
}

func TestPauseEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/admin/pause", "root", `{"paused":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("pause: status = %d, body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodPost, "/bank/deposit/native", "",
		fmt.Sprintf(`{"account":"alice","amount":"%s"}`, nativeUnits(1)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("deposit while paused: status = %d", rec.Code)
	}

	// Withdrawal attempts pass the pause check and fail on balance instead.
	rec = doJSON(t, h, http.MethodPost, "/bank/withdraw/native", "",
		fmt.Sprintf(`{"account":"alice","amount":"%s"}`, nativeUnits(1)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("withdraw while paused: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "insufficient balance") {
		t.Fatalf("expected balance error, got %s", rec.Body)
	}
}

func TestRequestValidation(t *testing.T) {
	h := newTestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"account":`},
		{"unknown field", `{"account":"alice","amount":"1","extra":true}`},
		{"missing amount", `{"account":"alice"}`},
		{"non-integer amount", `{"account":"alice","amount":"1.5"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/bank/deposit/native", "", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
		})
	}

	rec := doJSON(t, h, http.MethodGet, "/bank/balance?account=alice", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing asset_id: status = %d", rec.Code)
	}
}

func TestPriceEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/bank/price", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var price struct {
		PriceUSD string `json:"price_usd"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &price)
	if price.PriceUSD != "2000" {
		t.Fatalf("price_usd = %s", price.PriceUSD)
	}
}

// brokenStats wraps the memory store and fails stats reads.
type brokenStats struct {
	*memory.Store
}

func (s *brokenStats) Stats(context.Context) (domain.Stats, error) {
	return domain.Stats{}, fmt.Errorf("connection reset")
}

func TestStoreFailureMapsToServerError(t *testing.T) {
	store := memory.New()
	cfg := &config.Config{
		Oracle: config.OracleConfig{StaticPriceUSD: "2000"},
		Bank: config.BankConfig{
			DepositCapUSD:      "1000000",
			WithdrawalLimitUSD: "50000",
		},
	}
	application, err := app.New(cfg, app.Stores{
		Ledger:       store,
		Registry:     store,
		Stats:        &brokenStats{Store: store},
		Transactions: store,
	}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	h := NewHandler(application)

	rec := doJSON(t, h, http.MethodGet, "/bank/stats", "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
