// Package httpapi exposes the ledger over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/opencustody/ledger_layer/internal/app"
	domain "github.com/opencustody/ledger_layer/internal/app/domain/bank"
	"github.com/opencustody/ledger_layer/internal/app/services/admin"
	banksvc "github.com/opencustody/ledger_layer/internal/app/services/bank"
	"github.com/opencustody/ledger_layer/internal/app/services/ledger"
	"github.com/opencustody/ledger_layer/internal/app/services/oracle"
	"github.com/opencustody/ledger_layer/internal/app/services/policy"
	"github.com/opencustody/ledger_layer/internal/app/services/registry"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	r.HandleFunc("/bank/deposit/native", h.depositNative).Methods(http.MethodPost)
	r.HandleFunc("/bank/deposit/asset", h.depositAsset).Methods(http.MethodPost)
	r.HandleFunc("/bank/withdraw/native", h.withdrawNative).Methods(http.MethodPost)
	r.HandleFunc("/bank/withdraw/asset", h.withdrawAsset).Methods(http.MethodPost)
	r.HandleFunc("/bank/balance", h.balance).Methods(http.MethodGet)
	r.HandleFunc("/bank/stats", h.stats).Methods(http.MethodGet)
	r.HandleFunc("/bank/price", h.price).Methods(http.MethodGet)
	r.HandleFunc("/bank/transactions", h.transactions).Methods(http.MethodGet)

	r.HandleFunc("/assets", h.listAssets).Methods(http.MethodGet)
	r.HandleFunc("/assets/{id}", h.getAsset).Methods(http.MethodGet)

	r.HandleFunc("/admin/assets", h.addAsset).Methods(http.MethodPost)
	r.HandleFunc("/admin/assets/{id}", h.removeAsset).Methods(http.MethodDelete)
	r.HandleFunc("/admin/pause", h.setPaused).Methods(http.MethodPost)

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Bank operations ---------------------------------------------------------------

type operationRequest struct {
	Account string `json:"account"`
	AssetID string `json:"asset_id,omitempty"`
	Amount  string `json:"amount"`
}

type transactionResponse struct {
	ID        string `json:"id"`
	Account   string `json:"account"`
	AssetID   string `json:"asset_id"`
	Type      string `json:"type"`
	Amount    string `json:"amount"`
	USDValue  string `json:"usd_value"`
	CreatedAt string `json:"created_at"`
}

func toTransactionResponse(tx domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:        tx.ID,
		Account:   tx.Account,
		AssetID:   tx.AssetID,
		Type:      tx.Type,
		Amount:    tx.Amount.String(),
		USDValue:  domain.FormatUSD(tx.USDValue),
		CreatedAt: tx.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *handler) depositNative(w http.ResponseWriter, r *http.Request) {
	payload, amount, ok := h.decodeOperation(w, r)
	if !ok {
		return
	}
	tx, err := h.app.Bank.DepositNative(r.Context(), payload.Account, amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (h *handler) depositAsset(w http.ResponseWriter, r *http.Request) {
	payload, amount, ok := h.decodeOperation(w, r)
	if !ok {
		return
	}
	tx, err := h.app.Bank.DepositAsset(r.Context(), payload.Account, payload.AssetID, amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (h *handler) withdrawNative(w http.ResponseWriter, r *http.Request) {
	payload, amount, ok := h.decodeOperation(w, r)
	if !ok {
		return
	}
	tx, err := h.app.Bank.WithdrawNative(r.Context(), payload.Account, amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (h *handler) withdrawAsset(w http.ResponseWriter, r *http.Request) {
	payload, amount, ok := h.decodeOperation(w, r)
	if !ok {
		return
	}
	tx, err := h.app.Bank.WithdrawAsset(r.Context(), payload.Account, payload.AssetID, amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (h *handler) decodeOperation(w http.ResponseWriter, r *http.Request) (operationRequest, *big.Int, bool) {
	var payload operationRequest
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return payload, nil, false
	}
	amount, err := parseAmount(payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return payload, nil, false
	}
	return payload, amount, true
}

// Bank queries ------------------------------------------------------------------

func (h *handler) balance(w http.ResponseWriter, r *http.Request) {
	account := strings.TrimSpace(r.URL.Query().Get("account"))
	assetID := strings.TrimSpace(r.URL.Query().Get("asset_id"))
	if account == "" || assetID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("account and asset_id are required"))
		return
	}
	balance, err := h.app.Bank.BalanceOf(r.Context(), account, assetID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"account":  account,
		"asset_id": assetID,
		"balance":  balance.String(),
	})
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Bank.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) price(w http.ResponseWriter, r *http.Request) {
	normalized, err := h.app.Bank.NativePriceUSD(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"price":     normalized.String(),
		"price_usd": domain.FormatUSD(normalized),
	})
}

func (h *handler) transactions(w http.ResponseWriter, r *http.Request) {
	account := strings.TrimSpace(r.URL.Query().Get("account"))
	txs, err := h.app.Bank.Transactions(r.Context(), account)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	result := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		result = append(result, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, result)
}

// Registry queries ---------------------------------------------------------------

func (h *handler) listAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.app.Bank.ListAssets(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"assets": assets})
}

func (h *handler) getAsset(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["id"]
	supported, err := h.app.Bank.IsSupported(r.Context(), assetID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"asset_id": assetID, "supported": supported})
}

// Admin operations ----------------------------------------------------------------

func (h *handler) addAsset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AssetID string `json:"asset_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Admin.AddAsset(r.Context(), callerIdentity(r), payload.AssetID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"asset_id": payload.AssetID})
}

func (h *handler) removeAsset(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["id"]
	if err := h.app.Admin.RemoveAsset(r.Context(), callerIdentity(r), assetID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) setPaused(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Paused bool `json:"paused"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Admin.SetPaused(r.Context(), callerIdentity(r), payload.Paused); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": payload.Paused})
}

// Helpers --------------------------------------------------------------------------

// callerIdentity extracts the caller principal from the Authorization header.
func callerIdentity(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if after, found := strings.CutPrefix(auth, "Bearer "); found {
		return strings.TrimSpace(after)
	}
	return ""
}

func parseAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not an integer", raw)
	}
	return amount, nil
}

// writeServiceError maps domain errors to HTTP status codes. Errors without
// an explicit mapping are infrastructure failures and report as 500.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, banksvc.ErrInvalidAccount),
		errors.Is(err, banksvc.ErrZeroAmount),
		errors.Is(err, banksvc.ErrInvalidAsset),
		errors.Is(err, banksvc.ErrWrongPath),
		errors.Is(err, registry.ErrInvalidAsset),
		errors.Is(err, registry.ErrCannotRemoveNative),
		errors.Is(err, registry.ErrCannotReaddNative):
		status = http.StatusBadRequest
	case errors.Is(err, admin.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, registry.ErrNotSupported):
		status = http.StatusNotFound
	case errors.Is(err, banksvc.ErrReentrantCall),
		errors.Is(err, banksvc.ErrPaused),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, registry.ErrAlreadySupported):
		status = http.StatusConflict
	case errors.Is(err, policy.ErrCapExceeded),
		errors.Is(err, policy.ErrLimitExceeded),
		errors.Is(err, ledger.ErrArithmeticOverflow),
		errors.Is(err, banksvc.ErrAssetNotSupported):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, oracle.ErrInvalidPrice),
		errors.Is(err, oracle.ErrIncompleteRound),
		errors.Is(err, oracle.ErrStale),
		errors.Is(err, banksvc.ErrInboundTransferFailed),
		errors.Is(err, banksvc.ErrOutboundTransferFailed):
		status = http.StatusBadGateway
	}
	writeError(w, status, err)
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
