package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opencustody/ledger_layer/pkg/logger"
)

// HTTPTransferProvider drives an external asset-transfer endpoint.
//
// transfer-in request/response:
//
//	POST {endpoint}/transfer-in  {"from":..,"asset_id":..,"amount":"100"}
//	=> {"received":"98"}
//
// transfer-out:
//
//	POST {endpoint}/transfer-out {"to":..,"asset_id":..,"amount":"100"}
//	=> {"success":true}
type HTTPTransferProvider struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

var _ TransferProvider = (*HTTPTransferProvider)(nil)

// NewHTTPTransferProvider constructs a provider for the given endpoint.
func NewHTTPTransferProvider(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPTransferProvider, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("transfer endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse transfer endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("transfer-provider")
	}
	return &HTTPTransferProvider{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		log:      log,
	}, nil
}

func (p *HTTPTransferProvider) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode transfer request: %w", err)
	}

	target := *p.endpoint
	target.Path = strings.TrimRight(target.Path, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("transfer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transfer status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode transfer response: %w", err)
	}
	return nil
}

func (p *HTTPTransferProvider) TransferIn(ctx context.Context, from, assetID string, amount *big.Int) (*big.Int, error) {
	var result struct {
		Received string `json:"received"`
	}
	payload := map[string]string{"from": from, "asset_id": assetID, "amount": amount.String()}
	if err := p.post(ctx, "/transfer-in", payload, &result); err != nil {
		return nil, err
	}
	received, ok := new(big.Int).SetString(strings.TrimSpace(result.Received), 10)
	if !ok {
		return nil, fmt.Errorf("provider returned invalid received amount %q", result.Received)
	}
	return received, nil
}

func (p *HTTPTransferProvider) TransferOut(ctx context.Context, to, assetID string, amount *big.Int) (bool, error) {
	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	payload := map[string]string{"to": to, "asset_id": assetID, "amount": amount.String()}
	if err := p.post(ctx, "/transfer-out", payload, &result); err != nil {
		return false, err
	}
	if !result.Success && result.Error != "" {
		return false, fmt.Errorf("provider rejected transfer: %s", result.Error)
	}
	return result.Success, nil
}

// PassthroughTransferProvider treats every transfer as instantaneous and
// fee-free. It backs single-node deployments where value movement is handled
// out of band, and tests.
type PassthroughTransferProvider struct{}

var _ TransferProvider = PassthroughTransferProvider{}

func (PassthroughTransferProvider) TransferIn(_ context.Context, _, _ string, amount *big.Int) (*big.Int, error) {
	return new(big.Int).Set(amount), nil
}

func (PassthroughTransferProvider) TransferOut(context.Context, string, string, *big.Int) (bool, error) {
	return true, nil
}
