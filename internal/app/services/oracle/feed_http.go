package oracle

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/opencustody/ledger_layer/internal/app/domain/price"
	"github.com/opencustody/ledger_layer/pkg/logger"
)

// HTTPFeedProvider fetches readings from an HTTP price feed endpoint.
//
// Expected response body:
//
//	{
//	  "round_id": 92233720368,
//	  "price": "200012345678",
//	  "updated_at": 1724800000,
//	  "answered_in_round": 92233720368,
//	  "decimals": 8
//	}
type HTTPFeedProvider struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

var _ FeedProvider = (*HTTPFeedProvider)(nil)

// NewHTTPFeedProvider constructs a provider for the given endpoint.
func NewHTTPFeedProvider(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPFeedProvider, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("feed endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse feed endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("oracle-http-feed")
	}
	return &HTTPFeedProvider{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		log:      log,
	}, nil
}

func (p *HTTPFeedProvider) fetch(ctx context.Context) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint.String(), nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build feed request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("feed status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read feed response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("feed response is not valid JSON")
	}
	return gjson.ParseBytes(body), nil
}

// LatestReading fetches and decodes the most recent reading.
func (p *HTTPFeedProvider) LatestReading(ctx context.Context) (price.Reading, error) {
	doc, err := p.fetch(ctx)
	if err != nil {
		return price.Reading{}, err
	}

	rawPrice := doc.Get("price")
	if !rawPrice.Exists() {
		return price.Reading{}, fmt.Errorf("feed response missing price")
	}
	value, ok := parseBigInt(rawPrice.String())
	if !ok {
		return price.Reading{}, fmt.Errorf("feed price %q is not an integer", rawPrice.String())
	}

	return price.Reading{
		RoundID:         doc.Get("round_id").Uint(),
		Price:           value,
		UpdatedAt:       time.Unix(doc.Get("updated_at").Int(), 0).UTC(),
		AnsweredInRound: doc.Get("answered_in_round").Uint(),
	}, nil
}

func parseBigInt(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	return new(big.Int).SetString(s, 10)
}

// Decimals fetches the feed's declared decimal count.
func (p *HTTPFeedProvider) Decimals(ctx context.Context) (uint8, error) {
	doc, err := p.fetch(ctx)
	if err != nil {
		return 0, err
	}
	decimals := doc.Get("decimals")
	if !decimals.Exists() {
		return 0, fmt.Errorf("feed response missing decimals")
	}
	return uint8(decimals.Uint()), nil
}
