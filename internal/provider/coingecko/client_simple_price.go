package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"
)

// SimplePrice is the per-asset payload of the simple/price endpoint.
type SimplePrice struct {
	USD          float64 `json:"usd"`
	USD24hChange float64 `json:"usd_24h_change"`
}

// ErrRateLimited marks an HTTP 429 from the API so callers can treat it
// as a soft failure.
var ErrRateLimited = fmt.Errorf("rate limited")

// GetSimplePrice retrieves USD prices plus 24h change for the given asset ids.
func (c *CoinGeckoAPIClient) GetSimplePrice(ctx context.Context, ids []string, opts ...CoinGeckoAPIClientOption) (map[string]SimplePrice, error) {
	var override = &CoinGeckoAPIClient{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      c.query,
	}
	for _, opt := range opts {
		opt(override)
	}

	query := maps.Clone(override.query)
	query.Add("ids", strings.Join(ids, ","))
	query.Add("vs_currencies", "usd")
	query.Add("include_24hr_change", "true")

	url := fmt.Sprintf("%s/simple/price?%s", override.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusTooManyRequests:
		return nil, ErrRateLimited

	default:
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var body map[string]SimplePrice
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding simple price response: %w", err)
	}
	return body, nil
}
