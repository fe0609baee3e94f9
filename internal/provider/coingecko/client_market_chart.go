package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strconv"
)

// ChartPoint is one [timestamp_ms, price] pair of a market chart.
type ChartPoint struct {
	Timestamp int64
	Price     float64
}

// GetMarketChart retrieves the USD price chart for one asset over the
// given number of days.
func (c *CoinGeckoAPIClient) GetMarketChart(ctx context.Context, id string, days int, opts ...CoinGeckoAPIClientOption) ([]ChartPoint, error) {
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
	query.Add("vs_currency", "usd")
	query.Add("days", strconv.Itoa(days))

	url := fmt.Sprintf("%s/coins/%s/market_chart?%s", override.baseURL, id, query.Encode())
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

	var body struct {
		Prices [][]float64 `json:"prices"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding market chart response: %w", err)
	}

	var points = make([]ChartPoint, 0, len(body.Prices))
	for _, p := range body.Prices {
		if len(p) < 2 {
			// Malformed pair; skip rather than failing the whole series.
			continue
		}
		points = append(points, ChartPoint{Timestamp: int64(p[0]), Price: p[1]})
	}
	return points, nil
}
