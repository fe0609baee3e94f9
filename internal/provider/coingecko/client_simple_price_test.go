package coingecko_test

import (
	"context"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	coingecko "coindata/internal/provider/coingecko"
)

func TestGetSimplePrice(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Contains(t, req.URL.Path, "/simple/price")
			require.Equal(t, "test-key", req.URL.Query().Get("x_cg_demo_api_key"))
			require.Equal(t, "bitcoin,ethereum", req.URL.Query().Get("ids"))
			require.Equal(t, "usd", req.URL.Query().Get("vs_currencies"))
			require.Equal(t, "true", req.URL.Query().Get("include_24hr_change"))

			buffer := &bytes.Buffer{}
			require.NoError(t, json.NewEncoder(buffer).Encode(mockSimplePriceResponse))

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(buffer),
			}, nil
		}).
		Times(1)

	// Arrange: setup a new CoinGecko API client
	client, err := coingecko.NewCoinGeckoAPIClient("test-key", coingecko.WithHTTPClient(httpClient))
	require.NoError(t, err)
	require.NotNil(t, client)

	// Act: call GetSimplePrice
	prices, err := client.GetSimplePrice(context.Background(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)
	require.NotNil(t, prices)

	// Assert: prices should be unmarshalled from the mock response
	require.Len(t, prices, 2)
	require.InEpsilon(t, 50123.45, prices["bitcoin"].USD, 0.0001)
	require.InEpsilon(t, 2.15, prices["bitcoin"].USD24hChange, 0.0001)
	require.InEpsilon(t, 3001.20, prices["ethereum"].USD, 0.0001)
}

func TestGetSimplePrice_ErrPerformingRequest(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return nil, fmt.Errorf("error")
		}).
		Times(1)

	// Arrange: setup a new CoinGecko API client
	client, err := coingecko.NewCoinGeckoAPIClient("", coingecko.WithHTTPClient(httpClient))
	require.NoError(t, err)
	require.NotNil(t, client)

	// Act: call GetSimplePrice
	prices, err := client.GetSimplePrice(context.Background(), []string{"bitcoin"})
	require.Error(t, err)
	require.Nil(t, prices)
}

func TestGetSimplePrice_ErrRateLimited(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusTooManyRequests,
				Body:       io.NopCloser(bytes.NewReader([]byte{})),
			}, nil
		}).
		Times(1)

	// Arrange: setup a new CoinGecko API client
	client, err := coingecko.NewCoinGeckoAPIClient("", coingecko.WithHTTPClient(httpClient))
	require.NoError(t, err)
	require.NotNil(t, client)

	// Act: call GetSimplePrice
	prices, err := client.GetSimplePrice(context.Background(), []string{"bitcoin"})
	require.Error(t, err)
	require.True(t, errors.Is(err, coingecko.ErrRateLimited))
	require.Nil(t, prices)
}

func TestGetSimplePrice_ErrUnexpectedStatusCode(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(bytes.NewReader([]byte{})),
			}, nil
		}).
		Times(1)

	// Arrange: setup a new CoinGecko API client
	client, err := coingecko.NewCoinGeckoAPIClient("", coingecko.WithHTTPClient(httpClient))
	require.NoError(t, err)
	require.NotNil(t, client)

	// Act: call GetSimplePrice
	prices, err := client.GetSimplePrice(context.Background(), []string{"bitcoin"})
	require.Error(t, err)
	require.Nil(t, prices)
}

func TestGetSimplePrice_ErrDecodingResponse(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			buffer := &bytes.Buffer{}
			buffer.WriteString("invalid json")

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(buffer),
			}, nil
		}).
		Times(1)

	// Arrange: setup a new CoinGecko API client
	client, err := coingecko.NewCoinGeckoAPIClient("", coingecko.WithHTTPClient(httpClient))
	require.NoError(t, err)
	require.NotNil(t, client)

	// Act: call GetSimplePrice
	prices, err := client.GetSimplePrice(context.Background(), []string{"bitcoin"})
	require.Error(t, err)
	require.Nil(t, prices)
}

// mockSimplePriceResponse is a mock response from the CoinGecko API
var mockSimplePriceResponse = map[string]any{
	"bitcoin": map[string]any{
		"usd":            50123.45,
		"usd_24h_change": 2.15,
	},
	"ethereum": map[string]any{
		"usd":            3001.20,
		"usd_24h_change": -0.50,
	},
}
