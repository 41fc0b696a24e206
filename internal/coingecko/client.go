package coingecko

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ekoc/coinfolio/internal/logger"
)

const apiKeyHeader = "x-cg-demo-api-key"

// Client talks to the upstream CoinGecko REST API. The proxy endpoints
// relay its responses verbatim, so the fetch methods return the raw
// body together with the upstream status code.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an upstream client for the given base URL, for
// example https://api.coingecko.com/api/v3.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// get performs an upstream GET and returns the status code and body.
func (c *Client) get(endpoint string, params url.Values) (int, []byte, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	start := time.Now()
	logger.Debug("Starting upstream request to %s", u)

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Upstream request failed after (%s) %v: %v", u, time.Since(start), err)
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("error reading response: %w", err)
	}

	logger.Debug("Upstream request to %s completed in %v with status %d", u, time.Since(start), resp.StatusCode)
	return resp.StatusCode, body, nil
}

// Ping checks the upstream health endpoint.
func (c *Client) Ping() (int, []byte, error) {
	return c.get("/ping", nil)
}

// SimplePrice performs a batched spot price lookup for the given ids
// and quote currencies.
func (c *Client) SimplePrice(ids, vsCurrencies string) (int, []byte, error) {
	params := url.Values{}
	if ids != "" {
		params.Set("ids", ids)
	}
	if vsCurrencies != "" {
		params.Set("vs_currencies", vsCurrencies)
	}
	return c.get("/simple/price", params)
}

// Search looks up coins by name or symbol.
func (c *Client) Search(query string) (int, []byte, error) {
	params := url.Values{}
	params.Set("query", query)
	return c.get("/search", params)
}

// MarketChart fetches a historical price series for a coin.
func (c *Client) MarketChart(id, vsCurrency, days string) (int, []byte, error) {
	params := url.Values{}
	params.Set("vs_currency", vsCurrency)
	params.Set("days", days)
	return c.get("/coins/"+url.PathEscape(id)+"/market_chart", params)
}
